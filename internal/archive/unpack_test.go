package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/antiplag/internal/archive"
	"github.com/okian/antiplag/internal/domain/model"
)

// writeZip builds an export archive in a fresh directory and returns its path.
func writeZip(t *testing.T, files map[string]string, order ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "export.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func exportFixture(t *testing.T) string {
	t.Helper()
	files := map[string]string{
		"admin-1/A-100-OK.py": "print('reference')\n",
		"alice-2/A-101-OK.py": "print('alice')\n",
		"bob-3/A-103-OK.py":   "print('bob resubmitted')\n",
		"bob-3/A-102-OK.py":   "print('bob first')\n",
		"bob-3/B-104-x-WA.py": "print('wrong')\n",
		"carol-4/B-105-7-OK":  "print('carol')\n",
		"carol-4/C-106-RE.py": "crash()\n",
	}
	order := []string{
		"admin-1/A-100-OK.py",
		"alice-2/A-101-OK.py",
		"bob-3/A-103-OK.py",
		"bob-3/A-102-OK.py",
		"bob-3/B-104-x-WA.py",
		"carol-4/B-105-7-OK",
		"carol-4/C-106-RE.py",
	}
	return writeZip(t, files, order...)
}

func TestUnpack(t *testing.T) {
	Convey("Given a contest export", t, func() {
		ctx := context.Background()
		zipPath := exportFixture(t)
		u := archive.New()

		Convey("When unpacking with admin excluded", func() {
			ws, err := u.Unpack(ctx, zipPath, []string{"admin"})
			So(err, ShouldBeNil)
			defer ws.Close()

			Convey("Then the working directory sits next to the archive", func() {
				So(ws.Dir, ShouldEqual, filepath.Join(filepath.Dir(zipPath), "ANTIPLAGIARISM"))
				_, statErr := os.Stat(filepath.Join(ws.Dir, "archive"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})

			Convey("Then only problems with accepted submissions exist", func() {
				problems, err := ws.Problems()
				So(err, ShouldBeNil)
				So(problems, ShouldResemble, []string{"A", "B"})
			})

			Convey("Then the first accepted submission per user and problem wins", func() {
				data, err := os.ReadFile(filepath.Join(ws.Dir, "A", "bob.py"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "print('bob first')\n")

				entries, err := os.ReadDir(filepath.Join(ws.Dir, "A"))
				So(err, ShouldBeNil)
				names := []string{}
				for _, e := range entries {
					names = append(names, e.Name())
				}
				So(names, ShouldResemble, []string{"alice.py", "bob.py"})
			})

			Convey("Then submission ids are recorded per user and problem", func() {
				So(ws.SubmissionIDs, ShouldResemble, model.SubmissionIDs{
					{User: "alice", Problem: "A"}: "101",
					{User: "bob", Problem: "A"}:   "102",
					{User: "carol", Problem: "B"}: "105",
				})
			})

			Convey("Then closing removes the working directory", func() {
				So(ws.Close(), ShouldBeNil)
				So(ws.Close(), ShouldBeNil)
				_, statErr := os.Stat(ws.Dir)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When unpacking without excluding admins", func() {
			ws, err := u.Unpack(ctx, zipPath, nil)
			So(err, ShouldBeNil)
			defer ws.Close()

			Convey("Then the admin is treated like any user", func() {
				So(ws.SubmissionIDs[model.SubmissionKey{User: "admin", Problem: "A"}], ShouldEqual, "100")
			})
		})

		Convey("When the working directory already exists", func() {
			existing := filepath.Join(filepath.Dir(zipPath), "ANTIPLAGIARISM")
			So(os.Mkdir(existing, 0o750), ShouldBeNil)

			_, err := u.Unpack(ctx, zipPath, nil)

			Convey("Then unpacking fails and leaves the directory alone", func() {
				So(errors.Is(err, archive.ErrWorkDirExists), ShouldBeTrue)
				_, statErr := os.Stat(existing)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When a custom directory name and extension are configured", func() {
			custom := archive.New(archive.WithWorkDirName("WORK"), archive.WithSourceExt(".txt"))
			ws, err := custom.Unpack(ctx, zipPath, []string{"admin"})
			So(err, ShouldBeNil)
			defer ws.Close()

			Convey("Then files are renamed with that extension", func() {
				So(filepath.Base(ws.Dir), ShouldEqual, "WORK")
				_, statErr := os.Stat(filepath.Join(ws.Dir, "B", "carol.txt"))
				So(statErr, ShouldBeNil)
			})
		})
	})
}

func TestUnpackFailures(t *testing.T) {
	Convey("Given broken inputs", t, func() {
		ctx := context.Background()
		u := archive.New()

		Convey("When the file is not a zip", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "export.zip")
			So(os.WriteFile(path, []byte("definitely not a zip"), 0o600), ShouldBeNil)

			_, err := u.Unpack(ctx, path, nil)

			Convey("Then an extraction error is returned and nothing is left behind", func() {
				So(errors.Is(err, archive.ErrExtract), ShouldBeTrue)
				_, statErr := os.Stat(filepath.Join(dir, "ANTIPLAGIARISM"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When a user folder has no dash", func() {
			path := writeZip(t, map[string]string{"alice/A-1-OK.py": "x"}, "alice/A-1-OK.py")

			_, err := u.Unpack(ctx, path, nil)

			Convey("Then the name is rejected", func() {
				So(errors.Is(err, archive.ErrMalformedName), ShouldBeTrue)
				_, statErr := os.Stat(filepath.Join(filepath.Dir(path), "ANTIPLAGIARISM"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When a submission file has no dash", func() {
			path := writeZip(t, map[string]string{"alice-1/solution.py": "x"}, "alice-1/solution.py")

			_, err := u.Unpack(ctx, path, nil)

			Convey("Then the name is rejected", func() {
				So(errors.Is(err, archive.ErrMalformedName), ShouldBeTrue)
			})
		})

		Convey("When an entry escapes the archive directory", func() {
			path := writeZip(t, map[string]string{"../evil-1/A-1-OK.py": "x"}, "../evil-1/A-1-OK.py")

			_, err := u.Unpack(ctx, path, nil)

			Convey("Then extraction is refused", func() {
				So(errors.Is(err, archive.ErrExtract), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			path := exportFixture(t)
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := u.Unpack(cctx, path, nil)

			Convey("Then the run stops with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
