package moss_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/antiplag/internal/adapters/moss"
	"github.com/okian/antiplag/internal/mossfake"
)

func problemDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "A")
	if err := os.Mkdir(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func startFake(t *testing.T, opts ...mossfake.Option) *mossfake.Server {
	t.Helper()
	srv := mossfake.New(opts...)
	if err := srv.Start(context.Background(), "127.0.0.1:0", "127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestClientSubmit(t *testing.T) {
	Convey("Given a fake service and a problem directory", t, func() {
		ctx := context.Background()
		srv := startFake(t)
		dir := problemDir(t, map[string]string{
			"alice.py":    "a = 1\nb = 2\n",
			"john doe.py": "a = 1\nb = 2\n",
			"notes.txt":   "ignored\n",
		})
		base := filepath.Join(t.TempDir(), "template.py")
		So(os.WriteFile(base, []byte("def main():\n"), 0o600), ShouldBeNil)

		client := moss.New(
			moss.WithServer(srv.SocketAddr()),
			moss.WithUserID(42),
			moss.WithIgnoreLimit(7),
			moss.WithShow(10),
			moss.WithComment("contest 1"),
			moss.WithBaseFiles(base),
			moss.WithExperimental(true),
			moss.WithTimeouts(time.Second, 5*time.Second),
		)

		Convey("When submitting", func() {
			url, err := client.Submit(ctx, dir)
			So(err, ShouldBeNil)

			Convey("Then the report url comes from the service", func() {
				So(url, ShouldStartWith, srv.PublicURL()+"/results/")
			})

			Convey("Then the protocol carries the configured settings", func() {
				_ = srv.Close()
				sessions := srv.Sessions()
				So(sessions, ShouldHaveLength, 1)
				s := sessions[0]
				So(s.UserID, ShouldEqual, 42)
				So(s.Language, ShouldEqual, "python")
				So(s.MaxMatches, ShouldEqual, 7)
				So(s.Show, ShouldEqual, 10)
				So(s.Directory, ShouldBeFalse)
				So(s.Experimental, ShouldBeTrue)
				So(s.Comment, ShouldEqual, "contest 1")
			})

			Convey("Then base files go first with index 0 and names are encoded", func() {
				_ = srv.Close()
				files := srv.Sessions()[0].Files
				So(files, ShouldHaveLength, 3)
				So(files[0].Index, ShouldEqual, 0)
				So(files[0].Name, ShouldEqual, "template.py")
				So(files[1].Index, ShouldEqual, 1)
				So(files[1].Name, ShouldEqual, "A/alice.py")
				So(files[2].Index, ShouldEqual, 2)
				So(files[2].Name, ShouldEqual, "A/john_doe.py")
				So(string(files[2].Data), ShouldEqual, "a = 1\nb = 2\n")
			})

			Convey("Then the report can be fetched", func() {
				body, err := client.FetchReport(ctx, url)
				So(err, ShouldBeNil)
				So(string(body), ShouldContainSubstring, "A/john_doe.py (100%)")
			})
		})
	})
}

func TestClientSubmitFailures(t *testing.T) {
	Convey("Given a problem directory", t, func() {
		ctx := context.Background()
		dir := problemDir(t, map[string]string{"alice.py": "x\n"})

		Convey("When the service rejects the language", func() {
			srv := startFake(t, mossfake.WithLanguages("c"))
			_, err := moss.New(moss.WithServer(srv.SocketAddr())).Submit(ctx, dir)

			Convey("Then ErrLanguageRejected is returned", func() {
				So(errors.Is(err, moss.ErrLanguageRejected), ShouldBeTrue)
			})
		})

		Convey("When nothing listens on the address", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			So(err, ShouldBeNil)
			addr := ln.Addr().String()
			So(ln.Close(), ShouldBeNil)

			_, err = moss.New(moss.WithServer(addr)).Submit(ctx, dir)

			Convey("Then ErrDial is returned", func() {
				So(errors.Is(err, moss.ErrDial), ShouldBeTrue)
			})
		})

		Convey("When the service answers the query with garbage", func() {
			addr := scriptedServer(t, "yes\n", "Error: out of disk\n")
			_, err := moss.New(moss.WithServer(addr)).Submit(ctx, dir)

			Convey("Then ErrBadResponse is returned", func() {
				So(errors.Is(err, moss.ErrBadResponse), ShouldBeTrue)
			})
		})

		Convey("When the service hangs up early", func() {
			addr := scriptedServer(t)
			_, err := moss.New(moss.WithServer(addr)).Submit(ctx, dir)

			Convey("Then ErrBadResponse is returned", func() {
				So(errors.Is(err, moss.ErrBadResponse), ShouldBeTrue)
			})
		})

		Convey("When the service stalls past the context deadline", func() {
			addr := scriptedServer(t, "yes\n")
			cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			_, err := moss.New(moss.WithServer(addr)).Submit(cctx, dir)

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("When the directory has no source files", func() {
			empty := problemDir(t, map[string]string{"readme.md": "hi"})
			_, err := moss.New(moss.WithServer("127.0.0.1:1")).Submit(ctx, empty)

			Convey("Then ErrNoFiles is returned before dialing", func() {
				So(errors.Is(err, moss.ErrNoFiles), ShouldBeTrue)
			})
		})
	})
}

// scriptedServer answers each line read with the next reply, then stalls
// until the client disconnects. With no replies it closes at once.
func scriptedServer(t *testing.T, replies ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if len(replies) == 0 {
			return
		}
		r := bufio.NewReader(conn)
		// Wait for "language", then for "query".
		waitFor := []string{"language", "query"}
		for i, reply := range replies {
			for {
				line, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if len(line) >= len(waitFor[i]) && line[:len(waitFor[i])] == waitFor[i] {
					break
				}
			}
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
		_, _ = r.ReadString(0)
	}()
	return ln.Addr().String()
}

func TestClientFetchReport(t *testing.T) {
	Convey("Given a report server", t, func() {
		ctx := context.Background()
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("<HTML>report</HTML>"))
		}))
		defer ts.Close()
		client := moss.New(moss.WithHTTPClient(ts.Client()))

		Convey("When the report exists", func() {
			body, err := client.FetchReport(ctx, ts.URL+"/results/1")

			Convey("Then the body is returned", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldEqual, "<HTML>report</HTML>")
			})
		})

		Convey("When the server answers 404", func() {
			_, err := client.FetchReport(ctx, ts.URL+"/missing")

			Convey("Then ErrFetch is returned", func() {
				So(errors.Is(err, moss.ErrFetch), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "404")
			})
		})

		Convey("When the url is invalid", func() {
			_, err := client.FetchReport(ctx, "::not a url")

			Convey("Then ErrFetch is returned", func() {
				So(errors.Is(err, moss.ErrFetch), ShouldBeTrue)
			})
		})
	})
}
