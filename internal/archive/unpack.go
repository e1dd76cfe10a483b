// Package archive turns a contest bulk export into per-problem directories.
//
// Export layout (fixed by the contest system):
//
//	<user>-<anything>/<problem>-<submissionId>-...-<verdict>
//
// Only submissions whose verdict starts with "OK" are kept, and only the first
// accepted one per (user, problem) in directory-listing order.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/okian/antiplag/internal/domain/dedupe"
	"github.com/okian/antiplag/internal/domain/model"
	"github.com/okian/antiplag/pkg/logger"
	"github.com/okian/antiplag/pkg/metrics"
)

const (
	archiveDirName = "archive"
	acceptedPrefix = "OK"
	nameSeparator  = "-"
	dirPermission  = 0o750
	filePermission = 0o640
)

// Unpacker extracts exports into a Workspace.
type Unpacker struct {
	workDirName string
	sourceExt   string
	logger      logger.Logger
}

// Option configures an Unpacker.
type Option func(*Unpacker)

// WithWorkDirName sets the name of the working directory created next to the archive.
func WithWorkDirName(name string) Option {
	return func(u *Unpacker) {
		if name != "" {
			u.workDirName = name
		}
	}
}

// WithSourceExt sets the extension of renamed files, e.g. ".py".
func WithSourceExt(ext string) Option {
	return func(u *Unpacker) {
		if ext != "" {
			u.sourceExt = ext
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(u *Unpacker) {
		if l != nil {
			u.logger = l
		}
	}
}

// New creates an Unpacker.
func New(opts ...Option) *Unpacker {
	u := &Unpacker{
		workDirName: "ANTIPLAGIARISM",
		sourceExt:   ".py",
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unpack extracts zipPath next to itself and reorganizes accepted submissions,
// skipping every folder that belongs to a user in admins. On error nothing is
// left on disk.
func (u *Unpacker) Unpack(ctx context.Context, zipPath string, admins []string) (_ *Workspace, err error) {
	u.logger.Info(ctx, "extracting archive", logger.String("archive", zipPath))

	workDir := filepath.Join(filepath.Dir(zipPath), u.workDirName)
	if err := os.Mkdir(workDir, dirPermission); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkDirExists, workDir)
		}
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	ws := &Workspace{Dir: workDir, SubmissionIDs: make(model.SubmissionIDs)}
	defer func() {
		if err != nil {
			_ = ws.Close()
		}
	}()

	archiveDir := filepath.Join(workDir, archiveDirName)
	if err := os.Mkdir(archiveDir, dirPermission); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	if err := u.extract(ctx, zipPath, archiveDir); err != nil {
		return nil, err
	}

	if err := u.reorganize(ctx, archiveDir, workDir, toSet(admins), ws.SubmissionIDs); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(archiveDir); err != nil {
		return nil, fmt.Errorf("remove archive directory: %w", err)
	}

	return ws, nil
}

func (u *Unpacker) extract(ctx context.Context, zipPath, dst string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExtract, zipPath, err)
	}
	defer r.Close()

	var total uint64
	root := filepath.Clean(dst) + string(os.PathSeparator)

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(dst, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return fmt.Errorf("%w: entry %q escapes the archive directory", ErrExtract, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirPermission); err != nil {
				return fmt.Errorf("%w: %w", ErrExtract, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrExtract, f.Name, err)
		}
		total += f.UncompressedSize64
	}

	metrics.AddArchiveBytes(total)
	u.logger.Info(ctx, "archive extracted",
		logger.Int("entries", len(r.File)),
		logger.String("size", humanize.Bytes(total)),
	)
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPermission); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (u *Unpacker) reorganize(
	ctx context.Context,
	archiveDir, workDir string,
	admins map[string]struct{},
	ids model.SubmissionIDs,
) error {
	userDirs, err := os.ReadDir(archiveDir)
	if err != nil {
		return fmt.Errorf("list extracted archive: %w", err)
	}

	seen := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(userDirs)))

	for _, entry := range userDirs {
		if err := ctx.Err(); err != nil {
			return err
		}

		user, err := parseUser(entry.Name())
		if err != nil {
			return err
		}
		if _, ok := admins[user]; ok {
			metrics.RecordAdminSkipped()
			u.logger.Debug(ctx, "skipping administrator", logger.String("user", user))
			continue
		}
		if !entry.IsDir() {
			return fmt.Errorf("%w: %q is not a user folder", ErrMalformedName, entry.Name())
		}

		userDir := filepath.Join(archiveDir, entry.Name())
		files, err := os.ReadDir(userDir)
		if err != nil {
			return fmt.Errorf("list user folder %s: %w", entry.Name(), err)
		}

		for _, file := range files {
			if file.IsDir() {
				return fmt.Errorf("%w: unexpected folder %s/%s", ErrMalformedName, entry.Name(), file.Name())
			}

			sub, err := parseSubmission(user, file.Name())
			if err != nil {
				return err
			}
			if !strings.HasPrefix(sub.Verdict, acceptedPrefix) {
				metrics.RecordSubmissionRejected()
				continue
			}

			key := model.SubmissionKey{User: sub.User, Problem: sub.Problem}
			if seen.SeenAndRecord(ctx, key) {
				metrics.RecordSubmissionDuplicate()
				u.logger.Debug(ctx, "skipping resubmission",
					logger.String("user", sub.User),
					logger.String("problem", sub.Problem),
					logger.String("submission", sub.ID),
				)
				continue
			}

			sub.Path = filepath.Join(userDir, file.Name())
			if err := u.place(workDir, sub); err != nil {
				seen.Unrecord(ctx, key)
				return err
			}
			ids[key] = sub.ID
			metrics.RecordSubmissionAccepted()
		}
	}

	u.logger.Info(ctx, "submissions grouped by problem", logger.Int("kept", len(ids)))
	return nil
}

// place copies an accepted submission to <workDir>/<problem>/<user><ext>.
func (u *Unpacker) place(workDir string, sub model.Submission) error {
	problemDir := filepath.Join(workDir, sub.Problem)
	if err := os.MkdirAll(problemDir, dirPermission); err != nil {
		return fmt.Errorf("create problem directory: %w", err)
	}

	target := filepath.Join(problemDir, sub.User+u.sourceExt)
	if err := copyFile(sub.Path, target); err != nil {
		return fmt.Errorf("copy submission %s: %w", sub.ID, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // path comes from our own extraction
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePermission)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// parseUser returns the user name of a top-level export folder.
func parseUser(name string) (string, error) {
	fields := strings.Split(name, nameSeparator)
	if len(fields) < 2 || fields[0] == "" {
		return "", fmt.Errorf("%w: user folder %q", ErrMalformedName, name)
	}
	return fields[0], nil
}

// parseSubmission splits <problem>-<submissionId>-...-<verdict>.
func parseSubmission(user, name string) (model.Submission, error) {
	fields := strings.Split(name, nameSeparator)
	if len(fields) < 2 {
		return model.Submission{}, fmt.Errorf("%w: submission file %q", ErrMalformedName, name)
	}

	problem := fields[0]
	if problem == "" || problem == "." || problem == ".." || problem == archiveDirName {
		return model.Submission{}, fmt.Errorf("%w: problem name in %q", ErrMalformedName, name)
	}

	return model.Submission{
		User:    user,
		Problem: problem,
		ID:      fields[1],
		Verdict: fields[len(fields)-1],
	}, nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
