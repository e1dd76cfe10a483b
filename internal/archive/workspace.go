package archive

import (
	"fmt"
	"os"
	"sync"

	"github.com/okian/antiplag/internal/domain/model"
)

// Workspace is the reorganized export: one directory per problem holding one
// renamed source file per user.
type Workspace struct {
	Dir           string
	SubmissionIDs model.SubmissionIDs

	closeOnce sync.Once
	closeErr  error
}

// Problems lists the problem directories in directory-listing order.
func (w *Workspace) Problems() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	problems := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			problems = append(problems, e.Name())
		}
	}
	return problems, nil
}

// Close removes the working directory. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			w.closeErr = fmt.Errorf("remove working directory: %w", err)
		}
	})
	return w.closeErr
}
