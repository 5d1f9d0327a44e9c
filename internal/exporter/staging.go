package exporter

import (
	"os"
	"path/filepath"

	"skuforecast/internal/errors"
)

// Staging collects the artifacts of one run so they appear together or not
// at all. Each artifact is written to a hidden file next to its target;
// Commit renames them into place once every write has succeeded, and
// Discard removes whatever is still pending.
type Staging struct {
	pending []stagedFile
}

type stagedFile struct {
	tmp    string
	target string
}

// NewStaging creates an empty staging area
func NewStaging() *Staging {
	return &Staging{}
}

// Stage calls write with a temporary path in target's directory. The
// temporary name keeps target's extension so format detection still works.
func (s *Staging) Stage(target string, write func(path string) error) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIOError("create directory for", target, err)
	}

	tmp, err := os.CreateTemp(dir, ".staged-*-"+filepath.Base(target))
	if err != nil {
		return errors.NewIOError("create temp file for", target, err)
	}
	tmpName := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError("close", tmpName, err)
	}

	if err := write(tmpName); err != nil {
		os.Remove(tmpName)
		return err
	}

	s.pending = append(s.pending, stagedFile{tmp: tmpName, target: target})
	return nil
}

// Pending returns the number of staged artifacts not yet committed
func (s *Staging) Pending() int {
	return len(s.pending)
}

// Commit renames the staged files over their targets, last staged first.
// The first artifact staged is therefore the last to appear.
func (s *Staging) Commit() error {
	for len(s.pending) > 0 {
		last := s.pending[len(s.pending)-1]
		if err := os.Rename(last.tmp, last.target); err != nil {
			s.Discard()
			return errors.NewIOError("rename", last.target, err)
		}
		s.pending = s.pending[:len(s.pending)-1]
	}
	return nil
}

// Discard removes every staged file that was not committed
func (s *Staging) Discard() {
	for _, f := range s.pending {
		os.Remove(f.tmp)
	}
	s.pending = nil
}
