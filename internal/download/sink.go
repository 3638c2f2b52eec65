package download

import (
	"errors"
	"io/fs"
	"os"
)

// FileSink stages a payload in a temporary file.
type FileSink struct {
	f *os.File

	closeFile func() error
}

// NewFileSink creates an empty staging file in dir.
func NewFileSink(dir string) (*FileSink, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(dir, "firmware-*.tmp")
	if err != nil {
		return nil, err
	}

	return &FileSink{f: f, closeFile: f.Close}, nil
}

// Path returns the location of the staging file.
func (s *FileSink) Path() string {
	return s.f.Name()
}

func (s *FileSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

// Close flushes the staging file to disk so it can be handed off.
func (s *FileSink) Close() error {
	err := s.f.Sync()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}

	err = s.closeFile()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}

	return nil
}

// Discard closes and removes the staging file.
//
// The file is removed even when closing it fails.
func (s *FileSink) Discard() error {
	closeErr := s.closeFile()
	if errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}

	removeErr := os.Remove(s.f.Name())
	if errors.Is(removeErr, fs.ErrNotExist) {
		removeErr = nil
	}

	return errors.Join(closeErr, removeErr)
}
