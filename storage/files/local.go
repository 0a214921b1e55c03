// Package files stores uploaded documents.
package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/registration"
)

var errInvalidKey = errors.New("invalid document key")

// LocalStore keeps documents under a root directory of the local filesystem.
type LocalStore struct {
	root string
}

var _ registration.DocumentStore = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving documents dir")
	}
	if err = os.MkdirAll(abs, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating documents dir")
	}
	return &LocalStore{root: abs}, nil
}

// path maps key to a file under root. Keys escaping root are rejected.
func (s *LocalStore) path(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", errInvalidKey
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", errInvalidKey
	}
	return p, nil
}

func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, errors.Wrap(err, "creating document dir")
	}

	// write to a temp file first so that readers never see partial documents
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, errors.Wrap(err, "creating document")
	}
	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "writing document")
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "saving document")
	}
	return n, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, registration.ErrDocumentNotFound
		}
		return nil, errors.Wrap(err, "opening document")
	}
	return f, nil
}

// Delete is a no-op for missing documents.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting document")
	}
	if dir := filepath.Dir(p); dir != s.root {
		_ = os.Remove(dir) // fails while the dir still holds documents
	}
	return nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
