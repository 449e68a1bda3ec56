package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FileLoader reads <dir>/<code>.json.
type FileLoader struct {
	dir string
}

var _ Loader = (*FileLoader)(nil)

// NewFileLoader creates a loader over a directory of department files.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

// Load implements Loader.
func (l *FileLoader) Load(_ context.Context, code string) (*Department, error) {
	path := filepath.Join(l.dir, code+".json")
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "department %s", code)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Decode(f, code)
}

// Decode parses a department document. The code defaults to fallbackCode
// when the document omits it.
func Decode(r io.Reader, fallbackCode string) (*Department, error) {
	var d Department
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, eris.Wrapf(err, "refdata: decode department %s", fallbackCode)
	}
	if d.Code == "" {
		d.Code = fallbackCode
	}
	return &d, nil
}
