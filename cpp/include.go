package cpp

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type IncludeSearcher interface {
	//IncludeQuote is invoked when the preprocessor
	//encounters an include of the form #include "foo.h".
	//returns the full path of the file, a reader of the contents or an error.
	IncludeQuote(requestingFile, headerPath string) (string, io.ReadCloser, error)
	//IncludeAngled is invoked when the preprocessor
	//encounters an include of the form #include <foo.h>.
	//returns the full path of the file, a reader of the contents or an error.
	IncludeAngled(requestingFile, headerPath string) (string, io.ReadCloser, error)
}

// ErrHeaderNotFound is returned (wrapped) when no search directory holds a header.
var ErrHeaderNotFound = errors.New("header not found")

type StandardIncludeSearcher struct {
	//Priority order list of paths to search for headers
	dirs []string
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (is *StandardIncludeSearcher) IncludeQuote(requestingFile, headerPath string) (string, io.ReadCloser, error) {
	path := filepath.Join(filepath.Dir(requestingFile), headerPath)
	exists, err := fileExists(path)
	if err != nil {
		return "", nil, err
	}
	if !exists {
		return is.IncludeAngled(requestingFile, headerPath)
	}
	rdr, err := os.Open(path)
	return path, rdr, err
}

func (is *StandardIncludeSearcher) IncludeAngled(requestingFile, headerPath string) (string, io.ReadCloser, error) {
	for _, dir := range is.dirs {
		path := filepath.Join(dir, headerPath)
		exists, err := fileExists(path)
		if err != nil {
			return "", nil, err
		}
		if exists {
			rdr, err := os.Open(path)
			return path, rdr, err
		}
	}
	return "", nil, errors.Wrap(ErrHeaderNotFound, headerPath)
}

// NewStandardIncludeSearcher searches dirs in order.
// Quoted includes look next to the including file first.
func NewStandardIncludeSearcher(dirs ...string) IncludeSearcher {
	return &StandardIncludeSearcher{dirs: dirs}
}
