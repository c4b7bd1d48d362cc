package filex

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
)

// ReadLimited reads the regular file at path. Files larger than max bytes are
// rejected with a validation error; a missing file is NotFound.
func ReadLimited(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewNotFoundError("file", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, common.NewValidationError(0, "file", path+" is a directory")
	}

	b, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(b)) > max {
		return nil, common.NewValidationError(0, "file", fmt.Sprintf("larger than %d bytes", max))
	}
	return b, nil
}
