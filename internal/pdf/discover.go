package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
)

// Discover lists the PDF files directly inside dir, sorted by name.
// Subdirectories are not searched. A missing or unreadable directory is an
// ErrorTypeInputDirectory error; an empty result is not an error.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInputDirectory, err).WithFile(dir)
	}
	if !info.IsDir() {
		return nil, pdferrors.New(pdferrors.ErrorTypeInputDirectory, "not a directory").WithFile(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInputDirectory, fmt.Errorf("read directory: %w", err)).WithFile(dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPDFName(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
