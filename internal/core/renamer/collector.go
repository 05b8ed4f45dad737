package renamer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Supported file extensions, lowercase
var (
	documentExts = []string{".pdf"}
	imageExts    = []string{".jpg", ".jpeg", ".png"}
)

// IsSupported reports whether path has an extension we can analyze.
// Comparison ignores case.
func IsSupported(path string, includeImages bool) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range documentExts {
		if ext == e {
			return true
		}
	}
	if includeImages {
		for _, e := range imageExts {
			if ext == e {
				return true
			}
		}
	}
	return false
}

// Collect returns the supported files under dir, deduplicated and sorted.
// Hidden directories are not descended into.
func Collect(dir string, recursive, includeImages bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	seen := make(map[string]bool)
	var files []string

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsSupported(path, includeImages) {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
