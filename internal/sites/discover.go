package sites

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

const globMeta = "*?[{"

// Discover expands pattern into the sorted list of matching files. The walk starts at
// the longest directory prefix that contains no glob metacharacters, so `sites/**/*.xml`
// only descends into sites/. `**` crosses directory boundaries, `*` does not.
func Discover(pattern string) ([]string, error) {
	pattern = filepath.ToSlash(strings.TrimSpace(pattern))
	if pattern == "" {
		return nil, fmt.Errorf("glob pattern is required")
	}
	if !strings.ContainsAny(pattern, globMeta) {
		info, err := os.Stat(filepath.FromSlash(pattern))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("stat %s: %w", pattern, err)
		case info.IsDir():
			return nil, nil
		}
		return []string{filepath.FromSlash(pattern)}, nil
	}

	matcher, err := glob.Compile(strings.TrimPrefix(pattern, "./"), '/')
	if err != nil {
		return nil, fmt.Errorf("compile glob %q: %w", pattern, err)
	}

	root := staticPrefix(pattern)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if matcher.Match(strings.TrimPrefix(filepath.ToSlash(path), "./")) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// staticPrefix returns the directory portion of pattern preceding the first segment that
// holds a glob metacharacter.
func staticPrefix(pattern string) string {
	segments := strings.Split(pattern, "/")
	var static []string
	for _, seg := range segments[:len(segments)-1] {
		if strings.ContainsAny(seg, globMeta) {
			break
		}
		static = append(static, seg)
	}
	if len(static) == 0 {
		return "."
	}
	if len(static) == 1 && static[0] == "" {
		return "/"
	}
	return filepath.FromSlash(strings.Join(static, "/"))
}
