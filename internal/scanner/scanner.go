// Package scanner turns command-line arguments into the list of Python
// source files to analyse.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"pydiatra/internal/config"
)

// Scanner walks directories and filters files by the configured patterns.
type Scanner struct {
	cfg config.FilesConfig
}

func New(cfg config.FilesConfig) *Scanner {
	return &Scanner{cfg: cfg}
}

// Collect expands args into file paths, keeping the order of args and
// dropping duplicates. Files named explicitly are always taken; files
// found inside directories must match the include patterns or carry a
// python shebang.
func (s *Scanner) Collect(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		found, err := s.walk(arg)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func (s *Scanner) walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && (s.isExcluded(rel) || s.isExcluded(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !s.cfg.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || target.IsDir() {
				// dangling links and linked directories are skipped
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		if s.isExcluded(rel) {
			return nil
		}
		ok, err := s.accept(path, rel)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (s *Scanner) accept(path, rel string) (bool, error) {
	if s.cfg.MaxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return false, err
		}
		if info.Size() > int64(s.cfg.MaxFileSize)*1024 {
			return false, nil
		}
	}
	if s.isIncluded(rel) {
		return true, nil
	}
	if s.cfg.SniffShebang && filepath.Ext(path) == "" {
		return HasPythonShebang(path)
	}
	return false, nil
}

// isIncluded checks if file matches include patterns
func (s *Scanner) isIncluded(rel string) bool {
	for _, pattern := range s.cfg.Include {
		if matchPattern(rel, pattern) {
			return true
		}
	}
	return false
}

// isExcluded checks if file matches exclude patterns
func (s *Scanner) isExcluded(rel string) bool {
	for _, pattern := range s.cfg.Exclude {
		if matchPattern(rel, pattern) {
			return true
		}
	}
	return false
}

// matchPattern matches a slash-separated relative path. Patterns without
// a slash also match the base name.
func matchPattern(rel, pattern string) bool {
	if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if matched, err := doublestar.Match(pattern, pathBase(rel)); err == nil && matched {
			return true
		}
	}
	return false
}

func pathBase(rel string) string {
	rel = strings.TrimSuffix(rel, "/")
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// HasPythonShebang reports whether the first line of the file at path is
// a "#!" line that runs a python interpreter, directly or through env.
func HasPythonShebang(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// a missing newline is not an error here
	line, _ := bufio.NewReader(f).ReadString('\n')
	return IsPythonShebang(line), nil
}

// IsPythonShebang reports whether line is a python "#!" line.
func IsPythonShebang(line string) bool {
	rest, ok := strings.CutPrefix(line, "#!")
	if !ok {
		return false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return false
	}
	interp := pathBase(fields[0])
	if interp == "env" {
		interp = ""
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}
			interp = pathBase(f)
			break
		}
	}
	return isPythonName(interp)
}

// isPythonName accepts python, python3 and python3.11 style names.
func isPythonName(name string) bool {
	version, ok := strings.CutPrefix(name, "python")
	if !ok {
		return false
	}
	for _, r := range version {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
