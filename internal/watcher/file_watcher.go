package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"pydiatra/internal/config"
	"pydiatra/internal/scanner"
)

// FileWatcher reports changes to Python sources below a set of roots.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	files     config.FilesConfig
	logger    *zap.Logger
	debouncer *debouncer

	mu          sync.Mutex
	watchedDirs map[string]bool
}

type FileChangeEvent struct {
	Path      string
	Operation string
	Timestamp time.Time
}

// FileChangeHandler receives the sorted paths changed since the last
// call. Removed files are included; the handler decides what to do with
// paths that no longer exist.
type FileChangeHandler func([]string) error

func NewFileWatcher(cfg *config.Config, logger *zap.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	files := config.DefaultConfig().Files
	if cfg != nil {
		files = cfg.Files
	}
	fw := &FileWatcher{
		watcher:     watcher,
		files:       files,
		logger:      logger,
		watchedDirs: make(map[string]bool),
		debouncer:   newDebouncer(500*time.Millisecond, logger), // 500ms debounce
	}
	return fw, nil
}

func (fw *FileWatcher) Watch(paths []string, handler FileChangeHandler) error {
	for _, path := range paths {
		if err := fw.addPath(path); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", path, err)
		}
	}
	go fw.eventLoop(handler)
	return nil
}

// addPath watches path, or every directory below it when it is one.
// A single file is watched through its directory.
func (fw *FileWatcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fw.addDir(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if walkPath != path && fw.shouldSkipDir(walkPath) {
			return filepath.SkipDir
		}
		return fw.addDir(walkPath)
	})
}

func (fw *FileWatcher) addDir(dir string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.watchedDirs[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}
	fw.watchedDirs[dir] = true
	fw.logger.Debug("watching", zap.String("dir", dir))
	return nil
}

func (fw *FileWatcher) eventLoop(handler FileChangeHandler) {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event, handler)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", zap.Error(err))
		case <-fw.debouncer.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event, handler FileChangeHandler) {
	// new directories are watched as they appear
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !fw.shouldSkipDir(event.Name) {
				if err := fw.addPath(event.Name); err != nil {
					fw.logger.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
				}
			}
			return
		}
	}
	if fw.shouldSkipFile(event.Name) {
		return
	}
	if !fw.isPythonFile(event.Name, event.Op) {
		return
	}
	changeEvent := FileChangeEvent{
		Path:      event.Name,
		Operation: fw.eventOpToString(event.Op),
		Timestamp: time.Now(),
	}
	fw.debouncer.add(changeEvent, handler)
}

// isPythonFile accepts .py files and, when shebang sniffing is on,
// extensionless scripts that start with a python "#!" line.
func (fw *FileWatcher) isPythonFile(path string, op fsnotify.Op) bool {
	if strings.HasSuffix(path, ".py") {
		return true
	}
	if !fw.files.SniffShebang || filepath.Ext(path) != "" {
		return false
	}
	if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		return false
	}
	ok, err := scanner.HasPythonShebang(path)
	return err == nil && ok
}

func (fw *FileWatcher) shouldSkipDir(path string) bool {
	defaultExclusions := []string{
		".git", ".hg", ".tox", ".venv", "venv", "__pycache__", "node_modules", ".mypy_cache", ".idea",
	}
	dirName := filepath.Base(path)
	for _, excluded := range defaultExclusions {
		if dirName == excluded {
			return true
		}
	}
	return fw.isExcluded(path + "/")
}

func (fw *FileWatcher) shouldSkipFile(path string) bool {
	filename := filepath.Base(path)
	if strings.HasPrefix(filename, ".") {
		return true
	}
	if strings.HasSuffix(filename, ".tmp") || strings.HasSuffix(filename, "~") {
		return true
	}
	if strings.HasSuffix(filename, ".swp") || strings.HasSuffix(filename, ".swo") {
		return true
	}
	return fw.isExcluded(path)
}

// isExcluded matches the exclude patterns against the path and against
// each of its trailing segments, since the watcher sees paths relative to
// no particular root.
func (fw *FileWatcher) isExcluded(path string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range fw.files.Exclude {
		for p := path; p != ""; {
			if matched, err := doublestar.Match(pattern, p); err == nil && matched {
				return true
			}
			i := strings.IndexByte(p, '/')
			if i < 0 {
				break
			}
			p = p[i+1:]
		}
	}
	return false
}

func (fw *FileWatcher) eventOpToString(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return "CREATE"
	case op&fsnotify.Write == fsnotify.Write:
		return "WRITE"
	case op&fsnotify.Remove == fsnotify.Remove:
		return "REMOVE"
	case op&fsnotify.Rename == fsnotify.Rename:
		return "RENAME"
	case op&fsnotify.Chmod == fsnotify.Chmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

func (fw *FileWatcher) Close() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) GetWatchedPaths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	paths := make([]string, 0, len(fw.watchedDirs))
	for path := range fw.watchedDirs {
		paths = append(paths, path)
	}
	return paths
}
