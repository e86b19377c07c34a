// Package fsutil provides a filesystem abstraction for testability.
//
// The ingestion tracker walks an organization/vehicle directory tree; using
// this interface lets tests exercise scans against an in-memory tree instead
// of a temp directory.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSystem abstracts the read-side filesystem operations the ingestion
// tracker needs. Use OSFileSystem for production; MemoryFileSystem for tests.
type FileSystem interface {
	// ReadDir lists the immediate entries of the named directory.
	ReadDir(name string) ([]fs.DirEntry, error)

	// Stat returns a FileInfo describing the named file.
	Stat(name string) (fs.FileInfo, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(name string) ([]byte, error)

	// Exists checks if a file or directory exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// ReadDir lists the named directory.
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// Stat returns file info for the named file.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Exists checks if a file exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem provides an in-memory filesystem for testing.
// Parent directories are created implicitly for every file path written.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string]*memFile),
		dirs:  make(map[string]bool),
	}
}

// WriteFile stores data under name, creating parent directories.
func (m *MemoryFileSystem) WriteFile(name string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.files[name] = &memFile{data: dataCopy, modTime: modTime}
	m.mkdirAllLocked(filepath.Dir(name))
}

// MkdirAll creates a directory and all necessary parents.
func (m *MemoryFileSystem) MkdirAll(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(filepath.Clean(path))
}

func (m *MemoryFileSystem) mkdirAllLocked(path string) {
	for p := path; p != "." && p != "/" && p != ""; p = filepath.Dir(p) {
		if m.dirs[p] {
			return
		}
		m.dirs[p] = true
	}
}

// Remove deletes a file.
func (m *MemoryFileSystem) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filepath.Clean(name))
}

// ReadDir lists the immediate children of the named directory.
func (m *MemoryFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if !m.dirs[name] {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	seen := make(map[string]fs.DirEntry)
	for p, f := range m.files {
		if filepath.Dir(p) == name {
			base := filepath.Base(p)
			seen[base] = memDirEntry{info: &memFileInfo{
				name:    base,
				size:    int64(len(f.data)),
				modTime: f.modTime,
			}}
		}
	}
	for d := range m.dirs {
		if d != name && filepath.Dir(d) == name {
			base := filepath.Base(d)
			seen[base] = memDirEntry{info: &memFileInfo{name: base, isDir: true}}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	entries := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, seen[n])
	}
	return entries, nil
}

// Stat returns file info.
func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if m.dirs[name] {
		return &memFileInfo{name: filepath.Base(name), isDir: true}, nil
	}
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return &memFileInfo{
		name:    filepath.Base(name),
		size:    int64(len(f.data)),
		modTime: f.modTime,
	}, nil
}

// ReadFile reads a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	result := make([]byte, len(f.data))
	copy(result, f.data)
	return result, nil
}

// Exists checks if a file or directory exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if m.dirs[name] {
		return true
	}
	_, ok := m.files[name]
	return ok
}

// Paths returns all file paths currently stored, sorted. Useful in tests.
func (m *MemoryFileSystem) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type memDirEntry struct {
	info *memFileInfo
}

func (e memDirEntry) Name() string               { return e.info.name }
func (e memDirEntry) IsDir() bool                { return e.info.isDir }
func (e memDirEntry) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e memDirEntry) Info() (fs.FileInfo, error) { return e.info, nil }

type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (i *memFileInfo) Name() string { return i.name }
func (i *memFileInfo) Size() int64  { return i.size }
func (i *memFileInfo) Mode() fs.FileMode {
	if i.isDir {
		return fs.ModeDir | 0755
	}
	return 0644
}
func (i *memFileInfo) ModTime() time.Time { return i.modTime }
func (i *memFileInfo) IsDir() bool        { return i.isDir }
func (i *memFileInfo) Sys() any           { return nil }

// Verify at compile time that both implementations satisfy FileSystem.
var (
	_ FileSystem = OSFileSystem{}
	_ FileSystem = (*MemoryFileSystem)(nil)
)
