// Package fs provides a filesystem abstraction for plugin source trees.
package fs

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// A PathedFS provides access to a hierarchical file system locatable at some path. Every
// materialized source (a git checkout, a download directory, or a local plugin directory) is
// exposed to the rest of sprocket through this interface so the Resolver and Renderer never need
// to care whether a plugin's files came from git, HTTP, or the local disk.
type PathedFS interface {
	fs.FS
	// Path returns the absolute path where the file system is rooted.
	Path() string
	// Sub returns a PathedFS corresponding to the subtree rooted at dir.
	Sub(dir string) (PathedFS, error)
}

// ReadLinkFS is a PathedFS which can also resolve symlinks without following them, since plugin
// trees (especially cloned git repos) may contain symlinks that matter to glob resolution.
type ReadLinkFS interface {
	PathedFS
	ReadLink(name string) (string, error)
	StatLink(name string) (fs.FileInfo, error)
}

// DirExists checks whether dirPath exists and is a directory.
func DirExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	return err == nil && info.IsDir()
}

// EnsureExists creates dirPath (and any missing parents) if it doesn't already exist.
func EnsureExists(dirPath string) error {
	const perm = 0o755 // owner rwx, group rx, public rx
	return os.MkdirAll(dirPath, perm)
}

// DirFS returns a PathedFS for a tree of files rooted at the absolute directory dir.
func DirFS(dir string) ReadLinkFS {
	return &dirFS{
		path: dir,
		fsys: os.DirFS(dir),
	}
}

type dirFS struct {
	path string
	fsys fs.FS
}

func (f dirFS) Path() string {
	return f.path
}

func (f dirFS) Open(name string) (fs.File, error) {
	return f.fsys.Open(name)
}

func (f dirFS) Sub(name string) (PathedFS, error) {
	return DirFS(filepath.Join(f.path, filepath.FromSlash(name))), nil
}

func (f dirFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(f.fsys, name)
}

func (f dirFS) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(f.fsys, name)
}

func (f dirFS) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(f.fsys, name)
}

func (f dirFS) ReadLink(name string) (string, error) {
	return os.Readlink(filepath.FromSlash(path.Join(f.path, name)))
}

func (f dirFS) StatLink(name string) (fs.FileInfo, error) {
	return os.Lstat(filepath.FromSlash(path.Join(f.path, name)))
}

// GetSubdirPath returns the path of subPath relative to the root's path, using forward slashes.
// It can recover a path's location within a cache root, for example after a glob search.
func GetSubdirPath(root PathedFS, subPath string) (string, error) {
	rel, err := filepath.Rel(root.Path(), subPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// ContainsPath reports whether candidate (once resolved relative to root) stays within root,
// i.e. it does not escape root via `..` segments. Both paths must already be absolute or both
// relative to the same base.
func ContainsPath(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
