// File system access for corpus files.
//
// Every open, create, copy and rename performed by the package goes through
// the FileSystem interface so that corpora can live somewhere other than a
// plain host path. Two backends are provided: Local, which passes names
// straight to the os package, and Root, which confines every name to a
// directory using os.Root so that "../" and symlink escapes are rejected
// by the kernel rather than by string checks.
package linechunk

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// File is an open, readable corpus file. Reads are positional (ReadAt) so
// that several readers sharing one handle never disturb each other's
// offsets. *os.File satisfies File.
type File interface {
	io.ReaderAt
	io.Closer
	Stat() (fs.FileInfo, error)
}

// FileSystem is the capability set needed to read corpora and stage shard
// output.
type FileSystem interface {
	Open(name string) (File, error)
	Create(name string) (io.WriteCloser, error)
	Copy(src, dst string, overwrite bool) error
	Exists(name string) bool
	IsFile(name string) bool
	List(dir string) ([]string, error)
	MkdirAll(dir string) error
	Remove(name string) error
	Rename(src, dst string) error
	Chmod(name string, mode fs.FileMode) error
	// LocalPath returns a host path usable by tools outside this package.
	LocalPath(name string) (string, error)
}

// Local is the host file system. Names are used as given.
type Local struct{}

func (Local) Open(name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (Local) Create(name string) (io.WriteCloser, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (l Local) Copy(src, dst string, overwrite bool) error {
	return copyFile(l, src, dst, overwrite)
}

func (Local) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (Local) IsFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

func (Local) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	return names(entries), nil
}

func (Local) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func (Local) Remove(name string) error {
	return os.Remove(name)
}

func (Local) Rename(src, dst string) error {
	return os.Rename(src, dst)
}

func (Local) Chmod(name string, mode fs.FileMode) error {
	return os.Chmod(name, mode)
}

func (Local) LocalPath(name string) (string, error) {
	return filepath.Abs(name)
}

// Root is a file system sandboxed beneath a single directory. Names are
// relative to that directory and may not escape it.
type Root struct {
	root *os.Root
}

// OpenRoot opens dir as a sandboxed file system. The caller must Close it.
func OpenRoot(dir string) (*Root, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &Root{root: root}, nil
}

// Close releases the directory handle. Files already opened through the
// Root remain usable.
func (r *Root) Close() error {
	return r.root.Close()
}

func (r *Root) Open(name string) (File, error) {
	f, err := r.root.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Root) Create(name string) (io.WriteCloser, error) {
	f, err := r.root.Create(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Root) Copy(src, dst string, overwrite bool) error {
	return copyFile(r, src, dst, overwrite)
}

func (r *Root) Exists(name string) bool {
	_, err := r.root.Stat(name)
	return err == nil
}

func (r *Root) IsFile(name string) bool {
	info, err := r.root.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

func (r *Root) List(dir string) ([]string, error) {
	entries, err := fs.ReadDir(r.root.FS(), filepath.ToSlash(filepath.Clean(dir)))
	if err != nil {
		return nil, err
	}
	return names(entries), nil
}

func (r *Root) MkdirAll(dir string) error {
	return r.root.MkdirAll(dir, 0755)
}

func (r *Root) Remove(name string) error {
	return r.root.Remove(name)
}

func (r *Root) Rename(src, dst string) error {
	return r.root.Rename(src, dst)
}

func (r *Root) Chmod(name string, mode fs.FileMode) error {
	return r.root.Chmod(name, mode)
}

func (r *Root) LocalPath(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("path escapes root: %s", name)
	}
	return filepath.Join(r.root.Name(), name), nil
}

// copyFile streams src to dst through fsys. Without overwrite an existing
// dst is left untouched and ErrExists is returned.
func copyFile(fsys FileSystem, src, dst string, overwrite bool) error {
	if !overwrite && fsys.Exists(dst) {
		return fmt.Errorf("%w: %s", ErrExists, dst)
	}

	in, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("copy: open: %w", err)
	}
	defer in.Close()

	sz, err := size(in)
	if err != nil {
		return fmt.Errorf("copy: stat: %w", err)
	}

	out, err := fsys.Create(dst)
	if err != nil {
		return fmt.Errorf("copy: create: %w", err)
	}

	if _, err := io.CopyBuffer(out, io.NewSectionReader(in, 0, sz), make([]byte, 64*1024)); err != nil {
		out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}

func names(entries []fs.DirEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}
