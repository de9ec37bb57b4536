package testutil

import (
	"io/fs"
	"os"
	"time"
)

// MockFS is a mock implementation of subsync.FileSystem for testing.
type MockFS struct {
	StatFunc    func(name string) (fs.FileInfo, error)
	ReadDirFunc func(name string) ([]os.DirEntry, error)
}

func (m *MockFS) Stat(name string) (fs.FileInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(name)
	}
	return nil, fs.ErrNotExist
}

func (m *MockFS) ReadDir(name string) ([]os.DirEntry, error) {
	if m.ReadDirFunc != nil {
		return m.ReadDirFunc(name)
	}
	return nil, nil
}

// DirInfo is a minimal fs.FileInfo for an existing directory.
type DirInfo struct {
	DirName string
}

func (d DirInfo) Name() string       { return d.DirName }
func (d DirInfo) Size() int64        { return 0 }
func (d DirInfo) Mode() fs.FileMode  { return fs.ModeDir }
func (d DirInfo) ModTime() time.Time { return time.Time{} }
func (d DirInfo) IsDir() bool        { return true }
func (d DirInfo) Sys() any           { return nil }

// FileInfo is a minimal fs.FileInfo for an existing regular file.
type FileInfo struct {
	FileName string
}

func (f FileInfo) Name() string       { return f.FileName }
func (f FileInfo) Size() int64        { return 0 }
func (f FileInfo) Mode() fs.FileMode  { return 0 }
func (f FileInfo) ModTime() time.Time { return time.Time{} }
func (f FileInfo) IsDir() bool        { return false }
func (f FileInfo) Sys() any           { return nil }

// DirEntry is a minimal os.DirEntry for a directory listing.
type DirEntry struct {
	EntryName string
	Dir       bool
}

func (e DirEntry) Name() string               { return e.EntryName }
func (e DirEntry) IsDir() bool                { return e.Dir }
func (e DirEntry) Type() fs.FileMode          { return fs.ModeDir }
func (e DirEntry) Info() (fs.FileInfo, error) { return DirInfo{DirName: e.EntryName}, nil }
