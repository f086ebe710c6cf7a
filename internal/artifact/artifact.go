// Package artifact manages uploaded game artifacts on disk.
//
// Artifacts are laid out as <root>/<game name>/<version>/<files...>. A version
// directory is installed atomically: files are staged under a throwaway
// directory first and renamed into place once complete, so a concurrent
// launch never sees a half-written artifact.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File is one artifact file with its path relative to the version directory.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Library is an artifact tree rooted at a directory.
type Library struct {
	root string
}

func NewLibrary(root string) *Library {
	return &Library{root: root}
}

// VersionDir returns the directory holding one version of a game.
func (l *Library) VersionDir(name, version string) string {
	return filepath.Join(l.root, name, version)
}

// Save installs the files as the given version of a game. An existing
// version directory is replaced.
func (l *Library) Save(name, version string, files []File) error {
	staging := filepath.Join(l.root, ".staging", uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, f := range files {
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return fmt.Errorf("artifact file %q escapes the version directory", f.Name)
		}
		path := filepath.Join(staging, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", f.Name, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o755); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}

	dir := l.VersionDir(name, version)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create game dir: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove old version: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("install version: %w", err)
	}

	return nil
}

// Load reads all files of one version of a game.
func (l *Library) Load(name, version string) ([]File, error) {
	dir := l.VersionDir(name, version)

	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files = append(files, File{
			Name:    filepath.ToSlash(rel),
			Content: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read artifact %s %s: %w", name, version, err)
	}

	return files, nil
}
