// Package vault provides the local Markdown vault storage adapter.
//
// All paths handed to a Store are vault-relative with forward slashes; the
// store resolves them against its root. The store is a thin I/O wrapper with
// no sync decision logic.
package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store is a Markdown vault rooted at a directory.
type Store struct {
	root string
}

// Open opens (creating if necessary) a vault rooted at dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("vault directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute vault root directory.
func (s *Store) Root() string {
	return s.root
}

// Abs resolves a vault-relative path to an absolute one.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Rel converts an absolute path inside the vault back to a vault-relative
// one with forward slashes.
func (s *Store) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the vault", abs)
	}
	return filepath.ToSlash(rel), nil
}

// Exists reports whether a document or directory exists at the path.
func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Abs(rel))
	return err == nil
}

// Read returns the full text of a document.
func (s *Store) Read(rel string) (string, error) {
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return string(data), nil
}

// Write creates or overwrites a document, creating parent folders as needed.
func (s *Store) Write(rel, content string) error {
	return s.WriteBinary(rel, []byte(content))
}

// WriteBinary creates or overwrites a file with raw bytes.
func (s *Store) WriteBinary(rel string, data []byte) error {
	abs := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", rel, err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(rel string) error {
	if err := os.Remove(s.Abs(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", rel, err)
	}
	return nil
}

// Rename moves a document, creating the destination folder as needed.
func (s *Store) Rename(oldRel, newRel string) error {
	dst := s.Abs(newRel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", newRel, err)
	}
	if err := os.Rename(s.Abs(oldRel), dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", oldRel, newRel, err)
	}
	return nil
}

// MkdirAll creates a folder (and parents) inside the vault.
func (s *Store) MkdirAll(rel string) error {
	if err := os.MkdirAll(s.Abs(rel), 0755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", rel, err)
	}
	return nil
}

// List returns the vault-relative paths of all Markdown documents under the
// given folder, recursively. A missing folder yields an empty list.
func (s *Store) List(dir string) ([]string, error) {
	base := s.Abs(dir)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var docs []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		docs = append(docs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents under %s: %w", dir, err)
	}
	return docs, nil
}

// Frontmatter reads and decodes the structured header of a document.
// Documents without a header return (nil, nil).
func (s *Store) Frontmatter(rel string) (*Frontmatter, error) {
	content, err := s.Read(rel)
	if err != nil {
		return nil, err
	}
	fm, has, err := ParseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	if !has {
		return nil, nil
	}
	return fm, nil
}
