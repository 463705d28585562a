// Package source handles fetching model files and their referenced resources.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source fetches raw resources for a loader. Relative references inside a
// model file are resolved against the directory of the referencing file with
// Dir and Join before being passed here.
type Source interface {
	// Binary fetches a resource as raw bytes.
	Binary(path string) ([]byte, error)

	// Text fetches a resource as a string.
	Text(path string) (string, error)

	// JSON fetches and unmarshals a resource.
	JSON(path string) (any, error)
}

// Dir returns everything up to and including the last '/' of path,
// or an empty string if path contains no '/'.
func Dir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx+1]
}

// Join resolves a relative reference against a directory returned by Dir.
func Join(dir, relative string) string {
	return dir + relative
}

// FileSource fetches resources from the local filesystem, optionally rooted
// at a base directory.
type FileSource struct {
	Root string
}

// Binary reads a file as raw bytes.
func (s *FileSource) Binary(path string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	return data, nil
}

// Text reads a file as a string.
func (s *FileSource) Text(path string) (string, error) {
	data, err := s.Binary(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON reads and unmarshals a file.
func (s *FileSource) JSON(path string) (any, error) {
	data, err := s.Binary(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, nil
}

func (s *FileSource) resolve(path string) string {
	if s.Root == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(s.Root, filepath.FromSlash(path))
}

// MemorySource serves resources from an in-memory map, keyed by path.
// Used in tests and for embedded assets.
type MemorySource map[string][]byte

// Binary returns the mapped bytes for path.
func (s MemorySource) Binary(path string) ([]byte, error) {
	data, ok := s[path]
	if !ok {
		return nil, fmt.Errorf("fetching %s: file not found", path)
	}
	return data, nil
}

// Text returns the mapped bytes for path as a string.
func (s MemorySource) Text(path string) (string, error) {
	data, err := s.Binary(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON unmarshals the mapped bytes for path.
func (s MemorySource) JSON(path string) (any, error) {
	data, err := s.Binary(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, nil
}
