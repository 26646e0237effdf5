package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Read decodes a JSON scene from r and validates it.
//
// Read returns an error if the JSON is malformed or if [Scene.Validate]
// rejects the result. Errors are wrapped with context; use the
// [github.com/matzehuels/layerstack/pkg/errors] helpers to inspect codes.
// Read does not close r.
func Read(r io.Reader) (*Scene, error) {
	var s Scene
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Import reads the JSON scene file at path. Relative image URLs in the file
// are left untouched; they resolve against the acquisition origin.
func Import(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// Write encodes s as indented JSON to w.
func Write(w io.Writer, s *Scene) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Export writes s as a JSON file at path, creating or truncating it.
func Export(path string, s *Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
