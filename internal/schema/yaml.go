// internal/schema/yaml.go
//
// formlab – Schema: YAML document loader.
//
// Context
//   Each form variant ships a YAML document:
//
//	id: rhf-zod
//	title: React Hook Form + Zod
//	fields:
//	  - name: firstName
//	    kind: string
//	    constraints:
//	      - {kind: minLength, param: 2, message: "Too Short!"}
//	rules:
//	  - {name: passwords-match, kind: equal, fields: [password, confirmPassword],
//	     target: confirmPassword, message: "Passwords don't match"}
//
//   Parse decodes the document and hands it to Define, so YAML and Go
//   definitions share one set of structural checks.
//
//------------------------------------------------------------------------------

package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document mirrors the YAML layout.
type Document struct {
	ID     string  `yaml:"id"`
	Title  string  `yaml:"title"`
	Fields []Field `yaml:"fields"`
	Rules  []Rule  `yaml:"rules"`
}

// Parse decodes raw YAML into a FormSchema.  name is used in error text.
func Parse(name string, raw []byte) (*FormSchema, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", name, err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("schema %s: %w", name, &SchemaError{Reason: "missing required 'id'"})
	}
	s, err := Define(doc.Fields, doc.Rules, WithID(doc.ID), WithTitle(doc.Title))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return s, nil
}

// LoadFile reads and parses one YAML file.  It never touches the registry.
func LoadFile(path string) (*FormSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file %s: %w", path, err)
	}
	return Parse(path, raw)
}

// File is a parsed schema together with its origin and text.
type File struct {
	Path   string
	Raw    []byte
	Schema *FormSchema
}

// LoadFS parses every “*.yaml” file in fsys under dir.
func LoadFS(fsys fs.FS, dir string) ([]File, error) {
	var out []File
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		s, err := Parse(path, raw)
		if err != nil {
			return err // fail fast so issues surface loudly.
		}
		out = append(out, File{Path: path, Raw: raw, Schema: s})
		return nil
	})
	return out, err
}

// RegisterDir loads every YAML file under dir and registers it, replacing
// entries with the same ID.  A missing directory is not an error.  Paths in
// the result are relative to dir.
func RegisterDir(dir string) ([]File, error) {
	files, err := LoadFS(os.DirFS(dir), ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	for _, f := range files {
		Register(f.Schema)
	}
	return files, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
