// Package catalog loads class rosters and reading passages from YAML files
// and imports them into a [store.Store].
//
// Example file:
//
//	class:
//	  name: "3º B"
//	  school: "Escuela Benito Juárez"
//	students:
//	  - id: ana
//	    name: "Ana López"
//	    grade: 3
//	contents:
//	  - id: perro
//	    title: "El perro"
//	    text: "El perro corre en el parque."
//	  - id: fabula
//	    title: "La liebre y la tortuga"
//	    text_file: lecturas/fabula.txt
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// File is the top-level structure of a catalog YAML file.
type File struct {
	Class    ClassMeta      `yaml:"class"`
	Students []StudentEntry `yaml:"students"`
	Contents []ContentEntry `yaml:"contents"`
}

// ClassMeta holds descriptive metadata. It is not persisted.
type ClassMeta struct {
	Name   string `yaml:"name"`
	School string `yaml:"school"`
}

// StudentEntry describes one student.
type StudentEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Grade int    `yaml:"grade"`
}

// ContentEntry describes one reading passage. Exactly one of Text and
// TextFile must be set; TextFile is resolved relative to the catalog file.
type ContentEntry struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Text     string `yaml:"text"`
	TextFile string `yaml:"text_file"`
	Level    int    `yaml:"level"`
}

// Summary reports what [Import] wrote.
type Summary struct {
	Students int `json:"students"`
	Contents int `json:"contents"`
}

// LoadFile reads and parses a catalog file from disk, inlining any
// text_file references. The result is validated.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	cf, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range cf.Contents {
		c := &cf.Contents[i]
		if c.TextFile == "" || c.Text != "" {
			continue
		}
		p := c.TextFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("catalog: contents[%d] text_file: %w", i, err)
		}
		c.Text = strings.TrimSpace(string(b))
		c.TextFile = ""
	}
	if err := Validate(cf); err != nil {
		return nil, fmt.Errorf("catalog: %q: %w", path, err)
	}
	return cf, nil
}

// LoadFromReader parses and validates catalog YAML from r. text_file
// references are not allowed because there is no base directory.
func LoadFromReader(r io.Reader) (*File, error) {
	cf, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cf); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cf, nil
}

func decode(r io.Reader) (*File, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return &cf, nil
}

// Validate checks the whole file and returns every problem joined.
//
// Rules:
//   - Student names must be non-empty.
//   - Content text must contain at least one word; text_file must be
//     resolved already.
//   - Non-empty IDs must be unique within their list.
func Validate(cf *File) error {
	var errs []error

	seen := make(map[string]int, len(cf.Students))
	for i, s := range cf.Students {
		prefix := fmt.Sprintf("students[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("%s.name must not be empty", prefix))
		}
		errs = appendDuplicate(errs, seen, prefix, s.ID, i)
	}

	seen = make(map[string]int, len(cf.Contents))
	for i, c := range cf.Contents {
		prefix := fmt.Sprintf("contents[%d]", i)
		switch {
		case c.TextFile != "":
			errs = append(errs, fmt.Errorf("%s.text_file %q is not resolved", prefix, c.TextFile))
		case !hasWords(c.Text):
			errs = append(errs, fmt.Errorf("%s.text must contain at least one word", prefix))
		}
		if c.Level < 0 {
			errs = append(errs, fmt.Errorf("%s.level %d must not be negative", prefix, c.Level))
		}
		errs = appendDuplicate(errs, seen, prefix, c.ID, i)
	}
	return errors.Join(errs...)
}

func appendDuplicate(errs []error, seen map[string]int, prefix, id string, i int) []error {
	if id == "" {
		return errs
	}
	if prev, ok := seen[id]; ok {
		return append(errs, fmt.Errorf("%s.id %q duplicates entry %d", prefix, id, prev))
	}
	seen[id] = i
	return errs
}

func hasWords(text string) bool {
	for _, t := range scoring.Tokenize(text) {
		if !t.Punct {
			return true
		}
	}
	return false
}

// Import writes every student and content of cf into s. Existing records
// with the same ID are replaced. An error aborts the import and returns
// the counts so far.
func Import(ctx context.Context, s store.Store, cf *File) (Summary, error) {
	var sum Summary
	if cf == nil {
		return sum, errors.New("catalog: file must not be nil")
	}
	for _, st := range cf.Students {
		if _, err := s.PutStudent(ctx, store.Student{ID: st.ID, Name: strings.TrimSpace(st.Name), Grade: st.Grade}); err != nil {
			return sum, fmt.Errorf("catalog: import student %q: %w", st.Name, err)
		}
		sum.Students++
	}
	for _, c := range cf.Contents {
		content := store.Content{ID: c.ID, Title: c.Title, Text: c.Text, Level: c.Level}
		if _, err := s.PutContent(ctx, content); err != nil {
			return sum, fmt.Errorf("catalog: import content %q: %w", c.Title, err)
		}
		sum.Contents++
	}
	return sum, nil
}
