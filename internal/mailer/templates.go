package mailer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TemplateStore is a directory of *.txt mail templates, editable from
// the dashboard.
type TemplateStore struct {
	dir string
}

func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir}
}

// resolve validates a template name and maps it into the store
// directory. Names are bare *.txt filenames; anything resembling a path
// is rejected so dashboard edits cannot reach outside the directory.
func (s *TemplateStore) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	if !strings.HasSuffix(name, ".txt") {
		return "", fmt.Errorf("template %q: only .txt files are served", name)
	}
	return filepath.Join(s.dir, name), nil
}

// List returns the template filenames, sorted.
func (s *TemplateStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *TemplateStore) Read(name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(b), nil
}

func (s *TemplateStore) Write(name, content string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
