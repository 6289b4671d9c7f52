package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Loader loads graph documents by name.
type Loader interface {
	Load(name string) (*Document, error)
}

// FileLoader loads graph documents from YAML or JSON files on disk.
type FileLoader struct {
	dirs []string
}

// NewFileLoader creates a loader that searches the given directories.
func NewFileLoader(dirs ...string) *FileLoader {
	return &FileLoader{dirs: dirs}
}

var documentExts = []string{".yaml", ".yml", ".json"}

// Load searches for {name}.yaml, {name}.yml or {name}.json in each directory.
func (l *FileLoader) Load(name string) (*Document, error) {
	for _, dir := range l.dirs {
		for _, ext := range documentExts {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("graph: document %q not found in %v", name, l.dirs)
}

// LoadAll reads every document file in the configured directories, in
// lexical path order.
func (l *FileLoader) LoadAll() ([]*Document, error) {
	var paths []string
	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("graph: reading %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isDocumentFile(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	docs := make([]*Document, 0, len(paths))
	for _, path := range paths {
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile parses a single document file. JSON is used for .json files and
// YAML otherwise.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(data, filepath.Ext(path) == ".json")
	if err != nil {
		return nil, fmt.Errorf("graph: parsing %s: %w", path, err)
	}
	return doc, nil
}

// ParseDocument decodes a document from JSON or YAML bytes.
func ParseDocument(data []byte, isJSON bool) (*Document, error) {
	var doc Document
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalYAML encodes a document as YAML.
func MarshalYAML(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func isDocumentFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range documentExts {
		if ext == e {
			return true
		}
	}
	return false
}
