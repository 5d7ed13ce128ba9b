package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matchday-labs/protodrive/pkg/core"
)

// Index locates definition files under one or more search roots and records
// their identity and import lists. Filesystem access is read-only.
type Index struct {
	roots []string
	files map[string]*core.DefinitionFile
}

// NewIndex creates an index over the given search roots. The first root is
// the primary search root; additional roots behave like extra include paths.
func NewIndex(roots ...string) *Index {
	return &Index{
		roots: roots,
		files: make(map[string]*core.DefinitionFile),
	}
}

// Roots returns the configured search roots.
func (idx *Index) Roots() []string {
	return idx.roots
}

// Discover walks the search roots for .proto files and parses their import
// statements. The same logical name appearing under two roots is ambiguous
// and aborts discovery; a silent first-match pick would hide the conflict.
func (idx *Index) Discover() error {
	for _, root := range idx.roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("failed to resolve search root %s: %w", root, err)
		}

		err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				// Skip hidden directories (e.g. the staging area under gen/).
				if path != absRoot && strings.HasPrefix(info.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(info.Name(), ".") || !strings.HasSuffix(info.Name(), ".proto") {
				return nil
			}

			name, err := logicalName(absRoot, path)
			if err != nil {
				return err
			}
			if existing, ok := idx.files[name]; ok {
				return &core.AmbiguousSchemaError{Name: name, Paths: []string{existing.Path, path}}
			}

			imports, err := parseImports(path)
			if err != nil {
				return err
			}
			idx.files[name] = &core.DefinitionFile{Name: name, Path: path, Imports: imports}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the definition file for a logical name.
func (idx *Index) Lookup(name string) (*core.DefinitionFile, bool) {
	f, ok := idx.files[name]
	return f, ok
}

// All returns every discovered definition file, name-ascending.
func (idx *Index) All() []*core.DefinitionFile {
	files := make([]*core.DefinitionFile, 0, len(idx.files))
	for _, f := range idx.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Resolve returns the transitive import closure of the requested logical
// names, name-ascending. An empty request resolves everything discovered.
// A name that resolves to no file fails with a *core.SchemaNotFoundError
// naming the missing identifier and its importer.
func (idx *Index) Resolve(names []string) ([]*core.DefinitionFile, error) {
	if len(names) == 0 {
		for _, f := range idx.All() {
			names = append(names, f.Name)
		}
	}

	resolved := make(map[string]*core.DefinitionFile)

	type request struct {
		name       string
		importedBy string
	}
	queue := make([]request, 0, len(names))
	for _, name := range names {
		queue = append(queue, request{name: name})
	}

	for len(queue) > 0 {
		req := queue[0]
		queue = queue[1:]

		if _, done := resolved[req.name]; done {
			continue
		}
		f, ok := idx.files[req.name]
		if !ok {
			return nil, &core.SchemaNotFoundError{Name: req.name, ImportedBy: req.importedBy}
		}
		resolved[req.name] = f

		for _, imp := range f.Imports {
			queue = append(queue, request{name: imp, importedBy: f.Name})
		}
	}

	files := make([]*core.DefinitionFile, 0, len(resolved))
	for _, f := range resolved {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// logicalName converts a file path to the logical name used in import
// statements: the path relative to the search root, with forward slashes.
func logicalName(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("failed to derive logical name for %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}
