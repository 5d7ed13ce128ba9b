// Package schema discovers definition files under the search roots and
// parses their import relationships. It does not interpret message or
// service bodies; deep parsing belongs to the external compiler.
package schema

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Import statement forms: import "x.proto"; import public "x.proto";
// import weak "x.proto";
var importPattern = regexp.MustCompile(`^\s*import\s+(?:(?:public|weak)\s+)?"([^"]+)"\s*;`)

// wellKnownPrefix marks imports the external compiler resolves from its own
// include path. They are never looked up under the local search roots.
const wellKnownPrefix = "google/protobuf/"

// IsWellKnown reports whether a logical name refers to a compiler-provided
// definition file.
func IsWellKnown(name string) bool {
	return strings.HasPrefix(name, wellKnownPrefix)
}

// parseImports extracts the logical names referenced by import statements,
// in source order, excluding well-known compiler-provided imports.
func parseImports(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	defer f.Close()

	var imports []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		matches := importPattern.FindStringSubmatch(scanner.Text())
		if len(matches) < 2 {
			continue
		}
		name := matches[1]
		if IsWellKnown(name) || seen[name] {
			continue
		}
		seen[name] = true
		imports = append(imports, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}

	return imports, nil
}
