package core

import (
	"fmt"
	"strings"
)

// SchemaNotFoundError reports a logical name that resolved to no file
// under the search root. Fatal for the whole run.
type SchemaNotFoundError struct {
	// Name is the unresolved logical name.
	Name string
	// ImportedBy is the logical name of the importing file, empty when the
	// name was requested directly at the top level.
	ImportedBy string
}

func (e *SchemaNotFoundError) Error() string {
	if e.ImportedBy != "" {
		return fmt.Sprintf("schema not found: %q (imported by %s)", e.Name, e.ImportedBy)
	}
	return fmt.Sprintf("schema not found: %q", e.Name)
}

// AmbiguousSchemaError reports a logical name that resolved to more than
// one file under the search root. Fatal for the whole run.
type AmbiguousSchemaError struct {
	Name  string
	Paths []string
}

func (e *AmbiguousSchemaError) Error() string {
	return fmt.Sprintf("ambiguous schema %q: candidates %s", e.Name, strings.Join(e.Paths, ", "))
}

// CyclicDependencyError reports an import cycle. Cycle holds the full path
// of logical names, closed back to the first entry ([a b a]). Fatal for
// the whole run.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

// CompilationError reports a failed compiler invocation for one target.
// Diagnostic carries the compiler's stderr verbatim. Scoped to the target;
// sibling targets still run.
type CompilationError struct {
	Target     string
	Diagnostic string
	Err        error
}

func (e *CompilationError) Error() string {
	msg := fmt.Sprintf("compilation failed for target %s", e.Target)
	if d := strings.TrimSpace(e.Diagnostic); d != "" {
		msg += ": " + d
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompilationError) Unwrap() error { return e.Err }

// GeneratorUnavailableError is the CompilationError variant raised when the
// compiler executable or a target's generator plugin is missing or
// incompatible. Scoped to the target.
type GeneratorUnavailableError struct {
	Target string
	Plugin string
	Err    error
}

func (e *GeneratorUnavailableError) Error() string {
	return fmt.Sprintf("generator %q unavailable for target %s: %v", e.Plugin, e.Target, e.Err)
}

func (e *GeneratorUnavailableError) Unwrap() error { return e.Err }

// PublishError reports a staged artifact set that could not be moved into
// place. The previously published output is left untouched. Scoped to the
// target.
type PublishError struct {
	Target string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed for target %s: %v", e.Target, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
