package core

// DefinitionFile represents one discovered schema source file.
// It is created during discovery, immutable once parsed, and discarded
// at the end of a run.
type DefinitionFile struct {
	// Name is the logical name used in import statements (e.g. "common.proto"
	// or "events/match.proto" for files in subdirectories).
	Name string
	// Path is the absolute filesystem path to the file.
	Path string
	// Imports are the logical names referenced by import statements,
	// in source order. Well-known compiler-provided imports are excluded.
	Imports []string
}

// Target describes one configured output binding language.
type Target struct {
	// Name identifies the target in diagnostics and run history.
	Name string `koanf:"name"`
	// Plugin is the generator plugin identifier, mapped to the compiler's
	// --<plugin>_out flag (e.g. "go", "python", "go-grpc").
	Plugin string `koanf:"plugin"`
	// Out is the output subdirectory under the output root. Defaults to Name.
	Out string `koanf:"out"`
	// Flags are extra generator-specific compiler flags, passed verbatim.
	Flags []string `koanf:"flags"`
}

// OutDir returns the output subdirectory for the target.
func (t Target) OutDir() string {
	if t.Out != "" {
		return t.Out
	}
	return t.Name
}

// CompilationJob is one (ordered file list, target) pair handed to the
// compiler invoker. Files are relative to the search root, listed in
// dependency order. StagingDir is the job's private output directory.
type CompilationJob struct {
	Target     Target
	Files      []string
	StagingDir string
}
