package schema

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matchday-labs/protodrive/pkg/core"
)

// writeProto creates a definition file under dir, creating subdirectories
// as needed.
func writeProto(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestIndex_Discover(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "common.proto", `syntax = "proto3";
package wc;
message TeamRef { string id = 1; }
`)
	writeProto(t, dir, "match.proto", `syntax = "proto3";
import "common.proto";
package wc;
message Match { TeamRef home = 1; TeamRef away = 2; }
`)

	idx := NewIndex(dir)
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	all := idx.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 files, got %d", len(all))
	}
	if all[0].Name != "common.proto" || all[1].Name != "match.proto" {
		t.Errorf("unexpected names: %v, %v", all[0].Name, all[1].Name)
	}

	match, ok := idx.Lookup("match.proto")
	if !ok {
		t.Fatal("match.proto not found")
	}
	if !reflect.DeepEqual(match.Imports, []string{"common.proto"}) {
		t.Errorf("expected imports [common.proto], got %v", match.Imports)
	}
}

func TestIndex_Discover_Subdirectories(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "events/match.proto", `syntax = "proto3";
import "common.proto";
`)
	writeProto(t, dir, "common.proto", `syntax = "proto3";`)

	idx := NewIndex(dir)
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	if _, ok := idx.Lookup("events/match.proto"); !ok {
		t.Error("expected logical name events/match.proto for nested file")
	}
}

func TestIndex_Discover_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "common.proto", `syntax = "proto3";`)
	writeProto(t, dir, ".hidden.proto", `syntax = "proto3";`)
	writeProto(t, dir, ".staging/leftover.proto", `syntax = "proto3";`)

	idx := NewIndex(dir)
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	if len(idx.All()) != 1 {
		t.Errorf("expected only common.proto, got %d files", len(idx.All()))
	}
}

func TestIndex_Discover_AmbiguousName(t *testing.T) {
	primary := t.TempDir()
	extra := t.TempDir()
	writeProto(t, primary, "common.proto", `syntax = "proto3";`)
	writeProto(t, extra, "common.proto", `syntax = "proto3";`)

	idx := NewIndex(primary, extra)
	err := idx.Discover()

	var ambiguous *core.AmbiguousSchemaError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousSchemaError, got %v", err)
	}
	if ambiguous.Name != "common.proto" {
		t.Errorf("expected ambiguous name common.proto, got %q", ambiguous.Name)
	}
	if len(ambiguous.Paths) != 2 {
		t.Errorf("expected both candidate paths, got %v", ambiguous.Paths)
	}
}

func TestIndex_Resolve_TransitiveClosure(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "common.proto", `syntax = "proto3";`)
	writeProto(t, dir, "match.proto", `syntax = "proto3";
import "common.proto";
`)
	writeProto(t, dir, "prediction.proto", `syntax = "proto3";
import "match.proto";
`)
	writeProto(t, dir, "unrelated.proto", `syntax = "proto3";`)

	idx := NewIndex(dir)
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	files, err := idx.Resolve([]string{"prediction.proto"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	got := make([]string, len(files))
	for i, f := range files {
		got[i] = f.Name
	}
	want := []string{"common.proto", "match.proto", "prediction.proto"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected closure %v, got %v", want, got)
	}
}

func TestIndex_Resolve_MissingSchema(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "match.proto", `syntax = "proto3";
import "common.proto";
`)

	idx := NewIndex(dir)
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	_, err := idx.Resolve([]string{"match.proto"})
	var notFound *core.SchemaNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected SchemaNotFoundError, got %v", err)
	}
	if notFound.Name != "common.proto" {
		t.Errorf("expected missing name common.proto, got %q", notFound.Name)
	}
	if notFound.ImportedBy != "match.proto" {
		t.Errorf("expected importer match.proto, got %q", notFound.ImportedBy)
	}
}

func TestIndex_Resolve_MissingTopLevel(t *testing.T) {
	idx := NewIndex(t.TempDir())
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	_, err := idx.Resolve([]string{"ghost.proto"})
	var notFound *core.SchemaNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected SchemaNotFoundError, got %v", err)
	}
	if notFound.ImportedBy != "" {
		t.Errorf("top-level request should have no importer, got %q", notFound.ImportedBy)
	}
}

func TestIndex_Resolve_EmptyRequestResolvesAll(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "a.proto", `syntax = "proto3";`)
	writeProto(t, dir, "b.proto", `syntax = "proto3";`)

	idx := NewIndex(dir)
	if err := idx.Discover(); err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	files, err := idx.Resolve(nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected all 2 files, got %d", len(files))
	}
}

func TestParseImports_Forms(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "kitchen.proto", `syntax = "proto3";

import "common.proto";
import public "shared/base.proto";
import weak "legacy.proto";
import "google/protobuf/timestamp.proto";
// import "commented_out.proto";
import "common.proto";

message Sink {}
`)

	imports, err := parseImports(filepath.Join(dir, "kitchen.proto"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Well-known imports are the compiler's to resolve; duplicates collapse.
	want := []string{"common.proto", "shared/base.proto", "legacy.proto"}
	if !reflect.DeepEqual(imports, want) {
		t.Errorf("expected imports %v, got %v", want, imports)
	}
}

func TestIsWellKnown(t *testing.T) {
	if !IsWellKnown("google/protobuf/empty.proto") {
		t.Error("expected google/protobuf/empty.proto to be well-known")
	}
	if IsWellKnown("common.proto") {
		t.Error("common.proto should not be well-known")
	}
}
