package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday-labs/protodrive/internal/testutil"
	"github.com/matchday-labs/protodrive/pkg/core"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestStager_PublishFresh(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "go", Plugin: "go"}

	s, err := NewStager(outputRoot, "run-1", testutil.NewTestLogger(t))
	require.NoError(t, err)

	staging, err := s.Begin(target)
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "match.pb.go"), "package wc")

	require.NoError(t, s.Publish(target))
	require.NoError(t, s.Close())

	published, err := os.ReadFile(filepath.Join(outputRoot, "go", "match.pb.go"))
	require.NoError(t, err)
	assert.Equal(t, "package wc", string(published))

	// No staging leftovers.
	_, err = os.Stat(filepath.Join(outputRoot, stagingDirName))
	assert.True(t, os.IsNotExist(err))
}

func TestStager_PublishReplacesPriorContents(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "go", Plugin: "go"}

	// A previously published tree with a file the new run no longer produces.
	writeFile(t, filepath.Join(outputRoot, "go", "stale.pb.go"), "old")
	writeFile(t, filepath.Join(outputRoot, "go", "match.pb.go"), "old")

	s, err := NewStager(outputRoot, "run-2", testutil.NewTestLogger(t))
	require.NoError(t, err)

	staging, err := s.Begin(target)
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "match.pb.go"), "new")

	require.NoError(t, s.Publish(target))

	published, err := os.ReadFile(filepath.Join(outputRoot, "go", "match.pb.go"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(published))

	// Replacement is wholesale, not a merge.
	_, err = os.Stat(filepath.Join(outputRoot, "go", "stale.pb.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestStager_DiscardLeavesPublishedUntouched(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "python", Plugin: "python"}

	writeFile(t, filepath.Join(outputRoot, "python", "match_pb2.py"), "published")

	s, err := NewStager(outputRoot, "run-3", testutil.NewTestLogger(t))
	require.NoError(t, err)

	staging, err := s.Begin(target)
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "match_pb2.py"), "half-written")

	require.NoError(t, s.Discard(target))
	require.NoError(t, s.Close())

	published, err := os.ReadFile(filepath.Join(outputRoot, "python", "match_pb2.py"))
	require.NoError(t, err)
	assert.Equal(t, "published", string(published))
}

func TestStager_TargetsStageDisjointPaths(t *testing.T) {
	outputRoot := t.TempDir()
	s, err := NewStager(outputRoot, "run-4", testutil.NewTestLogger(t))
	require.NoError(t, err)

	goDir, err := s.Begin(core.Target{Name: "go", Plugin: "go"})
	require.NoError(t, err)
	pyDir, err := s.Begin(core.Target{Name: "python", Plugin: "python"})
	require.NoError(t, err)

	assert.NotEqual(t, goDir, pyDir)
}

func TestStager_RunsStageDisjointPaths(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "go", Plugin: "go"}

	s1, err := NewStager(outputRoot, "run-a", testutil.NewTestLogger(t))
	require.NoError(t, err)
	s2, err := NewStager(outputRoot, "run-b", testutil.NewTestLogger(t))
	require.NoError(t, err)

	d1, err := s1.Begin(target)
	require.NoError(t, err)
	d2, err := s2.Begin(target)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestStager_OutDirConfig(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "go", Plugin: "go", Out: "bindings/golang"}

	s, err := NewStager(outputRoot, "run-5", testutil.NewTestLogger(t))
	require.NoError(t, err)

	staging, err := s.Begin(target)
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "match.pb.go"), "package wc")

	require.NoError(t, s.Publish(target))

	_, err = os.Stat(filepath.Join(outputRoot, "bindings", "golang", "match.pb.go"))
	assert.NoError(t, err)
}

func TestStager_FailedPublishRestoresPriorOutput(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "go", Plugin: "go"}

	writeFile(t, filepath.Join(outputRoot, "go", "match.pb.go"), "published")

	s, err := NewStager(outputRoot, "run-7", testutil.NewTestLogger(t))
	require.NoError(t, err)

	staging, err := s.Begin(target)
	require.NoError(t, err)
	writeFile(t, filepath.Join(staging, "match.pb.go"), "new")

	// Remove the staged tree so the staged-to-final rename fails after the
	// prior output has already been moved aside.
	require.NoError(t, os.RemoveAll(staging))

	err = s.Publish(target)
	var publishErr *core.PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "go", publishErr.Target)

	// The prior tree was restored, not lost with the failed swap.
	published, readErr := os.ReadFile(filepath.Join(outputRoot, "go", "match.pb.go"))
	require.NoError(t, readErr)
	assert.Equal(t, "published", string(published))
}

func TestStager_RejectsEscapingOutDir(t *testing.T) {
	outputRoot := t.TempDir()
	target := core.Target{Name: "evil", Plugin: "go", Out: "../elsewhere"}

	s, err := NewStager(outputRoot, "run-6", testutil.NewTestLogger(t))
	require.NoError(t, err)

	_, err = s.Begin(target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes output root")
}
