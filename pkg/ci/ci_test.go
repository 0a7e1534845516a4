package ci

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitat-sh/core/pkg/workspace"
)

func testContext() context.Context {
	logger := zerolog.Nop()
	return workspace.WithLogger(context.Background(), &logger)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvComponents, EnvComponentsAlias, EnvBuildAction,
		EnvBuildActionAlias, EnvForceTest, EnvBranch, EnvPullRequest} {
		t.Setenv(key, "")
	}
}

func git(t *testing.T, root string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, string(output))
}

func commitFile(t *testing.T, root, file, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(file))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	git(t, root, "add", ".")
	git(t, root, "commit", "-m", "update "+file)
}

func testRepo(t *testing.T) (string, *workspace.Manifest) {
	t.Helper()

	root := t.TempDir()
	git(t, root, "init")

	manifest := "components: [core, common, sup]\nlib: [core, common]\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, workspace.ManifestName), []byte(manifest), 0o644))
	commitFile(t, root, "README.md", "hi\n")

	parsed, err := workspace.LoadManifest(root)
	require.NoError(t, err)
	return root, parsed
}

func TestDetectPlanChangedComponents(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)

	commitFile(t, root, "components/core/src/lib.rs", "fn main() {}\n")

	plan, err := DetectPlan(testContext(), root, manifest)
	require.NoError(t, err)

	assert.Equal(t, []string{"core"}, plan.Components)
	assert.Equal(t, []workspace.Verb{workspace.VerbUnit}, plan.Actions)
	assert.NotEmpty(t, plan.Commit)
}

func TestDetectPlanIgnoresFilesOutsideComponents(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)

	commitFile(t, root, "docs/guide.md", "words\n")

	plan, err := DetectPlan(testContext(), root, manifest)
	require.NoError(t, err)
	assert.Empty(t, plan.Components)
}

func TestDetectPlanExplicitOverride(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)
	t.Setenv(EnvComponents, "core;sup")

	plan, err := DetectPlan(testContext(), root, manifest)
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "sup"}, plan.Components)
}

func TestDetectPlanRejectsUnknownOverride(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)
	t.Setenv(EnvComponents, "nope")

	_, err := DetectPlan(testContext(), root, manifest)
	require.Error(t, err)
}

func TestDetectPlanForceTest(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)
	t.Setenv(EnvForceTest, "true")

	plan, err := DetectPlan(testContext(), root, manifest)
	require.NoError(t, err)
	assert.Equal(t, manifest.Components, plan.Components)
}

func TestDetectPlanBuildAction(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)
	commitFile(t, root, "docs/guide.md", "words\n")
	t.Setenv(EnvBuildActionAlias, "build")

	plan, err := DetectPlan(testContext(), root, manifest)
	require.NoError(t, err)
	assert.Equal(t, []workspace.Verb{workspace.VerbUnit, workspace.VerbBuild}, plan.Actions)
}

func TestDetectPlanRejectsUnknownAction(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)
	t.Setenv(EnvBuildAction, "deploy")

	_, err := DetectPlan(testContext(), root, manifest)
	require.Error(t, err)
}

func TestStateRoundtrip(t *testing.T) {
	state, err := OpenState(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	missing, err := state.Lookup("core", workspace.VerbUnit)
	require.NoError(t, err)
	assert.Nil(t, missing)

	result := RunResult{
		Component: "core",
		Action:    workspace.VerbUnit,
		Commit:    "abc123",
		Passed:    true,
		Duration:  3 * time.Second,
		Finished:  time.Now(),
	}
	require.NoError(t, state.Record(result))

	loaded, err := state.Lookup("core", workspace.VerbUnit)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, result.Commit, loaded.Commit)
	assert.True(t, loaded.Passed)
}

func TestShouldSkip(t *testing.T) {
	state, err := OpenState(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	require.NoError(t, state.Record(RunResult{
		Component: "core", Action: workspace.VerbUnit, Commit: "abc", Passed: true,
	}))
	require.NoError(t, state.Record(RunResult{
		Component: "sup", Action: workspace.VerbUnit, Commit: "abc", Passed: false,
	}))

	skip, err := state.ShouldSkip("core", workspace.VerbUnit, "abc")
	require.NoError(t, err)
	assert.True(t, skip)

	// a different commit invalidates the record
	skip, err = state.ShouldSkip("core", workspace.VerbUnit, "def")
	require.NoError(t, err)
	assert.False(t, skip)

	// failures are never skipped
	skip, err = state.ShouldSkip("sup", workspace.VerbUnit, "abc")
	require.NoError(t, err)
	assert.False(t, skip)

	// unknown components are never skipped
	skip, err = state.ShouldSkip("web", workspace.VerbUnit, "abc")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestRunRecordsResults(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "components", "core"), 0o755))

	tasks, err := workspace.Tasks(testContext(), root, manifest)
	require.NoError(t, err)
	// swap in a command that always passes
	tasks["unit-core"].Cmds = []string{"true"}

	state, err := OpenState(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	plan := &Plan{
		Components: []string{"core"},
		Actions:    []workspace.Verb{workspace.VerbUnit},
		Commit:     "abc",
	}
	require.NoError(t, Run(testContext(), plan, tasks, state, Options{}))

	result, err := state.Lookup("core", workspace.VerbUnit)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Passed)
	assert.Equal(t, "abc", result.Commit)
}

func TestRunSkipUnchanged(t *testing.T) {
	clearEnv(t)
	root, manifest := testRepo(t)

	tasks, err := workspace.Tasks(testContext(), root, manifest)
	require.NoError(t, err)
	// would fail if executed; the green record must prevent that
	tasks["unit-core"].Cmds = []string{"false"}

	state, err := OpenState(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	require.NoError(t, state.Record(RunResult{
		Component: "core", Action: workspace.VerbUnit, Commit: "abc", Passed: true,
	}))

	plan := &Plan{
		Components: []string{"core"},
		Actions:    []workspace.Verb{workspace.VerbUnit},
		Commit:     "abc",
	}
	require.NoError(t, Run(testContext(), plan, tasks, state, Options{SkipUnchanged: true}))
}
