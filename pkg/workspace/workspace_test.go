package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

func writeWorkspace(t *testing.T, manifest string, plans map[string]string) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ManifestName), []byte(manifest), 0o644))

	for component, plan := range plans {
		dir := ComponentDir(root, component)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		if plan != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, PlanName), []byte(plan), 0o644))
		}
	}
	return root
}

const testManifest = `
components:
  - core
  - common
  - sup
lib:
  - core
  - common
lint:
  deny:
    - clippy::correctness
  allow:
    - clippy::too_many_arguments
`

func TestLoadManifest(t *testing.T) {
	root := writeWorkspace(t, testManifest, nil)

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "common", "sup"}, manifest.Components)
	assert.Equal(t, []string{"core", "common"}, manifest.Lib)
	assert.Equal(t, "cargo build", manifest.Command(VerbBuild))
	assert.Equal(t, "cargo test", manifest.Command(VerbUnit))
}

func TestLoadManifestRejectsUnknownLibComponent(t *testing.T) {
	root := writeWorkspace(t, "components: [core]\nlib: [nope]\n", nil)

	_, err := LoadManifest(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestLoadManifestRejectsDuplicates(t *testing.T) {
	root := writeWorkspace(t, "components: [core, core]\n", nil)

	_, err := LoadManifest(root)
	require.Error(t, err)
}

func TestLoadManifestRequiresComponents(t *testing.T) {
	root := writeWorkspace(t, "lib: []\n", nil)

	_, err := LoadManifest(root)
	require.Error(t, err)
}

func TestLintCommand(t *testing.T) {
	root := writeWorkspace(t, testManifest, nil)

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	assert.Equal(t,
		"cargo clippy --all-targets --tests -- -D clippy::correctness -A clippy::too_many_arguments",
		manifest.Command(VerbLint))
}

func TestToolchainOverride(t *testing.T) {
	root := writeWorkspace(t, "components: [web]\ntoolchain:\n  build: npm run build\n", nil)

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	assert.Equal(t, "npm run build", manifest.Command(VerbBuild))
	assert.Equal(t, "cargo test", manifest.Command(VerbUnit))
}

func TestParseVerb(t *testing.T) {
	verb, err := ParseVerb("lint")
	require.NoError(t, err)
	assert.Equal(t, VerbLint, verb)

	_, err = ParseVerb("deploy")
	require.Error(t, err)
}

func TestLoadPlan(t *testing.T) {
	root := writeWorkspace(t, testManifest, map[string]string{
		"core": `component(
    pkg="acme/hab-core",
    env={"RUST_BACKTRACE": "1"},
    unit="cargo test --no-default-features",
)
`,
	})

	plan, err := LoadPlan(testContext(), root, "core")
	require.NoError(t, err)

	assert.Equal(t, "acme/hab-core", plan.Ident.String())
	assert.Equal(t, "1", plan.Env["RUST_BACKTRACE"])
	assert.Equal(t, "cargo test --no-default-features", plan.Commands[VerbUnit])
	assert.Empty(t, plan.Commands[VerbBuild])
}

func TestLoadPlanMissingIsNotAnError(t *testing.T) {
	root := writeWorkspace(t, testManifest, map[string]string{"core": ""})

	plan, err := LoadPlan(testContext(), root, "core")
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestLoadPlanRequiresComponentCall(t *testing.T) {
	root := writeWorkspace(t, testManifest, map[string]string{
		"core": "x = 1\n",
	})

	_, err := LoadPlan(testContext(), root, "core")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component()")
}

func TestLoadPlanRejectsDoubleComponentCall(t *testing.T) {
	root := writeWorkspace(t, testManifest, map[string]string{
		"core": "component()\ncomponent()\n",
	})

	_, err := LoadPlan(testContext(), root, "core")
	require.Error(t, err)
}

func TestTasks(t *testing.T) {
	root := writeWorkspace(t, testManifest, map[string]string{
		"core": `component(unit="cargo test --lib")`,
	})

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	tasks, err := Tasks(testContext(), root, manifest)
	require.NoError(t, err)

	// 5 verbs x (3 components + all + lib)
	assert.Len(t, tasks, 25)

	unitCore := tasks["unit-core"]
	require.NotNil(t, unitCore)
	assert.Equal(t, []string{"cargo test --lib"}, unitCore.Cmds)
	assert.Equal(t, ComponentDir(root, "core"), unitCore.Base)

	unitSup := tasks["unit-sup"]
	require.NotNil(t, unitSup)
	assert.Equal(t, []string{"cargo test"}, unitSup.Cmds)

	unitAll := tasks["unit-all"]
	require.NotNil(t, unitAll)
	assert.Equal(t, []string{"unit-core", "unit-common", "unit-sup"}, unitAll.Deps)
	assert.Empty(t, unitAll.Cmds)

	buildLib := tasks["build-lib"]
	require.NotNil(t, buildLib)
	assert.Equal(t, []string{"build-core", "build-common"}, buildLib.Deps)
}

func TestRunTask(t *testing.T) {
	root := writeWorkspace(t, "components: [core]\ntoolchain:\n  build: echo built > result.txt\n", map[string]string{"core": ""})

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	tasks, err := Tasks(testContext(), root, manifest)
	require.NoError(t, err)

	require.NoError(t, RunTask(testContext(), "build-core", tasks, false, false))

	content, err := os.ReadFile(filepath.Join(ComponentDir(root, "core"), "result.txt"))
	require.NoError(t, err)
	assert.Equal(t, "built\n", string(content))
}

func TestRunTaskDryRun(t *testing.T) {
	root := writeWorkspace(t, "components: [core]\ntoolchain:\n  build: echo built > result.txt\n", map[string]string{"core": ""})

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	tasks, err := Tasks(testContext(), root, manifest)
	require.NoError(t, err)

	require.NoError(t, RunTask(testContext(), "build-core", tasks, true, false))

	_, err = os.Stat(filepath.Join(ComponentDir(root, "core"), "result.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunTaskAggregateFailure(t *testing.T) {
	root := writeWorkspace(t, "components: [core, sup]\ntoolchain:\n  unit: 'false'\n",
		map[string]string{"core": "", "sup": ""})

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	tasks, err := Tasks(testContext(), root, manifest)
	require.NoError(t, err)

	err = RunTask(testContext(), "unit-all", tasks, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit-core")
}

func TestRunTaskUnknown(t *testing.T) {
	err := RunTask(testContext(), "unit-nope", TaskList{}, false, false)
	require.Error(t, err)
}

func TestRunTasksParallel(t *testing.T) {
	root := writeWorkspace(t, "components: [core, sup]\ntoolchain:\n  unit: echo ok > unit.txt\n",
		map[string]string{"core": "", "sup": ""})

	manifest, err := LoadManifest(root)
	require.NoError(t, err)

	tasks, err := Tasks(testContext(), root, manifest)
	require.NoError(t, err)

	err = RunTasksParallel(testContext(), []string{"unit-core", "unit-sup"}, tasks, 2, false, false)
	require.NoError(t, err)

	for _, component := range []string{"core", "sup"} {
		_, err := os.Stat(filepath.Join(ComponentDir(root, component), "unit.txt"))
		assert.NoError(t, err)
	}
}
