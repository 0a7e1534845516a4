// Package ci decides which components a CI run has to test and records
// the results so unchanged components can be skipped later.
package ci

import (
	"context"
	"os/exec"
	"path"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"github.com/habitat-sh/core/pkg/env"
	"github.com/habitat-sh/core/pkg/workspace"
)

// Environment variables making up the CI contract. The lowercase names
// are accepted as aliases because AppVeyor forwards them that way.
const (
	EnvComponents       = "HAB_COMPONENTS"
	EnvComponentsAlias  = "hab_components"
	EnvBuildAction      = "HAB_BUILD_ACTION"
	EnvBuildActionAlias = "hab_build_action"
	EnvForceTest        = "HAB_FORCE_TEST"
	EnvBranch           = "APPVEYOR_REPO_BRANCH"
	EnvPullRequest      = "APPVEYOR_PULL_REQUEST_NUMBER"
)

// Plan is the work a CI run has to do.
type Plan struct {
	Components []string
	Actions    []workspace.Verb
	Commit     string
}

// DetectPlan inspects the CI environment and the git history to decide
// which components need testing and which actions to run on them.
//
// The component set comes from, in order of precedence: an explicit
// HAB_COMPONENTS list, HAB_FORCE_TEST (all components), or the files
// changed since the base commit. On pull request builds the base is
// origin/master, otherwise the previous commit.
func DetectPlan(ctx context.Context, root string, manifest *workspace.Manifest) (*Plan, error) {
	plan := &Plan{
		Actions: []workspace.Verb{workspace.VerbUnit},
	}

	for _, raw := range listVar(EnvBuildActionAlias, EnvBuildAction) {
		verb, err := workspace.ParseVerb(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "%s names an unknown action", EnvBuildAction)
		}
		if verb != workspace.VerbUnit {
			plan.Actions = append(plan.Actions, verb)
		}
	}

	commit, err := gitOutput(ctx, root, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	plan.Commit = commit

	if explicit := listVar(EnvComponents, EnvComponentsAlias); explicit != nil {
		for _, name := range explicit {
			if !manifest.IsComponent(name) {
				return nil, eris.Errorf("%s names the unknown component %s", EnvComponents, name)
			}
		}
		log.Info().Strs("components", explicit).Msg("Component list overridden from environment")
		plan.Components = explicit
		return plan, nil
	}

	if env.Bool(EnvForceTest, false) {
		log.Info().Msg("Testing all components")
		plan.Components = manifest.Components
		return plan, nil
	}

	changed, err := changedComponents(ctx, root, manifest)
	if err != nil {
		return nil, err
	}
	plan.Components = changed
	return plan, nil
}

func listVar(keys ...string) []string {
	for _, key := range keys {
		if values := env.List(key); values != nil {
			return values
		}
	}
	return nil
}

// baseRef picks the commit the diff is computed against.
func baseRef() string {
	if _, isPR := env.Var(EnvPullRequest); isPR {
		return "origin/master"
	}

	if branch, ok := env.Var(EnvBranch); ok {
		log.Debug().Str("branch", branch).Msg("Branch build; diffing against the previous commit")
	}
	return "HEAD~1"
}

func changedComponents(ctx context.Context, root string, manifest *workspace.Manifest) ([]string, error) {
	base := baseRef()
	diff, err := gitOutput(ctx, root, "diff", "--name-only", base+"...HEAD")
	if err != nil {
		return nil, err
	}

	affected := map[string]bool{}
	for _, file := range strings.Split(diff, "\n") {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}

		parts := strings.Split(path.Clean(file), "/")
		if len(parts) < 2 || parts[0] != "components" {
			continue
		}
		if manifest.IsComponent(parts[1]) {
			affected[parts[1]] = true
		}
	}

	components := make([]string, 0, len(affected))
	for name := range affected {
		components = append(components, name)
	}
	sort.Strings(components)

	log.Info().Str("base", base).Strs("components", components).Msg("Detected changed components")
	return components, nil
}

func gitOutput(ctx context.Context, root string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", root}, args...)...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", eris.Errorf("git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", eris.Wrapf(err, "git %s failed", strings.Join(args, " "))
	}
	return strings.TrimSpace(string(output)), nil
}
