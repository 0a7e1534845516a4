package ci

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/habitat-sh/core/pkg/workspace"
)

// Options controls how Run executes a plan.
type Options struct {
	SkipUnchanged bool
	DryRun        bool
}

// Run executes the plan through the workspace runner, one action at a
// time, and records every outcome in the state database. With
// SkipUnchanged set, components that already passed an action at the
// plan's commit are not run again.
func Run(ctx context.Context, plan *Plan, tasks workspace.TaskList, state *StateDB, opts Options) error {
	for _, action := range plan.Actions {
		for _, component := range plan.Components {
			if opts.SkipUnchanged {
				skip, err := state.ShouldSkip(component, action, plan.Commit)
				if err != nil {
					return err
				}
				if skip {
					workspace.Log(ctx).Info().
						Str("component", component).
						Str("action", string(action)).
						Msg("already passed at this commit, skipping")
					continue
				}
			}

			start := time.Now()
			runErr := workspace.RunTask(ctx, workspace.TaskName(action, component), tasks, opts.DryRun, false)

			if !opts.DryRun {
				result := RunResult{
					Component: component,
					Action:    action,
					Commit:    plan.Commit,
					Passed:    runErr == nil,
					Duration:  time.Since(start),
					Finished:  time.Now(),
				}
				if err := state.Record(result); err != nil {
					return err
				}
			}

			if runErr != nil {
				return eris.Wrapf(runErr, "%s failed for %s", action, component)
			}
		}
	}

	return nil
}
