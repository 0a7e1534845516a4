package workspace

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		runTasks map[string]bool
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	return ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
}

func getTaskEnv(task *Task) expand.Environ {
	envVars := os.Environ()

	for name, value := range task.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

// RunTask executes the given task and its dependencies.
func RunTask(ctx context.Context, task string, tasks TaskList, dryRun, force bool) error {
	rctx := runtimeCtx{
		runTasks: make(map[string]bool),
	}

	ctx = context.WithValue(ctx, runtimeCtxKey{}, &rctx)
	taskMeta, found := tasks[task]
	if !found {
		return eris.Errorf("Task %s not found", task)
	}

	return runTaskInternal(ctx, taskMeta, tasks, dryRun, force)
}

// RunTasksParallel executes the named tasks concurrently, at most limit
// at a time. The first failure cancels the remaining tasks.
func RunTasksParallel(ctx context.Context, names []string, tasks TaskList, limit int, dryRun, force bool) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for _, name := range names {
		name := name
		group.Go(func() error {
			return RunTask(ctx, name, tasks, dryRun, force)
		})
	}

	return group.Wait()
}

func runTaskInternal(ctx context.Context, task *Task, tasks TaskList, dryRun, force bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rctx := getRuntimeCtx(ctx)
	status, ok := rctx.runTasks[task.Name]
	if ok {
		if status && !force {
			// this task has already been run
			log(ctx).Debug().Msgf("Task %s already run", task.Name)
			return nil
		}

		if !status {
			return eris.Errorf("Task %s was called recursively", task.Name)
		}
	}

	rctx.runTasks[task.Name] = false

	for _, dep := range task.Deps {
		depTask, ok := tasks[dep]
		if !ok {
			return eris.Errorf("Task %s not found", dep)
		}

		err := runTaskInternal(ctx, depTask, tasks, dryRun, force)
		if err != nil {
			return eris.Wrapf(err, "Task %s failed due to its dependency %s", task.Name, dep)
		}
	}

	if len(task.Cmds) > 0 {
		err := runCommands(ctx, task, dryRun)
		if err != nil {
			return err
		}
	}

	rctx.runTasks[task.Name] = true
	return nil
}

func runCommands(ctx context.Context, task *Task, dryRun bool) error {
	runner, err := interp.New(
		interp.Dir(task.Base),
		interp.Env(getTaskEnv(task)),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	parser := syntax.NewParser()
	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for idx, item := range task.Cmds {
		result, err := parser.Parse(strings.NewReader(item), fmt.Sprintf("%s:%d", task.Name, idx))
		if err != nil {
			return eris.Wrapf(err, "failed to parse command %s", item)
		}

		for _, stm := range result.Stmts {
			strBuffer.Reset()
			printer.Print(&strBuffer, stm)
			log(ctx).Info().
				Str("task", task.Name).
				Bool("command", true).
				Msg(strBuffer.String())

			if !dryRun {
				err = runner.Run(ctx, stm)
				if err != nil {
					return eris.Wrapf(err, "Task %s failed", task.Name)
				}

				if runner.Exited() {
					return nil
				}
			}
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
