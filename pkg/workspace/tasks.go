package workspace

import (
	"context"
	"fmt"
	"sort"
)

// Task is one runnable unit of work. Component tasks carry a command,
// aggregate tasks only carry dependencies.
type Task struct {
	Name      string
	Desc      string
	Component string
	Base      string
	Env       map[string]string
	Deps      []string
	Cmds      []string
}

// TaskList maps task names to their definitions.
type TaskList map[string]*Task

// Names returns all task names in sorted order.
func (tasks TaskList) Names() []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskName builds the canonical name for a verb applied to a component.
func TaskName(verb Verb, component string) string {
	return fmt.Sprintf("%s-%s", verb, component)
}

// Tasks expands the manifest into the full task list: one
// <verb>-<component> task per verb and component, plus <verb>-all and
// <verb>-lib aggregates. Per-component plans override commands and add
// env vars.
func Tasks(ctx context.Context, root string, manifest *Manifest) (TaskList, error) {
	tasks := TaskList{}

	for _, component := range manifest.Components {
		plan, err := LoadPlan(ctx, root, component)
		if err != nil {
			return nil, err
		}

		for _, verb := range Verbs {
			cmd := manifest.Command(verb)
			env := map[string]string{}
			if plan != nil {
				if override := plan.Commands[verb]; override != "" {
					cmd = override
				}
				for name, value := range plan.Env {
					env[name] = value
				}
			}

			name := TaskName(verb, component)
			tasks[name] = &Task{
				Name:      name,
				Desc:      fmt.Sprintf("Run %s for the %s component", verb, component),
				Component: component,
				Base:      ComponentDir(root, component),
				Env:       env,
				Cmds:      []string{cmd},
			}
		}
	}

	for _, verb := range Verbs {
		tasks[TaskName(verb, "all")] = &Task{
			Name: TaskName(verb, "all"),
			Desc: fmt.Sprintf("Run %s for every component", verb),
			Deps: taskNames(verb, manifest.Components),
		}
		tasks[TaskName(verb, "lib")] = &Task{
			Name: TaskName(verb, "lib"),
			Desc: fmt.Sprintf("Run %s for the library components", verb),
			Deps: taskNames(verb, manifest.Lib),
		}
	}

	return tasks, nil
}

func taskNames(verb Verb, components []string) []string {
	names := make([]string, len(components))
	for idx, component := range components {
		names[idx] = TaskName(verb, component)
	}
	return names
}
