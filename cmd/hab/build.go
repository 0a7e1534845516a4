package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/habitat-sh/core/pkg/workspace"
)

func init() {
	for _, verb := range workspace.Verbs {
		rootCmd.AddCommand(newVerbCommand(verb))
	}
}

var verbDescriptions = map[workspace.Verb]string{
	workspace.VerbBuild: "Compiles components",
	workspace.VerbUnit:  "Runs component unit tests",
	workspace.VerbLint:  "Runs the lint checks for components",
	workspace.VerbFmt:   "Formats component sources",
	workspace.VerbClean: "Removes component build artifacts",
}

func newVerbCommand(verb workspace.Verb) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [component...]", verb),
		Short: verbDescriptions[verb],
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, verb, args)
		},
	}

	cmd.Flags().Bool("all", false, "apply to every component")
	cmd.Flags().Bool("lib", false, "apply to the library components")
	cmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	cmd.Flags().BoolP("force", "f", false, "rerun tasks even when they already ran during this invocation")
	return cmd
}

func runVerb(cmd *cobra.Command, verb workspace.Verb, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	lib, _ := cmd.Flags().GetBool("lib")
	dryRun, _ := cmd.Flags().GetBool("dry")
	force, _ := cmd.Flags().GetBool("force")

	root, err := findWorkspaceRoot()
	if err != nil {
		return err
	}

	manifest, err := workspace.LoadManifest(root)
	if err != nil {
		return err
	}

	ctx := workspace.WithLogger(cmd.Context(), &logger)
	tasks, err := workspace.Tasks(ctx, root, manifest)
	if err != nil {
		return err
	}

	if !all && !lib && len(args) == 0 {
		printTasks(tasks)
		return nil
	}

	var names []string
	switch {
	case all:
		names = []string{workspace.TaskName(verb, "all")}
	case lib:
		names = []string{workspace.TaskName(verb, "lib")}
	default:
		for _, component := range args {
			if !manifest.IsComponent(component) {
				return eris.Errorf("%s is not a component of this workspace", component)
			}
			names = append(names, workspace.TaskName(verb, component))
		}
	}

	// Unit tests don't contend for the toolchain's build lock, so
	// aggregates can fan out.
	if verb == workspace.VerbUnit && (all || lib) {
		members := tasks[names[0]].Deps
		return workspace.RunTasksParallel(ctx, members, tasks, runtime.NumCPU(), dryRun, force)
	}

	for _, name := range names {
		err = workspace.RunTask(ctx, name, tasks, dryRun, force)
		if err != nil {
			return err
		}
	}
	return nil
}

func printTasks(tasks workspace.TaskList) {
	fmt.Println("Available tasks:")

	maxNameLen := 0
	names := tasks.Names()
	for _, name := range names {
		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
	}

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, name := range names {
		fmt.Printf(lineFmt, name+":", tasks[name].Desc)
	}
}

// findWorkspaceRoot walks up from the working directory until it finds
// a hab.yaml.
func findWorkspaceRoot() (string, error) {
	path, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	for {
		manifestPath := filepath.Join(path, workspace.ManifestName)
		_, err := os.Stat(manifestPath)
		if err == nil {
			return path, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", manifestPath)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", eris.Errorf("no %s found; are you inside a workspace?", workspace.ManifestName)
		}
		path = parent
	}
}
