package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/habitat-sh/core/pkg/archive"
	"github.com/habitat-sh/core/pkg/depot"
	"github.com/habitat-sh/core/pkg/fs"
	"github.com/habitat-sh/core/pkg/ident"
	"github.com/habitat-sh/core/pkg/install"
	"github.com/habitat-sh/core/pkg/process"
	"github.com/habitat-sh/core/pkg/target"
)

var pkgCmd = &cobra.Command{
	Use:   "pkg",
	Short: "Inspects and manages installed packages",
}

var pkgPathCmd = &cobra.Command{
	Use:   "path <ident>",
	Short: "Prints the install directory of a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := loadPackage(args[0])
		if err != nil {
			return err
		}

		fmt.Println(pkg.InstalledPath())
		return nil
	},
}

var pkgDepsCmd = &cobra.Command{
	Use:   "deps <ident>",
	Short: "Prints the direct dependencies of a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := loadPackage(args[0])
		if err != nil {
			return err
		}

		deps, err := pkg.Deps()
		if err != nil {
			return err
		}

		for _, dep := range deps {
			fmt.Println(dep)
		}
		return nil
	},
}

var pkgTDepsCmd = &cobra.Command{
	Use:   "tdeps <ident>",
	Short: "Prints the transitive dependencies of a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := loadPackage(args[0])
		if err != nil {
			return err
		}

		deps, err := pkg.TDeps()
		if err != nil {
			return err
		}

		for _, dep := range deps {
			fmt.Println(dep)
		}
		return nil
	},
}

var pkgEnvCmd = &cobra.Command{
	Use:   "env <ident>",
	Short: "Prints the environment a package command runs with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := loadPackage(args[0])
		if err != nil {
			return err
		}

		environment, err := pkg.EnvironmentForCommand()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(environment))
		for key := range environment {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			fmt.Printf("%s=%s\n", key, environment[key])
		}
		return nil
	},
}

var pkgExecCmd = &cobra.Command{
	Use:   "exec <ident> <command> [args...]",
	Short: "Executes a command with a package's environment",
	Long: `exec resolves the package, computes the environment its commands expect
and replaces the current process with the given command. On success this
command never returns.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := loadPackage(args[0])
		if err != nil {
			return err
		}

		environment, err := pkg.EnvironmentForCommand()
		if err != nil {
			return err
		}

		env := make([]string, 0, len(environment))
		for key, value := range environment {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}

		return process.Become(args[1], args[2:], env)
	},
}

var pkgListCmd = &cobra.Command{
	Use:   "list [ident]",
	Short: "Lists installed packages, optionally filtered by a partial ident",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pattern ident.PackageIdent
		if len(args) > 0 {
			var err error
			pattern, err = ident.Parse(args[0])
			if err != nil {
				return err
			}
		}

		packages, err := install.List(pattern, cfg.FSRoot)
		if err != nil {
			return err
		}

		for _, pkg := range packages {
			fmt.Println(pkg)
		}
		return nil
	},
}

var pkgInstallCmd = &cobra.Command{
	Use:   "install <ident|archive>",
	Short: "Installs a package from a .hart file or the depot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		if !isArchivePath(path) {
			pkg, err := ident.Parse(path)
			if err != nil {
				return err
			}
			if !pkg.FullyQualified() {
				return ident.NotFullyQualified{Ident: pkg}
			}

			client, err := depot.New(cfg.DepotURL)
			if err != nil {
				return err
			}

			path, err = client.FetchArchive(cmd.Context(), pkg, target.Active(), fs.CachePath(cfg.FSRoot))
			if err != nil {
				return err
			}
		}

		hart, err := archive.Open(path)
		if err != nil {
			return err
		}

		if hart.Target != target.Active() {
			return eris.Errorf("%s was built for %s, not for this machine (%s)",
				hart.Ident, hart.Target, target.Active())
		}

		return hart.Unpack(cfg.FSRoot)
	},
}

// isArchivePath decides whether an install argument names a local
// archive rather than a package ident. Anything that exists on disk or
// carries an archive extension is a file; idents never do either.
func isArchivePath(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}

	for _, ext := range []string{".hart", ".tar", ".tar.xz", ".tar.br"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func loadPackage(raw string) (*install.PackageInstall, error) {
	pattern, err := ident.Parse(raw)
	if err != nil {
		return nil, err
	}

	return install.Load(pattern, cfg.FSRoot)
}

func init() {
	pkgCmd.AddCommand(pkgPathCmd, pkgDepsCmd, pkgTDepsCmd, pkgEnvCmd, pkgExecCmd, pkgListCmd, pkgInstallCmd)
	rootCmd.AddCommand(pkgCmd)
}
