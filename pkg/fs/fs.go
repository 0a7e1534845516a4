// Package fs defines the on-disk layout packages are installed into.
package fs

import (
	"path/filepath"
	"strings"

	"github.com/habitat-sh/core/pkg/ident"
)

// InstallTmpPrefix marks directories used to stage packages while they
// are unpacked. Entries with this prefix are never valid releases.
const InstallTmpPrefix = ".hab-pkg-install"

// RootPath returns the directory all packages live under for the given
// filesystem root. An empty fsRoot means "/".
func RootPath(fsRoot string) string {
	if fsRoot == "" {
		fsRoot = string(filepath.Separator)
	}
	return filepath.Join(fsRoot, "hab", "pkgs")
}

// PkgInstallPath returns the directory a package is installed into:
// <root>/<origin>/<name>/<version>/<release>. Partial idents yield the
// deepest path their parts allow.
func PkgInstallPath(i ident.PackageIdent, fsRoot string) string {
	path := filepath.Join(RootPath(fsRoot), i.Origin, i.Name)
	if i.Version != "" {
		path = filepath.Join(path, i.Version)
		if i.Release != "" {
			path = filepath.Join(path, i.Release)
		}
	}
	return path
}

// CachePath returns the directory used for downloaded archives and
// other scratch state under the given filesystem root.
func CachePath(fsRoot string) string {
	if fsRoot == "" {
		fsRoot = string(filepath.Separator)
	}
	return filepath.Join(fsRoot, "hab", "cache")
}

// IsInstallTmp reports whether the given path element is a staging
// directory left behind (or in use) by an unpack operation.
func IsInstallTmp(name string) bool {
	return strings.HasPrefix(name, InstallTmpPrefix)
}
