// Package install resolves and reads packages that have been unpacked
// into the filesystem layout defined by pkg/fs.
package install

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"github.com/habitat-sh/core/pkg/fs"
	"github.com/habitat-sh/core/pkg/ident"
	"github.com/habitat-sh/core/pkg/target"
)

// DefaultCfgFile is the package's default configuration, kept next to
// the metafiles.
const DefaultCfgFile = "default.toml"

const pathKey = "PATH"

// PackageInstall represents a single package installed under a
// filesystem root.
type PackageInstall struct {
	Ident ident.PackageIdent

	fsRootPath      string
	packageRootPath string
	installedPath   string
}

// Load verifies an installation of a package and returns it.
//
// Only origin and name are required; a partial ident resolves to the
// newest installed version/release that satisfies it. Candidates built
// for a different target are ignored. An empty fsRoot searches under
// "/".
func Load(pattern ident.PackageIdent, fsRoot string) (*PackageInstall, error) {
	candidates, rootPath, err := packageList(fsRoot)
	if err != nil {
		return nil, err
	}

	if pattern.FullyQualified() {
		for _, candidate := range candidates {
			if candidate.Satisfies(pattern) {
				return newInstall(pattern, fsRoot, rootPath), nil
			}
		}
		return nil, PackageNotFound{Ident: pattern}
	}

	latest, found := ident.Latest(candidates, pattern)
	if !found {
		return nil, PackageNotFound{Ident: pattern}
	}
	return newInstall(latest, fsRoot, rootPath), nil
}

// LoadAtLeast resolves the newest installed package with the given
// origin and name that is at least as new as the given version and
// release. A missing version is treated as a minimum of 0/0.
func LoadAtLeast(pattern ident.PackageIdent, fsRoot string) (*PackageInstall, error) {
	minimum := pattern
	if minimum.Version == "" {
		minimum.Version = "0"
		minimum.Release = "0"
	}

	candidates, rootPath, err := packageList(fsRoot)
	if err != nil {
		return nil, err
	}

	var winner ident.PackageIdent
	found := false
	for _, candidate := range candidates {
		if candidate.Origin != pattern.Origin || candidate.Name != pattern.Name {
			continue
		}
		if ident.Compare(candidate, minimum) < 0 {
			continue
		}
		if !found || ident.Compare(candidate, winner) > 0 {
			winner = candidate
			found = true
		}
	}

	if !found {
		return nil, PackageNotFound{Ident: pattern}
	}
	return newInstall(winner, fsRoot, rootPath), nil
}

// List returns every installed package matching the pattern, sorted by
// ident. A zero pattern lists everything.
func List(pattern ident.PackageIdent, fsRoot string) ([]ident.PackageIdent, error) {
	candidates, _, err := packageList(fsRoot)
	if err != nil {
		return nil, err
	}

	matches := make([]ident.PackageIdent, 0, len(candidates))
	for _, candidate := range candidates {
		if pattern.Origin == "" || candidate.Satisfies(pattern) {
			matches = append(matches, candidate)
		}
	}

	sort.Sort(ident.Collection(matches))
	return matches, nil
}

func newInstall(i ident.PackageIdent, fsRoot, rootPath string) *PackageInstall {
	return &PackageInstall{
		Ident:           i,
		fsRootPath:      fsRoot,
		packageRootPath: rootPath,
		installedPath:   fs.PkgInstallPath(i, fsRoot),
	}
}

// InstalledPath returns the directory the package lives in.
func (p *PackageInstall) InstalledPath() string {
	return p.installedPath
}

func (p *PackageInstall) String() string {
	return p.Ident.String()
}

// IsRunnable reports whether the package ships a runnable service,
// determined by the presence of a run hook.
func (p *PackageInstall) IsRunnable() bool {
	for _, candidate := range []string{
		filepath.Join(p.installedPath, "hooks", "run"),
		filepath.Join(p.installedPath, "run"),
	} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return true
		}
	}
	return false
}

// Type reports what kind of package this is. Packages without a TYPE
// metafile predate composites and are standalone.
func (p *PackageInstall) Type() (PackageType, error) {
	body, err := p.readMetafile(MetaFileType)
	if err != nil {
		if isNotFound(err) {
			return Standalone, nil
		}
		return "", err
	}
	return ParsePackageType(body)
}

// Deps returns the package's direct dependencies.
func (p *PackageInstall) Deps() ([]ident.PackageIdent, error) {
	return p.readDeps(MetaFileDeps, true)
}

// TDeps returns the package's transitive dependencies.
func (p *PackageInstall) TDeps() ([]ident.PackageIdent, error) {
	return p.readDeps(MetaFileTDeps, true)
}

// Services returns the services bundled in a composite package. These
// idents are as given in the composite's plan and need not be fully
// qualified.
func (p *PackageInstall) Services() ([]ident.PackageIdent, error) {
	return p.readDeps(MetaFileServices, false)
}

// Paths returns the entries of the package's PATH metafile, filtered
// to those below the package's own prefix. Older Windows packages
// without a PATH metafile fall back to the RUNTIME_ENVIRONMENT value.
func (p *PackageInstall) Paths() ([]string, error) {
	pkgPrefix := fs.PkgInstallPath(p.Ident, "")

	body, err := p.readMetafile(MetaFilePath)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		if runtime.GOOS != "windows" {
			return []string{}, nil
		}

		env, err := p.RuntimeEnvironment()
		if err != nil {
			return nil, err
		}
		return filterPaths(env[pathKey], pkgPrefix), nil
	}

	return filterPaths(body, pkgPrefix), nil
}

func filterPaths(joined, prefix string) []string {
	result := []string{}
	for _, entry := range filepath.SplitList(joined) {
		if entry != "" && strings.HasPrefix(entry, prefix) {
			result = append(result, entry)
		}
	}
	return result
}

// RuntimePaths returns the ordered PATH entries needed to run commands
// from this package, taken from the RUNTIME_PATH metafile. Packages
// predating RUNTIME_PATH fall back to the legacy computation.
func (p *PackageInstall) RuntimePaths() ([]string, error) {
	body, err := p.readMetafile(MetaFileRuntimePath)
	if err != nil {
		if isNotFound(err) {
			return p.legacyRuntimePaths()
		}
		return nil, err
	}

	if body == "" {
		return []string{}, nil
	}
	return filepath.SplitList(body), nil
}

// legacyRuntimePaths builds a runtime path from PATH metafiles: the
// package's own entries first, then its direct dependencies in declared
// order, then the remaining transitive dependencies. Every entry
// appears once, at its first position.
func (p *PackageInstall) legacyRuntimePaths() ([]string, error) {
	paths := []string{}
	seen := make(map[string]bool)

	appendPaths := func(pkg *PackageInstall) error {
		pkgPaths, err := pkg.Paths()
		if err != nil {
			return err
		}
		for _, entry := range pkgPaths {
			if !seen[entry] {
				seen[entry] = true
				paths = append(paths, entry)
			}
		}
		return nil
	}

	if err := appendPaths(p); err != nil {
		return nil, err
	}

	for _, file := range []MetaFile{MetaFileDeps, MetaFileTDeps} {
		deps, err := p.readDeps(file, true)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			depInstall, err := Load(dep, p.fsRootPath)
			if err != nil {
				return nil, eris.Wrapf(err, "failed to load dependency %s", dep)
			}
			if err := appendPaths(depInstall); err != nil {
				return nil, err
			}
		}
	}

	return paths, nil
}

// RuntimeEnvironment returns the parsed RUNTIME_ENVIRONMENT metafile,
// or an empty map if the package has none.
func (p *PackageInstall) RuntimeEnvironment() (map[string]string, error) {
	body, err := p.readMetafile(MetaFileRuntimeEnv)
	if err != nil {
		if isNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return parseKeyValue(body, MetaFileRuntimeEnv)
}

// EnvironmentForCommand returns every environment variable needed to
// run a command in the context of this package. Any PATH value from the
// runtime environment is discarded and rebuilt from the runtime paths.
func (p *PackageInstall) EnvironmentForCommand() (map[string]string, error) {
	env, err := p.RuntimeEnvironment()
	if err != nil {
		return nil, err
	}
	delete(env, pathKey)

	paths, err := p.RuntimePaths()
	if err != nil {
		return nil, err
	}
	if joined := strings.Join(paths, string(os.PathListSeparator)); joined != "" {
		env[pathKey] = joined
	}

	return env, nil
}

// Binds returns the package's required binds.
func (p *PackageInstall) Binds() ([]Bind, error) {
	return p.readBinds(MetaFileBinds)
}

// BindsOptional returns the package's optional binds.
func (p *PackageInstall) BindsOptional() ([]Bind, error) {
	return p.readBinds(MetaFileBindsOptional)
}

// AllBinds returns the package's binds, required first.
func (p *PackageInstall) AllBinds() ([]Bind, error) {
	binds, err := p.Binds()
	if err != nil {
		return nil, err
	}
	optional, err := p.BindsOptional()
	if err != nil {
		return nil, err
	}
	return append(binds, optional...), nil
}

func (p *PackageInstall) readBinds(file MetaFile) ([]Bind, error) {
	body, err := p.readMetafile(file)
	if err != nil {
		if isNotFound(err) {
			return []Bind{}, nil
		}
		return nil, err
	}

	binds := []Bind{}
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		bind, err := ParseBind(line)
		if err != nil {
			return nil, MetaFileMalformed{File: file}
		}
		binds = append(binds, bind)
	}
	return binds, nil
}

// BindMap returns the bind mappings of a composite package: for each
// bundled service, which services satisfy its binds.
func (p *PackageInstall) BindMap() (map[ident.PackageIdent][]BindMapping, error) {
	body, err := p.readMetafile(MetaFileBindMap)
	if err != nil {
		if isNotFound(err) {
			return map[ident.PackageIdent][]BindMapping{}, nil
		}
		return nil, err
	}

	bindMap := make(map[ident.PackageIdent][]BindMapping)
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, MetaFileMalformed{File: MetaFileBindMap}
		}
		service, err := ident.Parse(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, MetaFileMalformed{File: MetaFileBindMap}
		}

		mappings := []BindMapping{}
		for _, item := range strings.Fields(parts[1]) {
			mapping, err := ParseBindMapping(item)
			if err != nil {
				return nil, err
			}
			mappings = append(mappings, mapping)
		}
		bindMap[service] = mappings
	}
	return bindMap, nil
}

// Exports returns the mappings defined by the package's exports: keys
// other services can look up against this package's configuration.
func (p *PackageInstall) Exports() (map[string]string, error) {
	body, err := p.readMetafile(MetaFileExports)
	if err != nil {
		if isNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	exports, err := parseKeyValue(body, MetaFileExports)
	if err != nil {
		return nil, MetaFileMalformed{File: MetaFileExports}
	}
	return exports, nil
}

// Exposes returns the ports the package exposes.
func (p *PackageInstall) Exposes() ([]string, error) {
	body, err := p.readMetafile(MetaFileExposes)
	if err != nil {
		if isNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return strings.Fields(body), nil
}

// SvcUser returns the user the package's service runs as, or "" if the
// package does not specify one.
func (p *PackageInstall) SvcUser() (string, error) {
	return p.optionalMetafile(MetaFileSvcUser)
}

// SvcGroup returns the group the package's service runs as, or "" if
// the package does not specify one.
func (p *PackageInstall) SvcGroup() (string, error) {
	return p.optionalMetafile(MetaFileSvcGroup)
}

func (p *PackageInstall) optionalMetafile(file MetaFile) (string, error) {
	body, err := p.readMetafile(file)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return body, nil
}

// DefaultCfg returns the package's decoded default configuration, or
// nil if the package has none or it cannot be parsed.
func (p *PackageInstall) DefaultCfg() map[string]interface{} {
	var cfg map[string]interface{}
	_, err := toml.DecodeFile(filepath.Join(p.installedPath, DefaultCfgFile), &cfg)
	if err != nil {
		log.Debug().Err(err).Str("pkg", p.Ident.String()).Msg("no usable default.toml")
		return nil
	}
	return cfg
}

func (p *PackageInstall) readDeps(file MetaFile, mustBeFullyQualified bool) ([]ident.PackageIdent, error) {
	deps := []ident.PackageIdent{}

	body, err := p.readMetafile(file)
	if err != nil {
		if isNotFound(err) {
			return deps, nil
		}
		return nil, err
	}

	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		dep, err := ident.Parse(strings.TrimSpace(line))
		if err != nil {
			return nil, err
		}
		if mustBeFullyQualified && !dep.FullyQualified() {
			return nil, ident.NotFullyQualified{Ident: dep}
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func (p *PackageInstall) readMetafile(file MetaFile) (string, error) {
	return ReadMetafile(p.installedPath, file)
}

// ReadMetafile reads and trims the given metafile below an install
// path. A missing file yields a MetaFileNotFound error.
func ReadMetafile(installedPath string, file MetaFile) (string, error) {
	data, err := os.ReadFile(filepath.Join(installedPath, string(file)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", MetaFileNotFound{File: file}
		}
		return "", eris.Wrapf(err, "failed to read metafile %s", file)
	}
	return strings.TrimSpace(string(data)), nil
}

func isNotFound(err error) bool {
	var notFound MetaFileNotFound
	return errors.As(err, &notFound)
}

// packageList walks the package root below fsRoot and returns the
// fully-qualified idents of every installed package built for the
// active target.
func packageList(fsRoot string) ([]ident.PackageIdent, string, error) {
	rootPath := fs.RootPath(fsRoot)
	if _, err := os.Stat(rootPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, rootPath, nil
		}
		return nil, rootPath, eris.Wrapf(err, "failed to check package root %s", rootPath)
	}

	activeTarget := target.Active()
	packages := []ident.PackageIdent{}

	origins, err := readDirNames(rootPath)
	if err != nil {
		return nil, rootPath, err
	}
	for _, origin := range origins {
		if fs.IsInstallTmp(origin) {
			continue
		}

		names, err := readDirNames(filepath.Join(rootPath, origin))
		if err != nil {
			return nil, rootPath, err
		}
		for _, name := range names {
			versions, err := readDirNames(filepath.Join(rootPath, origin, name))
			if err != nil {
				return nil, rootPath, err
			}
			for _, version := range versions {
				releases, err := readDirNames(filepath.Join(rootPath, origin, name, version))
				if err != nil {
					return nil, rootPath, err
				}
				for _, release := range releases {
					if fs.IsInstallTmp(release) {
						continue
					}

					installedPath := filepath.Join(rootPath, origin, name, version, release)
					body, err := ReadMetafile(installedPath, MetaFileTarget)
					if err != nil {
						log.Debug().Err(err).Str("path", installedPath).
							Msg("rejected package candidate without a readable TARGET metafile")
						continue
					}
					installTarget, err := target.Parse(body)
					if err != nil {
						log.Debug().Err(err).Str("path", installedPath).
							Msg("rejected package candidate with an invalid TARGET metafile")
						continue
					}
					if installTarget != activeTarget {
						log.Debug().
							Str("path", installedPath).
							Str("installed_target", installTarget.String()).
							Str("active_target", activeTarget.String()).
							Msg("rejected package candidate built for another target")
						continue
					}

					packages = append(packages, ident.PackageIdent{
						Origin:  origin,
						Name:    name,
						Version: version,
						Release: release,
					})
				}
			}
		}
	}

	return packages, rootPath, nil
}

func readDirNames(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
