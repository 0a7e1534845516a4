package install

import (
	"strings"
)

// MetaFile names one of the metadata files written into a package's
// install directory at build time.
type MetaFile string

const (
	MetaFileIdent         MetaFile = "IDENT"
	MetaFileTarget        MetaFile = "TARGET"
	MetaFileType          MetaFile = "TYPE"
	MetaFileDeps          MetaFile = "DEPS"
	MetaFileTDeps         MetaFile = "TDEPS"
	MetaFilePath          MetaFile = "PATH"
	MetaFileRuntimePath   MetaFile = "RUNTIME_PATH"
	MetaFileRuntimeEnv    MetaFile = "RUNTIME_ENVIRONMENT"
	MetaFileSvcUser       MetaFile = "SVC_USER"
	MetaFileSvcGroup      MetaFile = "SVC_GROUP"
	MetaFileExports       MetaFile = "EXPORTS"
	MetaFileExposes       MetaFile = "EXPOSES"
	MetaFileBinds         MetaFile = "BINDS"
	MetaFileBindsOptional MetaFile = "BINDS_OPTIONAL"
	MetaFileBindMap       MetaFile = "BIND_MAP"
	MetaFileServices      MetaFile = "SERVICES"
)

// PackageType distinguishes plain packages from composites which bundle
// several services.
type PackageType string

const (
	Standalone PackageType = "standalone"
	Composite  PackageType = "composite"
)

// ParsePackageType interprets the contents of a TYPE metafile.
func ParsePackageType(value string) (PackageType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "standalone":
		return Standalone, nil
	case "composite":
		return Composite, nil
	default:
		return "", MetaFileMalformed{File: MetaFileType}
	}
}

// Bind describes a service this package binds to and the exports it
// consumes, as one line of the BINDS or BINDS_OPTIONAL metafile:
// "<service>=<export> <export>...".
type Bind struct {
	Service string
	Exports []string
}

// ParseBind parses a single BINDS line.
func ParseBind(line string) (Bind, error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Bind{}, MetaFileMalformed{File: MetaFileBinds}
	}

	return Bind{
		Service: strings.TrimSpace(parts[0]),
		Exports: strings.Fields(parts[1]),
	}, nil
}

// BindMapping maps a bind name of a composite's service onto the
// service that satisfies it, as the "<name>:<ident>" items of a
// BIND_MAP line.
type BindMapping struct {
	BindName          string
	SatisfyingService string
}

// ParseBindMapping parses a single "<name>:<ident>" item.
func ParseBindMapping(value string) (BindMapping, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 || parts[0] == "" || !strings.Contains(parts[1], "/") {
		return BindMapping{}, MetaFileMalformed{File: MetaFileBindMap}
	}

	return BindMapping{BindName: parts[0], SatisfyingService: parts[1]}, nil
}

// parseKeyValue turns "KEY=value" lines into a map. Lines without a =
// are malformed.
func parseKeyValue(body string, file MetaFile) (map[string]string, error) {
	result := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, MetaFileMalformed{File: file}
		}
		result[parts[0]] = parts[1]
	}
	return result, nil
}
