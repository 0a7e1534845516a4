// Package ident implements package identifiers of the form
// origin/name[/version[/release]] and the ordering rules between them.
package ident

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var originNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// PackageIdent identifies a package. Version and Release are optional;
// an empty string means the part is absent.
type PackageIdent struct {
	Origin  string
	Name    string
	Version string
	Release string
}

// New builds an ident from its parts. A release without a version is
// rejected since the resulting string form could never be parsed back.
func New(origin, name, version, release string) (PackageIdent, error) {
	if version == "" && release != "" {
		return PackageIdent{}, InvalidIdent{Raw: fmt.Sprintf("%s/%s//%s", origin, name, release)}
	}

	return PackageIdent{Origin: origin, Name: name, Version: version, Release: release}, nil
}

// Parse interprets a /-separated string as a package ident.
func Parse(value string) (PackageIdent, error) {
	parts := strings.Split(value, "/")
	for _, part := range parts {
		if part == "" {
			return PackageIdent{}, InvalidIdent{Raw: value}
		}
	}

	switch len(parts) {
	case 4:
		return PackageIdent{Origin: parts[0], Name: parts[1], Version: parts[2], Release: parts[3]}, nil
	case 3:
		return PackageIdent{Origin: parts[0], Name: parts[1], Version: parts[2]}, nil
	case 2:
		return PackageIdent{Origin: parts[0], Name: parts[1]}, nil
	default:
		return PackageIdent{}, InvalidIdent{Raw: value}
	}
}

// MustParse is Parse for static idents in tests and fixtures.
func MustParse(value string) PackageIdent {
	ident, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return ident
}

func (i PackageIdent) String() string {
	parts := []string{i.Origin, i.Name}
	if i.Version != "" {
		parts = append(parts, i.Version)
	}
	if i.Release != "" {
		parts = append(parts, i.Release)
	}
	return strings.Join(parts, "/")
}

// FullyQualified reports whether both version and release are present.
func (i PackageIdent) FullyQualified() bool {
	return i.Version != "" && i.Release != ""
}

// Satisfies reports whether this ident matches the given, possibly
// partial, pattern. Origin and name must match exactly; version and
// release are only compared where both sides carry them.
func (i PackageIdent) Satisfies(pattern PackageIdent) bool {
	if i.Origin != pattern.Origin || i.Name != pattern.Name {
		return false
	}
	if i.Version != "" {
		if pattern.Version == "" {
			return true
		}
		if i.Version != pattern.Version {
			return false
		}
	}
	if i.Release != "" {
		if pattern.Release == "" {
			return true
		}
		if i.Release != pattern.Release {
			return false
		}
	}
	return true
}

// ArchiveName returns the name of the package archive for the given
// target, e.g. core-redis-3.2.4-20170514150022-x86_64-linux.hart.
func (i PackageIdent) ArchiveName(target string) (string, error) {
	if !i.FullyQualified() {
		return "", NotFullyQualified{Ident: i}
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s.hart", i.Origin, i.Name, i.Version, i.Release, target), nil
}

// MarshalText implements encoding.TextMarshaler so idents round-trip
// through JSON and YAML as plain strings.
func (i PackageIdent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *PackageIdent) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// ValidOriginName reports whether the given string is usable as an
// origin: lowercase alphanumerics, dashes and underscores, not starting
// with a separator, at most 255 characters.
func ValidOriginName(origin string) bool {
	return len(origin) <= 255 && originNamePattern.MatchString(origin)
}

// Compare orders two idents. Origins are ignored; idents with different
// names order by name. Versions order by CompareVersions with a lexical
// fallback for versions the version grammar cannot parse; ties are
// broken by release. A missing version or release sorts before a
// present one.
func Compare(a, b PackageIdent) int {
	if a.Name != b.Name {
		return strings.Compare(a.Name, b.Name)
	}

	switch {
	case a.Version == "" && b.Version != "":
		return -1
	case a.Version != "" && b.Version == "":
		return 1
	case a.Version == "" && b.Version == "":
		return 0
	}

	result, err := CompareVersions(a.Version, b.Version)
	if err != nil {
		result = strings.Compare(a.Version, b.Version)
	}
	if result != 0 {
		return result
	}

	return strings.Compare(a.Release, b.Release)
}

// CompareVersions orders two version strings. A version is some dotted
// digits optionally followed by an extension ("1.2.3-alpha6"). The
// digits are compared numerically with missing trailing segments
// counting as zero. On a numeric tie a version without an extension
// wins over one with an extension and two extensions compare lexically.
func CompareVersions(a, b string) (int, error) {
	aParts, aExt, err := splitVersion(a)
	if err != nil {
		return 0, err
	}
	bParts, bExt, err := splitVersion(b)
	if err != nil {
		return 0, err
	}

	for idx := 0; idx < len(aParts) || idx < len(bParts); idx++ {
		var aNum, bNum uint64
		if idx < len(aParts) {
			aNum, err = strconv.ParseUint(aParts[idx], 10, 64)
			if err != nil {
				return 0, InvalidVersion{Raw: a}
			}
		}
		if idx < len(bParts) {
			bNum, err = strconv.ParseUint(bParts[idx], 10, 64)
			if err != nil {
				return 0, InvalidVersion{Raw: b}
			}
		}

		if aNum != bNum {
			if aNum > bNum {
				return 1, nil
			}
			return -1, nil
		}
	}

	switch {
	case aExt == "" && bExt == "":
		return 0, nil
	case aExt == "":
		// 1.0.0 is newer than 1.0.0-alpha6
		return 1, nil
	case bExt == "":
		return -1, nil
	default:
		return strings.Compare(aExt, bExt), nil
	}
}

var versionPattern = regexp.MustCompile(`([\d.]+)(.+)?`)

func splitVersion(version string) ([]string, string, error) {
	groups := versionPattern.FindStringSubmatch(version)
	if groups == nil {
		return nil, "", InvalidVersion{Raw: version}
	}

	ext := groups[2]
	if len(ext) > 1 && ext[0] == '-' {
		ext = ext[1:]
	}

	return strings.Split(groups[1], "."), ext, nil
}

// Collection sorts idents in ascending order as defined by Compare.
type Collection []PackageIdent

func (c Collection) Len() int           { return len(c) }
func (c Collection) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c Collection) Less(i, j int) bool { return Compare(c[i], c[j]) < 0 }

// Latest returns the newest ident among those satisfying the pattern,
// or false if none match.
func Latest(candidates []PackageIdent, pattern PackageIdent) (PackageIdent, bool) {
	var winner PackageIdent
	found := false
	for _, candidate := range candidates {
		if !candidate.Satisfies(pattern) {
			continue
		}
		if !found || Compare(candidate, winner) > 0 {
			winner = candidate
			found = true
		}
	}
	return winner, found
}
