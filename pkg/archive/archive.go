// Package archive reads .hart package archives and unpacks them into a
// package root.
//
// A .hart file is a compressed tarball whose entries are rooted at
// origin/name/version/release/. The compression is picked from the file
// extension: .hart and .tar.xz use xz, .tar.br uses brotli and plain
// .tar is uncompressed.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"

	"github.com/habitat-sh/core/pkg/fs"
	"github.com/habitat-sh/core/pkg/ident"
	"github.com/habitat-sh/core/pkg/install"
	"github.com/habitat-sh/core/pkg/target"
)

// PackageArchive is a package archive on disk whose embedded metadata
// has been read.
type PackageArchive struct {
	Path   string
	Ident  ident.PackageIdent
	Target target.Target
}

// Open reads the IDENT and TARGET metafiles embedded in the archive at
// the given path.
func Open(path string) (*PackageArchive, error) {
	a := &PackageArchive{Path: path}

	rawIdent, err := a.readEntry(install.MetaFileIdent)
	if err != nil {
		return nil, err
	}
	a.Ident, err = ident.Parse(rawIdent)
	if err != nil {
		return nil, eris.Wrapf(err, "archive %s carries a malformed ident", path)
	}
	if !a.Ident.FullyQualified() {
		return nil, eris.Errorf("archive %s carries a partial ident %s", path, a.Ident)
	}

	rawTarget, err := a.readEntry(install.MetaFileTarget)
	if err != nil {
		return nil, err
	}
	a.Target, err = target.Parse(rawTarget)
	if err != nil {
		return nil, eris.Wrapf(err, "archive %s carries a malformed target", path)
	}

	return a, nil
}

// Unpack extracts the archive under the package root below fsRoot. The
// contents are staged in a temporary sibling directory first and moved
// into place with a single rename so a crashed unpack never leaves a
// half-populated package directory behind.
func (a *PackageArchive) Unpack(fsRoot string) error {
	installPath := fs.PkgInstallPath(a.Ident, fsRoot)
	if _, err := os.Stat(installPath); err == nil {
		log.Debug().Msgf("%s is already unpacked at %s", a.Ident, installPath)
		return nil
	}

	rootPath := fs.RootPath(fsRoot)
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return eris.Wrapf(err, "failed to create package root %s", rootPath)
	}

	staging, err := os.MkdirTemp(rootPath, fs.InstallTmpPrefix)
	if err != nil {
		return eris.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	if err := a.extract(staging); err != nil {
		return err
	}

	staged := filepath.Join(staging, a.Ident.Origin, a.Ident.Name, a.Ident.Version, a.Ident.Release)
	if _, err := os.Stat(staged); err != nil {
		return eris.Wrapf(err, "archive %s does not contain %s", a.Path, a.Ident)
	}

	if err := os.MkdirAll(filepath.Dir(installPath), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create %s", filepath.Dir(installPath))
	}
	if err := os.Rename(staged, installPath); err != nil {
		return eris.Wrapf(err, "failed to move %s into place", a.Ident)
	}

	log.Info().Msgf("Unpacked %s to %s", a.Ident, installPath)
	return nil
}

func (a *PackageArchive) extract(dest string) error {
	info, err := os.Stat(a.Path)
	if err != nil {
		return eris.Wrapf(err, "failed to stat %s", a.Path)
	}

	hdl, err := os.Open(a.Path)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", a.Path)
	}
	defer hdl.Close()

	bar := progressbar.DefaultBytes(info.Size(), "Unpacking")
	defer bar.Close()

	reader, err := newReader(a.Path, io.TeeReader(hdl, bar))
	if err != nil {
		return err
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", a.Path)
		}

		name, err := sanitizeEntry(hdr.Name)
		if err != nil {
			return err
		}
		path := filepath.Join(dest, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(hdr.Mode)&os.ModePerm); err != nil {
				return eris.Wrapf(err, "failed to create %s", path)
			}
		case tar.TypeSymlink:
			if strings.HasPrefix(hdr.Linkname, "/") {
				return eris.Errorf("archive entry %s links to the absolute path %s", hdr.Name, hdr.Linkname)
			}
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return eris.Wrapf(err, "failed to create symlink %s", path)
			}
		case tar.TypeReg:
			if err := writeEntry(path, tr, os.FileMode(hdr.Mode)&os.ModePerm); err != nil {
				return err
			}
		default:
			log.Debug().Msgf("Skipping archive entry %s with type %d", hdr.Name, hdr.Typeflag)
		}
	}
}

func (a *PackageArchive) readEntry(file install.MetaFile) (string, error) {
	hdl, err := os.Open(a.Path)
	if err != nil {
		return "", eris.Wrapf(err, "failed to open %s", a.Path)
	}
	defer hdl.Close()

	reader, err := newReader(a.Path, hdl)
	if err != nil {
		return "", err
	}

	suffix := "/" + string(file)
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrapf(err, "failed to read %s", a.Path)
		}

		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(filepath.ToSlash(hdr.Name), suffix) {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return "", eris.Wrapf(err, "failed to read %s from %s", file, a.Path)
		}
		return strings.TrimSpace(string(content)), nil
	}

	return "", eris.Errorf("archive %s is missing the %s metafile", a.Path, file)
}

func newReader(path string, raw io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(path, ".hart"), strings.HasSuffix(path, ".tar.xz"):
		reader, err := xz.NewReader(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to open %s as an xz stream", path)
		}
		return reader, nil
	case strings.HasSuffix(path, ".tar.br"):
		return brotli.NewReader(raw), nil
	case strings.HasSuffix(path, ".tar"):
		return raw, nil
	default:
		return nil, eris.Errorf("%s has an unsupported archive extension", path)
	}
}

func sanitizeEntry(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", eris.Errorf("archive entry %s escapes the staging directory", name)
	}
	return clean, nil
}

func writeEntry(path string, reader io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}

	hdl, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}

	if _, err := io.Copy(hdl, reader); err != nil {
		hdl.Close()
		return eris.Wrapf(err, "failed to write %s", path)
	}
	return hdl.Close()
}
