package install

import (
	"fmt"

	"github.com/habitat-sh/core/pkg/ident"
)

type PackageNotFound struct {
	Ident ident.PackageIdent
}

var _ error = (*PackageNotFound)(nil)

func (e PackageNotFound) Error() string {
	return fmt.Sprintf("package not found: %s", e.Ident)
}

type MetaFileNotFound struct {
	File MetaFile
}

var _ error = (*MetaFileNotFound)(nil)

func (e MetaFileNotFound) Error() string {
	return fmt.Sprintf("metafile %s not found", e.File)
}

type MetaFileMalformed struct {
	File MetaFile
}

var _ error = (*MetaFileMalformed)(nil)

func (e MetaFileMalformed) Error() string {
	return fmt.Sprintf("metafile %s is malformed", e.File)
}
