package ident

import "fmt"

type InvalidIdent struct {
	Raw string
}

var _ error = (*InvalidIdent)(nil)

func (e InvalidIdent) Error() string {
	return fmt.Sprintf("invalid package ident: %s", e.Raw)
}

type InvalidVersion struct {
	Raw string
}

var _ error = (*InvalidVersion)(nil)

func (e InvalidVersion) Error() string {
	return fmt.Sprintf("invalid package version: %s", e.Raw)
}

type NotFullyQualified struct {
	Ident PackageIdent
}

var _ error = (*NotFullyQualified)(nil)

func (e NotFullyQualified) Error() string {
	return fmt.Sprintf("fully-qualified package ident required: %s", e.Ident)
}
