package release

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema            = errors.New("schema error")
	ErrUnsupportedFlavor = errors.New("unsupported flavor")
	ErrExport            = errors.New("export error")
	ErrValidation        = errors.New("validation error")
	ErrRegistry          = errors.New("registry error")
	ErrArchive           = errors.New("archive error")
)

type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindSchema            ErrorKind = "schema"
	KindUnsupportedFlavor ErrorKind = "unsupported_flavor"
	KindExport            ErrorKind = "export"
	KindValidation        ErrorKind = "validation"
	KindRegistry          ErrorKind = "registry"
	KindArchive           ErrorKind = "archive"
	KindInternal          ErrorKind = "internal"
)

// UnsupportedFlavorError is returned when none of the flavors recorded for an
// artifact has an exporter.
type UnsupportedFlavorError struct {
	Present []string
}

func (e *UnsupportedFlavorError) Error() string {
	return fmt.Sprintf("unsupported flavors for export: [%s]", strings.Join(e.Present, ", "))
}

func (e *UnsupportedFlavorError) Is(target error) bool {
	return target == ErrUnsupportedFlavor
}

// ArchiveError is returned when the primary alias was committed but the
// archived alias could not be moved to the previous version.
type ArchiveError struct {
	Model   string
	Alias   string
	Version string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("failed to point alias %s@%s at previous version %s: %v", e.Model, e.Alias, e.Version, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

func (e *ArchiveError) Is(target error) bool {
	return target == ErrArchive
}

func SchemaErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func ExportErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrExport, fmt.Errorf(format, args...))
}

func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrValidation, fmt.Errorf(format, args...))
}

func RegistryErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrRegistry, fmt.Errorf(format, args...))
}

// Classify reports which part of the release flow produced err.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrArchive):
		return KindArchive
	case errors.Is(err, ErrSchema):
		return KindSchema
	case errors.Is(err, ErrUnsupportedFlavor):
		return KindUnsupportedFlavor
	case errors.Is(err, ErrExport):
		return KindExport
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRegistry):
		return KindRegistry
	default:
		return KindInternal
	}
}

// Committed reports whether an error was raised after the alias commit point,
// meaning the promotion is already externally visible.
func Committed(err error) bool {
	return errors.Is(err, ErrArchive)
}
