package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"
)

// ErrorType classifies failures of the link-maintenance engine.
type ErrorType string

const (
	// Startup errors
	ErrorTypeConfig ErrorType = "config"
	ErrorTypeRoot   ErrorType = "root"

	// Per-file errors
	ErrorTypeParse ErrorType = "parse"
	ErrorTypeRead  ErrorType = "read"
	ErrorTypeWrite ErrorType = "write"

	// Diagnostics
	ErrorTypeLookupAmbiguity ErrorType = "lookup_ambiguity"
	ErrorTypeTimerExpired    ErrorType = "timer_expired"
)

var (
	// ErrConfigInvalid matches every *ConfigError via errors.Is.
	ErrConfigInvalid = stderrors.New("invalid configuration")

	// ErrRootInvalid matches every *RootError via errors.Is.
	ErrRootInvalid = stderrors.New("invalid project root")
)

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config error for field %s: %v", e.Field, e.Underlying)
	}
	return fmt.Sprintf("config error for field %s (value %q): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is(err, ErrConfigInvalid) succeed for any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// RootError reports a missing or unusable project root.
type RootError struct {
	Path       string
	Underlying error
}

// NewRootError creates a new project root error
func NewRootError(path string, err error) *RootError {
	return &RootError{Path: path, Underlying: err}
}

func (e *RootError) Error() string {
	return fmt.Sprintf("project root %s is invalid: %v", e.Path, e.Underlying)
}

func (e *RootError) Unwrap() error {
	return e.Underlying
}

func (e *RootError) Is(target error) bool {
	return target == ErrRootInvalid
}

// ParseError represents a failure to extract references from one file.
type ParseError struct {
	Type       ErrorType
	FilePath   string
	Parser     string
	Line       int
	Underlying error
	Timestamp  time.Time
}

// NewParseError creates a new parse error
func NewParseError(path, parser string, line int, err error) *ParseError {
	return &ParseError{
		Type:       ErrorTypeParse,
		FilePath:   path,
		Parser:     parser,
		Line:       line,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s parse error at %s:%d: %v", e.Parser, e.FilePath, e.Line, e.Underlying)
	}
	return fmt.Sprintf("%s parse error in %s: %v", e.Parser, e.FilePath, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error {
	return e.Underlying
}

// FileError represents a read or write failure on a single file.
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Permission bool
	Underlying error
	Timestamp  time.Time
}

// NewReadError creates a ReadFailure for path.
func NewReadError(op, path string, err error) *FileError {
	return newFileError(ErrorTypeRead, op, path, err)
}

// NewWriteError creates a WriteFailure for path.
func NewWriteError(op, path string, err error) *FileError {
	return newFileError(ErrorTypeWrite, op, path, err)
}

func newFileError(t ErrorType, op, path string, err error) *FileError {
	return &FileError{
		Type:       t,
		Path:       path,
		Operation:  op,
		Permission: stderrors.Is(err, fs.ErrPermission),
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// IsWrite reports whether err is (or wraps) a WriteFailure.
func IsWrite(err error) bool {
	var fe *FileError
	return stderrors.As(err, &fe) && fe.Type == ErrorTypeWrite
}

// IsRead reports whether err is (or wraps) a ReadFailure.
func IsRead(err error) bool {
	var fe *FileError
	return stderrors.As(err, &fe) && fe.Type == ErrorTypeRead
}

// AmbiguityError records a reference that plausibly points at more than one target.
type AmbiguityError struct {
	SourceFile string
	LinkTarget string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("%s: link %q matches %d targets %v", ErrorTypeLookupAmbiguity, e.LinkTarget, len(e.Candidates), e.Candidates)
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected.
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
