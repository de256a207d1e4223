// Package apperr defines the error taxonomy shared by every TextCase component.
package apperr

import "errors"

var (
	ErrConfig            = errors.New("invalid configuration")
	ErrModuleNotFound    = errors.New("module not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrAmbiguousID       = errors.New("ambiguous document id")
	ErrDuplicateModule   = errors.New("duplicate module")
	ErrLinkTargetInvalid = errors.New("invalid link target")
	ErrAlreadyExists     = errors.New("already exists")
	ErrTagUndefined      = errors.New("tag not defined")
	ErrMalformedDocument = errors.New("malformed document")
)
