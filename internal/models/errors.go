package models

import "errors"

// Error kinds shared by the catalog and persistence packages. Callers match them with errors.Is.
var (
	ErrIO              = errors.New("io error")
	ErrDecode          = errors.New("decode error")
	ErrResolution      = errors.New("address resolution error")
	ErrTraversal       = errors.New("traversal error")
	ErrInvalidDocument = errors.New("invalid annotation document")
)
