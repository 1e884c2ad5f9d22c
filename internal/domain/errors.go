package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline facts. Stores and engine layers return these
// (optionally wrapped) so callers can branch with errors.Is.
var (
	ErrMissingRequiredKey    = errors.New("missing required key")
	ErrUnparsableDocument    = errors.New("unparsable document")
	ErrCandidateRootNotFound = errors.New("candidate root not found")
	ErrBrokenLink            = errors.New("broken chain link")
	ErrGenesisMismatch       = errors.New("genesis mismatch")
	ErrNotFound              = errors.New("not found")
)

// NormalizationError explains why one document could not be normalized. It is
// recovered per document: the snapshot is skipped and the audit continues.
type NormalizationError struct {
	SourceID string
	Path     string
	Err      error
}

func (e *NormalizationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("normalize %s: %v (path %q)", e.SourceID, e.Err, e.Path)
	}
	return fmt.Sprintf("normalize %s: %v", e.SourceID, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// ChainIntegrityError signals tampering or corruption in a source's hash
// chain. It is never recovered silently: appends for that source must halt.
type ChainIntegrityError struct {
	SourceID string
	AtIndex  int
	Err      error
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity for %s at index %d: %v", e.SourceID, e.AtIndex, e.Err)
}

func (e *ChainIntegrityError) Unwrap() error { return e.Err }

// ConfigurationError is fatal at startup, before any processing begins.
type ConfigurationError struct {
	Field  string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Detail)
}
