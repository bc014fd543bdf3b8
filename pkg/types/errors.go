package types

import (
	"errors"
	"fmt"
)

// Error kinds. Lower layers wrap these with fmt.Errorf("...: %w", kind) so the
// kind survives any number of wrappers; callers classify with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingInput      = fmt.Errorf("%w: missing input", ErrInvalidInput)
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrNotFound          = errors.New("not found")
	ErrDanglingReference = errors.New("dangling reference")
	ErrChainIntegrity    = errors.New("chain integrity violation")
	ErrHashComputation   = errors.New("hash computation failed")
)

// ChainIntegrityError reports the first block whose hash or linkage does not
// verify. It unwraps to ErrChainIntegrity.
type ChainIntegrityError struct {
	Index  uint64
	Reason string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violation at block %d: %s", e.Index, e.Reason)
}

func (e *ChainIntegrityError) Unwrap() error {
	return ErrChainIntegrity
}

// NewChainIntegrityError creates a ChainIntegrityError for the given block index.
func NewChainIntegrityError(index uint64, reason string) *ChainIntegrityError {
	return &ChainIntegrityError{Index: index, Reason: reason}
}

// Code returns a machine-readable code for an error kind, used by transports.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingInput):
		return "MISSING_INPUT"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrDuplicateRequest):
		return "DUPLICATE_REQUEST"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrDanglingReference):
		return "DANGLING_REFERENCE"
	case errors.Is(err, ErrChainIntegrity):
		return "CHAIN_INTEGRITY"
	case errors.Is(err, ErrHashComputation):
		return "HASH_COMPUTATION"
	default:
		return "INTERNAL"
	}
}
