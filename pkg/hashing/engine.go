// Package hashing computes the deterministic fingerprints that the ledger and
// registry depend on.
//
// Every digest is the lower-case hex encoding of the configured algorithm's
// output. Inputs are concatenated as UTF-8 strings with no separators, in the
// order documented on each method, so that any implementation fed the same
// logical input produces the same digest.
package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"

	"github.com/relves/fraledger/pkg/types"
)

// Algorithm names a supported hash function.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	SHA3256 Algorithm = "sha3-256"
	BLAKE3  Algorithm = "blake3"
)

// Engine produces fingerprints with a fixed algorithm.
// It is stateless and safe for concurrent use.
type Engine struct {
	algorithm      Algorithm
	newHash        func() hash.Hash
	requireContent bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRequireContent controls whether HashDocument rejects empty documents.
// Defaults to true.
func WithRequireContent(require bool) Option {
	return func(e *Engine) {
		e.requireContent = require
	}
}

// NewEngine creates an engine for the named algorithm. An empty name selects SHA256.
func NewEngine(algorithm Algorithm, opts ...Option) (*Engine, error) {
	if algorithm == "" {
		algorithm = SHA256
	}

	var newHash func() hash.Hash
	switch Algorithm(strings.ToLower(string(algorithm))) {
	case SHA256:
		newHash = sha256.New
	case SHA3256:
		newHash = sha3.New256
	case BLAKE3:
		newHash = func() hash.Hash { return blake3.New() }
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", types.ErrHashComputation, algorithm)
	}

	e := &Engine{
		algorithm:      Algorithm(strings.ToLower(string(algorithm))),
		newHash:        newHash,
		requireContent: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Default returns a SHA-256 engine that requires non-empty documents.
func Default() *Engine {
	e, _ := NewEngine(SHA256)
	return e
}

// Algorithm returns the engine's algorithm name.
func (e *Engine) Algorithm() Algorithm {
	return e.algorithm
}

// HexLen is the length of a hex digest produced by this engine.
func (e *Engine) HexLen() int {
	return e.newHash().Size() * 2
}

// Sum hashes the concatenation of parts.
func (e *Engine) Sum(parts ...string) string {
	h := e.newHash()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashDocument returns H(salt || data).
func (e *Engine) HashDocument(data []byte, salt string) (string, error) {
	if len(data) == 0 && e.requireContent {
		return "", fmt.Errorf("%w: document content is empty", types.ErrInvalidInput)
	}
	h := e.newHash()
	h.Write([]byte(salt))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashMetadata returns the digest of the canonical serialization of v.
// A nil value hashes as the empty object.
func (e *Engine) HashMetadata(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return e.Sum(string(canonical)), nil
}

// CombineHashes returns H(documentHash || metadataHash || timestamp).
// The timestamp is optional and contributes nothing when empty.
func (e *Engine) CombineHashes(documentHash, metadataHash, timestamp string) (string, error) {
	if documentHash == "" {
		return "", fmt.Errorf("%w: document hash", types.ErrMissingInput)
	}
	if metadataHash == "" {
		return "", fmt.Errorf("%w: metadata hash", types.ErrMissingInput)
	}
	return e.Sum(documentHash, metadataHash, timestamp), nil
}

// Fingerprint hashes a document and its metadata and combines the two digests
// without a timestamp.
func (e *Engine) Fingerprint(data []byte, metadata any) (types.Fingerprint, error) {
	documentHash, err := e.HashDocument(data, "")
	if err != nil {
		return types.Fingerprint{}, err
	}
	metadataHash, err := e.HashMetadata(metadata)
	if err != nil {
		return types.Fingerprint{}, err
	}
	combined, err := e.CombineHashes(documentHash, metadataHash, "")
	if err != nil {
		return types.Fingerprint{}, err
	}
	return types.Fingerprint{
		DocumentHash: documentHash,
		MetadataHash: metadataHash,
		CombinedHash: combined,
	}, nil
}

// VerifyIntegrity recomputes the document hash and compares it with expectedHash.
// A mismatch is not an error; a malformed expectedHash is.
func (e *Engine) VerifyIntegrity(data []byte, expectedHash, salt string) (bool, error) {
	expected, err := e.NormalizeHash(expectedHash)
	if err != nil {
		return false, err
	}
	actual, err := e.HashDocument(data, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1, nil
}

// NormalizeHash lower-cases a hex digest and checks its shape for this engine.
func (e *Engine) NormalizeHash(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: hash", types.ErrMissingInput)
	}
	if len(s) != e.HexLen() {
		return "", fmt.Errorf("%w: hash must be %d hex characters, got %d", types.ErrInvalidInput, e.HexLen(), len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: hash is not hex: %v", types.ErrInvalidInput, err)
	}
	return s, nil
}
