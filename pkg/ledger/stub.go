package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MockTxPrefix marks transaction IDs that were not issued by a real network.
const MockTxPrefix = "mock-"

// StubBackend stands in for a remote ledger network. Transaction IDs are
// random and carry MockTxPrefix; blocks are sealed by an in-memory chain.
type StubBackend struct {
	*Ledger
}

// NewStubBackend wraps l.
func NewStubBackend(l *Ledger) *StubBackend {
	return &StubBackend{Ledger: l}
}

// Name implements Backend.
func (s *StubBackend) Name() string {
	return BackendStub
}

// TransactionID returns a mock identifier unrelated to its inputs.
func (s *StubBackend) TransactionID(_, _ string, _ time.Time) string {
	return MockTxPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Stats implements Backend.
func (s *StubBackend) Stats() Stats {
	st := s.Ledger.Stats()
	st.Backend = BackendStub
	return st
}

// IsMockTransactionID reports whether id was issued by a stub backend.
func IsMockTransactionID(id string) bool {
	return strings.HasPrefix(id, MockTxPrefix)
}
