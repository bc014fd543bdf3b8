package server_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relves/fraledger/pkg/server"
	"github.com/relves/fraledger/pkg/types"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: request id", types.ErrMissingInput), http.StatusBadRequest},
		{types.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("put: %w", types.ErrDuplicateRequest), http.StatusConflict},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrDanglingReference, http.StatusUnprocessableEntity},
		{types.NewChainIntegrityError(3, "hash mismatch"), http.StatusServiceUnavailable},
		{types.ErrHashComputation, http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, server.StatusFor(tt.err), tt.err.Error())
	}
}
