// Package server exposes the verification service over HTTP with JSON bodies.
package server

import (
	"errors"
	"log/slog"
	"net/http"
)

// NewServer builds the HTTP routes for the verification service.
//
// Parameters:
//   - opts: Configuration options (WithService, WithValidator, WithLogger, WithMaxUploadSize)
//
// Mutating routes pass through the validator when one is configured; reads
// are public.
func NewServer(opts ...Option) (http.Handler, error) {
	cfg := applyOptions(opts...)

	if cfg.Service == nil {
		return nil, errors.New("service is required")
	}

	h := NewHTTPHandler(cfg.Service, cfg.Logger, cfg.MaxUploadSize)
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return requireValid(cfg.Validator, cfg.Logger, next)
	}

	mux := http.NewServeMux()

	// Verifications
	mux.HandleFunc("POST /api/verifications", guard(h.HandleSubmit))
	mux.HandleFunc("GET /api/verifications/{requestID}", h.HandleGetVerification)
	mux.HandleFunc("GET /api/verifications/{requestID}/status", h.HandleStatus)
	mux.HandleFunc("POST /api/verifications/{requestID}/verify", h.HandleVerify)
	mux.HandleFunc("GET /api/verifications/{requestID}/report", h.HandleReport)
	mux.HandleFunc("GET /api/verifications/{requestID}/proof", h.HandleTransactionProof)
	mux.HandleFunc("GET /api/verifications/{requestID}/document", guard(h.HandleDocument))

	// Claims
	mux.HandleFunc("POST /api/claims", guard(h.HandleCreateClaim))
	mux.HandleFunc("GET /api/claims", h.HandleListClaims)
	mux.HandleFunc("GET /api/claims/{claimID}", h.HandleGetClaim)
	mux.HandleFunc("PUT /api/claims/{claimID}/status", guard(h.HandleUpdateClaimStatus))

	// Ledger
	mux.HandleFunc("GET /api/ledger/health", h.HandleHealth)
	mux.HandleFunc("GET /api/ledger/blocks", h.HandleBlocks)
	mux.HandleFunc("GET /api/ledger/blocks/{index}", h.HandleBlock)
	mux.HandleFunc("GET /api/ledger/blocks/{index}/proof", h.HandleInclusionProof)
	mux.HandleFunc("GET /api/ledger/verify", h.HandleVerifyChain)
	mux.HandleFunc("GET /api/ledger/checkpoint", h.HandleCheckpoint)

	return mux, nil
}

func requireValid(v RequestValidator, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	if v == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := v.ValidateRequest(r); err != nil {
			logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
			writeError(w, logger, r, err)
			return
		}
		next(w, r)
	}
}
