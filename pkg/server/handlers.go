package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/relves/fraledger/pkg/registry"
	"github.com/relves/fraledger/pkg/types"
	"github.com/relves/fraledger/pkg/verification"
)

// Paging limits for GET /api/ledger/blocks.
const (
	DefaultBlockPage = 50
	MaxBlockPage     = 500
)

// HTTPHandler serves the verification, claim and ledger endpoints.
type HTTPHandler struct {
	svc       *verification.Service
	logger    *slog.Logger
	maxUpload int64
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc *verification.Service, logger *slog.Logger, maxUpload int64) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadSize
	}
	return &HTTPHandler{svc: svc, logger: logger, maxUpload: maxUpload}
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, h.logger, r, err)
}

// HandleSubmit handles POST /api/verifications.
// Multipart fields: document (file), metadata (JSON object), submitterId, requestId.
func (h *HTTPHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.fail(w, r, fmt.Errorf("%w: multipart form: %v", types.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("document")
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: document file", types.ErrMissingInput))
		return
	}
	defer file.Close()

	doc, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: read document: %v", types.ErrInvalidInput, err))
		return
	}

	var metadata map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&metadata); err != nil {
			h.fail(w, r, fmt.Errorf("%w: metadata must be a JSON object: %v", types.ErrInvalidInput, err))
			return
		}
	}

	res, err := h.svc.Submit(r.Context(), verification.SubmitRequest{
		Document:    doc,
		Metadata:    metadata,
		SubmitterID: r.FormValue("submitterId"),
		RequestID:   r.FormValue("requestId"),
		FileInfo:    fileInfo(header, len(doc)),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("document submitted", "requestID", res.RequestID, "transactionID", res.TransactionID)
	writeJSON(w, http.StatusCreated, res)
}

func fileInfo(header *multipart.FileHeader, size int) map[string]any {
	info := map[string]any{
		"filename": header.Filename,
		"size":     size,
	}
	if ct := header.Header.Get("Content-Type"); ct != "" {
		info["contentType"] = ct
	}
	return info
}

// HandleGetVerification handles GET /api/verifications/{requestID}.
func (h *HTTPHandler) HandleGetVerification(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetVerification(r.Context(), r.PathValue("requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleStatus handles GET /api/verifications/{requestID}/status.
func (h *HTTPHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.QueryStatus(r.Context(), r.PathValue("requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// VerifyRequest is the JSON body of POST /api/verifications/{requestID}/verify.
type VerifyRequest struct {
	ExpectedHash string `json:"expectedHash"`
}

// HandleVerify handles POST /api/verifications/{requestID}/verify. A JSON body
// may carry an expected hash; a multipart body with a document file checks
// the presented bytes instead.
func (h *HTTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestID")

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		file, _, err := r.FormFile("document")
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: document file", types.ErrMissingInput))
			return
		}
		defer file.Close()
		doc, err := io.ReadAll(file)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: read document: %v", types.ErrInvalidInput, err))
			return
		}
		res, err := h.svc.VerifyDocument(r.Context(), requestID, doc)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.VerifyTransaction(r.Context(), requestID, req.ExpectedHash)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleReport handles GET /api/verifications/{requestID}/report.
func (h *HTTPHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GenerateReport(r.Context(), r.PathValue("requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleTransactionProof handles GET /api/verifications/{requestID}/proof.
func (h *HTTPHandler) HandleTransactionProof(w http.ResponseWriter, r *http.Request) {
	proof, err := h.svc.TransactionProof(r.Context(), r.PathValue("requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

// HandleDocument handles GET /api/verifications/{requestID}/document.
func (h *HTTPHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Document(r.Context(), r.PathValue("requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// HandleCreateClaim handles POST /api/claims.
func (h *HTTPHandler) HandleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var in registry.ClaimInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	claim, err := h.svc.RecordClaim(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// ClaimList is the response of GET /api/claims.
type ClaimList struct {
	Claims []*types.ClaimRecord `json:"claims"`
	Count  int                  `json:"count"`
}

// HandleListClaims handles GET /api/claims?status=&village_code=.
func (h *HTTPHandler) HandleListClaims(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claims, err := h.svc.ListClaims(r.Context(), types.ClaimFilter{
		Status:      q.Get("status"),
		VillageCode: q.Get("village_code"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if claims == nil {
		claims = []*types.ClaimRecord{}
	}
	writeJSON(w, http.StatusOK, ClaimList{Claims: claims, Count: len(claims)})
}

// HandleGetClaim handles GET /api/claims/{claimID}.
func (h *HTTPHandler) HandleGetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.svc.GetClaim(r.Context(), r.PathValue("claimID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// HandleUpdateClaimStatus handles PUT /api/claims/{claimID}/status.
func (h *HTTPHandler) HandleUpdateClaimStatus(w http.ResponseWriter, r *http.Request) {
	var upd registry.StatusUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.fail(w, r, err)
		return
	}
	claim, err := h.svc.UpdateClaimStatus(r.Context(), r.PathValue("claimID"), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// HandleHealth handles GET /api/ledger/health. A halted ledger answers 503
// with the same body.
func (h *HTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.svc.Health(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if health.Status == verification.StatusHalted {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// BlockPage is the response of GET /api/ledger/blocks.
type BlockPage struct {
	Blocks []*types.Block `json:"blocks"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
	Total  int            `json:"total"`
}

// HandleBlocks handles GET /api/ledger/blocks?offset=&limit=.
func (h *HTTPHandler) HandleBlocks(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", DefaultBlockPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if limit <= 0 || limit > MaxBlockPage {
		limit = MaxBlockPage
	}

	writeJSON(w, http.StatusOK, BlockPage{
		Blocks: h.svc.Blocks(offset, limit),
		Offset: offset,
		Limit:  limit,
		Total:  len(h.svc.Blocks(0, 0)),
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", types.ErrInvalidInput, key)
	}
	return n, nil
}

func pathIndex(r *http.Request) (uint64, error) {
	n, err := strconv.ParseUint(r.PathValue("index"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: block index %q", types.ErrInvalidInput, r.PathValue("index"))
	}
	return n, nil
}

// HandleBlock handles GET /api/ledger/blocks/{index}.
func (h *HTTPHandler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Block(index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleInclusionProof handles GET /api/ledger/blocks/{index}/proof.
func (h *HTTPHandler) HandleInclusionProof(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.InclusionProof(r.Context(), index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ChainReport is the response of GET /api/ledger/verify.
type ChainReport struct {
	Valid      bool    `json:"valid"`
	BlockCount int     `json:"blockCount"`
	Index      *uint64 `json:"index,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// HandleVerifyChain handles GET /api/ledger/verify.
func (h *HTTPHandler) HandleVerifyChain(w http.ResponseWriter, r *http.Request) {
	err := h.svc.VerifyChain(r.Context())
	report := ChainReport{Valid: err == nil, BlockCount: len(h.svc.Blocks(0, 0))}

	var cie *types.ChainIntegrityError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.As(err, &cie):
		idx := cie.Index
		report.Index = &idx
		report.Error = cie.Error()
		writeJSON(w, http.StatusServiceUnavailable, report)
	default:
		h.fail(w, r, err)
	}
}

// HandleCheckpoint handles GET /api/ledger/checkpoint. With ?format=text the
// signed body is returned as plain text.
func (h *HTTPHandler) HandleCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := h.svc.Checkpoint(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=5")
		w.WriteHeader(http.StatusOK)
		w.Write(cp.Body())
		return
	}
	writeJSON(w, http.StatusOK, cp)
}
