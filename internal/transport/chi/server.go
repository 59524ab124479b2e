// Package chi is the HTTP ingestion and operator surface: listings in,
// health and stats out. The normalizer downstream remains the sole
// adaptation boundary — this layer only decodes, pre-validates, and queues.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wayneblacklock/plundrr/internal/domain"
	"github.com/wayneblacklock/plundrr/internal/domain/listing"
	healthuc "github.com/wayneblacklock/plundrr/internal/usecase/health"
	"github.com/wayneblacklock/plundrr/internal/version"
)

// ErrorCode is the machine-readable error discriminator in responses.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeMalformedListing ErrorCode = "malformed_listing"
	CodeQueueFull        ErrorCode = "queue_full"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeInternal         ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Ingestor queues listings for evaluation.
type Ingestor interface {
	Submit(l listing.Listing) error
	QueueDepth() int
}

// Stats exposes engine population counts for the operator surface.
type Stats interface {
	IndexedSearches() int
	BlockedPairs() int
}

// Server handles the HTTP API.
type Server struct {
	engine Ingestor
	health *healthuc.Service
	stats  Stats
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(engine Ingestor, health *healthuc.Service, stats Stats, logger *zap.Logger) *Server {
	return &Server{engine: engine, health: health, stats: stats, logger: logger}
}

// Routes mounts the API on a chi router.
func (s *Server) Routes(r chirouter.Router) {
	r.Post("/v1/listings", s.postListing)
	r.Get("/v1/stats", s.getStats)
	r.Get("/health", s.getHealth)
}

// postListing handles POST /v1/listings: decode, pre-validate the required
// identifiers, queue. 429 is the backpressure signal — the listing is not
// dropped by the engine, the source retries it.
func (s *Server) postListing(w http.ResponseWriter, r *http.Request) {
	var l listing.Listing
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(l.ID) == "" || strings.TrimSpace(l.SellerID) == "" {
		writeError(w, http.StatusBadRequest, CodeMalformedListing, "id and seller_id are required")
		return
	}

	if err := s.engine.Submit(l); err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, CodeQueueFull, "evaluation queue is full, retry later")
			return
		}
		s.logger.Error("submit listing failed", zap.String("listing_id", l.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": l.ID})
}

// getHealth handles GET /health.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":  report.Status,
		"checks":  report.Checks,
		"version": version.Version,
	})
}

// getStats handles GET /v1/stats.
func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"indexed_searches": s.stats.IndexedSearches(),
		"blocked_pairs":    s.stats.BlockedPairs(),
		"queue_depth":      s.engine.QueueDepth(),
		"version":          version.Version,
		"commit":           version.Commit,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}
