package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lavkamarket/delivery/internal/telemetry"
	"github.com/lavkamarket/delivery/pkg/carrier"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

// Server is the HTTP server for the delivery service.
type Server struct {
	port     int
	registry *carrier.Registry
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, registry *carrier.Registry, logger *otelzap.Logger, metrics *telemetry.Metrics) *Server {
	return &Server{
		port:     cfg.Port,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/delivery/pvz/search", s.handlePVZSearch)
	mux.HandleFunc("/api/delivery/calculate", s.handleCalculate)
	mux.HandleFunc("/api/delivery/tariffs", s.handleTariffs)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ============================================================================
// Request/response types
// ============================================================================

type pvzSearchRequest struct {
	Provider string `json:"provider"`
	carrier.SearchRequest
}

type pvzSearchResponse struct {
	Points []carrier.PickupPoint `json:"points"`
}

type calculateRequest struct {
	Provider string `json:"provider"`
	carrier.CalculateRequest
}

type tariffsResponse struct {
	Tariffs []carrier.TariffQuote `json:"tariffs"`
}

// errorResponse is the uniform error body. ErrorCode carries the
// carrier-native numeric code when one exists.
type errorResponse struct {
	Message   string `json:"message"`
	ErrorCode int    `json:"error_code,omitempty"`
	Detail    any    `json:"detail,omitempty"`
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) handlePVZSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req pvzSearchRequest
	if !s.decode(w, r, &req) {
		return
	}

	points, err := s.registry.SearchPickupPoints(r.Context(), req.Provider, &req.SearchRequest)
	s.record("pvz_search", req.Provider, err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pvzSearchResponse{Points: points})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req calculateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validateCalculate(&req.CalculateRequest); err != nil {
		s.record("calculate", req.Provider, err, start)
		s.writeError(w, r, err)
		return
	}

	quote, err := s.registry.Calculate(r.Context(), req.Provider, &req.CalculateRequest)
	s.record("calculate", req.Provider, err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleTariffs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req calculateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validateCalculate(&req.CalculateRequest); err != nil {
		s.record("tariffs", req.Provider, err, start)
		s.writeError(w, r, err)
		return
	}

	tariffs, err := s.registry.ListTariffs(r.Context(), req.Provider, &req.CalculateRequest)
	s.record("tariffs", req.Provider, err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tariffsResponse{Tariffs: tariffs})
}

// validateCalculate enforces the surface-level shape rules before any
// provider is involved: the delivery type decides which destination field
// must be present, and the other must be absent.
func validateCalculate(req *carrier.CalculateRequest) error {
	switch req.Type {
	case carrier.TypePVZ:
		if req.PickupPointID == "" {
			return carrier.NewError("", carrier.KindInvalidInput,
				"pickup_point_id is required for pvz delivery")
		}
		if req.Address != nil {
			return carrier.NewError("", carrier.KindInvalidInput,
				"address is not allowed for pvz delivery")
		}
	case carrier.TypeDoor:
		if req.Address == nil {
			return carrier.NewError("", carrier.KindInvalidInput,
				"address is required for door delivery")
		}
		if req.PickupPointID != "" {
			return carrier.NewError("", carrier.KindInvalidInput,
				"pickup_point_id is not allowed for door delivery")
		}
	default:
		return carrier.NewError("", carrier.KindInvalidInput,
			fmt.Sprintf("unknown delivery type %q", req.Type))
	}
	if !(req.WeightKg > 0) {
		return carrier.NewError("", carrier.KindInvalidInput,
			"total_weight must be a positive number")
	}
	return nil
}

// ============================================================================
// Plumbing
// ============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed,
			errorResponse{Message: "method not allowed, use POST"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest,
			errorResponse{Message: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := carrier.KindOf(err)
	status := statusForKind(kind)

	body := errorResponse{Message: err.Error(), ErrorCode: carrier.CodeOf(err)}
	var provErr *carrier.Error
	if errors.As(err, &provErr) {
		body.Message = provErr.Message
		body.Detail = provErr.Detail
	}

	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Delivery operation failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	} else {
		s.logger.Ctx(r.Context()).Warn("Delivery operation rejected",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}

	s.writeJSON(w, status, body)
}

// statusForKind maps failure classification to HTTP status. Input problems
// are the caller's fault; everything else is a server-side failure.
func statusForKind(kind carrier.Kind) int {
	switch kind {
	case carrier.KindInvalidInput, carrier.KindDestinationUnresolved:
		return http.StatusBadRequest
	case carrier.KindCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) record(operation, provider string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
		s.metrics.RecordError(provider, string(carrier.KindOf(err)))
	}
	s.metrics.RecordRequest(operation, provider, status, time.Since(start).Seconds())
}
