package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/outcomes"
)

// Server is the phone-call intake listener. Recruiter calls are the one
// signal that cannot arrive over IMAP, so a companion app on the phone
// posts them here instead.
type Server struct {
	config   *common.IntakeConfig
	outcomes *outcomes.Service
	server   *http.Server
	logger   arbor.ILogger
}

func NewServer(config *common.IntakeConfig, outcomeService *outcomes.Service, logger arbor.ILogger) *Server {
	s := &Server{
		config:   config,
		outcomes: outcomeService,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/calls", s.handleCalls)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Msg("Call intake listener starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("intake listener failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("intake shutdown failed: %w", err)
	}
	s.logger.Info().Msg("Call intake listener stopped")
	return nil
}

type callRequest struct {
	CallerNumber string `json:"caller_number"`
	CallerName   string `json:"caller_name"`
	Entity       string `json:"entity"`
	Notes        string `json:"notes"`
	Outcome      string `json:"outcome"`
	OccurredAt   string `json:"occurred_at"` // RFC 3339, defaults to now
}

// handleCalls accepts POST /api/calls and runs the call through the
// outcome pipeline.
func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	call := &models.CallLog{
		CallerNumber: req.CallerNumber,
		CallerName:   req.CallerName,
		Entity:       req.Entity,
		Notes:        req.Notes,
		Outcome:      models.OutcomeStage(req.Outcome),
	}
	if req.OccurredAt != "" {
		occurred, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "occurred_at must be RFC 3339")
			return
		}
		call.OccurredAt = occurred.UTC()
	}

	if err := s.outcomes.LogCall(r.Context(), call); err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, common.ErrTransient):
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.logger.Error().Err(err).Msg("Call intake failed")
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.logger.Info().
		Str("entity", call.Entity).
		Bool("matched", call.ApplicationID != nil).
		Msg("Call logged")

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                     call.ID,
		"application_id":         call.ApplicationID,
		"requires_manual_review": call.RequiresManualReview,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]string{"error": message})
}
