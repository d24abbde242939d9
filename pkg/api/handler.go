package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"heart-audio/pkg/analysis"
	"heart-audio/pkg/config"
	"heart-audio/pkg/models"
	"heart-audio/pkg/pipeline"
	"heart-audio/pkg/storage"
	"heart-audio/pkg/telemetry"
)

const defaultListLimit = 50

type Handlers struct {
	pipeline *pipeline.Manager
	memory   storage.MemoryStore
	results  storage.ResultStore
	cfg      config.ServerConfig
	logger   *logrus.Logger
	metrics  *telemetry.Metrics
}

func NewHandlers(p *pipeline.Manager, memory storage.MemoryStore, results storage.ResultStore,
	cfg config.ServerConfig, logger *logrus.Logger, metrics *telemetry.Metrics) *Handlers {
	return &Handlers{
		pipeline: p,
		memory:   memory,
		results:  results,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/v1/audio/analyze", h.AnalyzeHandler).Methods(http.MethodPost)
	router.HandleFunc("/v1/audio/result/{analysis_id}", h.GetResultHandler).Methods(http.MethodGet)
	router.HandleFunc("/v1/users/{user_id}/analyses", h.GetUserAnalysesHandler).Methods(http.MethodGet)
	router.HandleFunc("/v1/prosody/analyze", h.ProsodyHandler).Methods(http.MethodPost)
	router.HandleFunc("/v1/batch/run", h.BatchHandler).Methods(http.MethodPost)
	router.HandleFunc("/ws", h.WebSocketHandler)
	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	return router
}

// analysisResponse is the wire shape shared by the analyze and result endpoints.
type analysisResponse struct {
	AnalysisID     string                  `json:"analysis_id"`
	UserID         string                  `json:"user_id"`
	SessionID      *string                 `json:"session_id"`
	CreatedAt      *time.Time              `json:"created_at,omitempty"`
	Status         models.ProcessingStatus `json:"status"`
	Error          string                  `json:"error,omitempty"`
	TranscriptText string                  `json:"transcript_text"`
	Metrics        *models.MetricsRecord   `json:"metrics"`
	Emotion        *models.EmotionEstimate `json:"emotion_estimate"`
	Summary        *models.Summary         `json:"summary"`
}

func toResponse(a *models.Analysis, withCreated bool) analysisResponse {
	resp := analysisResponse{
		AnalysisID:     a.ID,
		UserID:         a.UserID,
		Status:         a.Status,
		Error:          a.Error,
		TranscriptText: a.TranscriptText,
		Metrics:        a.Metrics,
		Emotion:        a.Emotion,
		Summary:        a.Summary,
	}
	if a.SessionID != "" {
		sid := a.SessionID
		resp.SessionID = &sid
	}
	if withCreated {
		created := a.CreatedAt
		resp.CreatedAt = &created
	}
	if resp.Summary == nil {
		resp.Summary = &models.Summary{}
	}
	return resp
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	userID := r.FormValue("user_id")
	sessionID := r.FormValue("session_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read audio file")
		return
	}

	sub := models.NewAudioSubmission(userID, sessionID, header.Filename, data)
	log := h.logger.WithFields(logrus.Fields{"analysis_id": sub.ID, "user_id": userID, "size": sub.Size})
	log.Info("Analysis requested")

	ctx := r.Context()
	if h.cfg.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.AnalyzeTimeout)
		defer cancel()
	}

	result, err := h.pipeline.SubmitAndWait(ctx, sub)
	if err != nil {
		status := statusForError(err)
		log.WithError(err).WithField("status", status).Warn("Analysis request failed")
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result, false))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrShuttingDown), errors.Is(err, pipeline.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrAudioTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrTranscriptionFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["analysis_id"]

	a, err := h.results.Get(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, toResponse(a, true))
		return
	}
	if !errors.Is(err, storage.ErrAnalysisNotFound) {
		h.logger.WithError(err).WithField("analysis_id", id).Error("Result lookup failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// not persisted yet: report progress or failure from memory
	inflight, err := h.memory.GetAnalysis(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	status := http.StatusAccepted
	if inflight.Status.Terminal() {
		status = http.StatusOK
	}
	writeJSON(w, status, toResponse(inflight, true))
}

func (h *Handlers) GetUserAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	list, err := h.results.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Listing analyses failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]analysisResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a, true))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"analyses": out,
		"count":    len(out),
	})
}

type prosodyRequest struct {
	Words      []models.WordTimestamp `json:"words"`
	DurationMs models.LenientFloat    `json:"duration_ms"`
	Summary    string                 `json:"summary"`
	Keywords   []string               `json:"keywords"`
}

// ProsodyHandler runs the metrics and classification core on caller-supplied
// timestamps without transcription or persistence.
func (h *Handlers) ProsodyHandler(w http.ResponseWriter, r *http.Request) {
	var req prosodyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	metrics := analysis.ComputeMetrics(req.Words, models.ClampMillis(float64(req.DurationMs)))
	emotion := analysis.Classify(metrics, req.Summary, req.Keywords)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":          metrics,
		"emotion_estimate": emotion,
	})
}

func (h *Handlers) BatchHandler(w http.ResponseWriter, r *http.Request) {
	updated, err := h.pipeline.Recompute(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Batch recompute failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"message": "batch recompute executed",
		"updated": updated,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
