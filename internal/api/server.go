package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/corpusforge/docrefine/internal/observability"
	"github.com/corpusforge/docrefine/internal/refine"
)

// maxRequestBytes bounds a posted document's size.
const maxRequestBytes = 16 << 20

// NewRouter creates the API router.
func NewRouter(svc *Service, logger *observability.Logger, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"docrefine"}`))
	})

	h := &refineHandler{svc: svc, logger: logger}
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/refine", h.Refine)
	})

	return r
}

type refineHandler struct {
	svc    *Service
	logger *observability.Logger
}

// RefineRequestDTO is the POST /api/v1/refine request body.
type RefineRequestDTO struct {
	Name          string `json:"name,omitempty"`
	Text          string `json:"text"`
	IncludeStages bool   `json:"includeStages,omitempty"`
}

// RefineResponseDTO is the refinement response.
type RefineResponseDTO struct {
	Name     string            `json:"name"`
	Language string            `json:"language"`
	Text     string            `json:"text"`
	Trimmed  bool              `json:"trimmed"`
	Stats    refine.Stats      `json:"stats"`
	Stages   map[string]string `json:"stages,omitempty"`
}

// Refine handles POST /api/v1/refine.
func (h *refineHandler) Refine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RefineRequestDTO
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Text == "" {
		h.writeError(w, http.StatusBadRequest, "text is required", "")
		return
	}
	if req.Name == "" {
		req.Name = "document"
	}

	result, err := h.svc.Refine(ctx, req.Name, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("document", req.Name).Msg("refinement failed")
		h.writeError(w, http.StatusUnprocessableEntity, "refinement failed", err.Error())
		return
	}

	refined, _ := result.Document.Artifact(ArtifactRefined)
	resp := RefineResponseDTO{
		Name:     req.Name,
		Language: string(result.Document.Language),
		Text:     refined,
		Trimmed:  result.Markers.Trimmed(),
		Stats:    result.Stats,
	}
	if req.IncludeStages {
		resp.Stages = map[string]string{}
		for _, key := range []string{ArtifactCleaned, ArtifactSegmented, ArtifactPruned} {
			if text, ok := result.Document.Artifact(key); ok {
				resp.Stages[key] = text
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *refineHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
