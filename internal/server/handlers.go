package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"holoexport/internal/export"
	"holoexport/internal/jobs"
	"holoexport/internal/logging"
	"holoexport/internal/services"
)

type convertRequest struct {
	Source     string  `json:"source"`
	Format     string  `json:"format"`
	Quality    string  `json:"quality"`
	Resolution [2]int  `json:"resolution"`
	FPS        int     `json:"fps"`
	Duration   float64 `json:"duration"`
	Alpha      bool    `json:"alpha"`
	Bitrate    string  `json:"bitrate,omitempty"`
	Codec      string  `json:"codec,omitempty"`
	Owner      string  `json:"owner,omitempty"`
}

type statusResponse struct {
	JobID       string          `json:"job_id"`
	Status      jobs.Status     `json:"status"`
	Progress    int             `json:"progress"`
	Format      export.Format   `json:"format"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	DownloadURL string          `json:"download_url,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	format, ok := export.ParseFormat(req.Format)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q (supported: %s)", req.Format, joinFormats(s.registry.Formats())))
		return
	}
	quality, ok := export.ParseQuality(req.Quality)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown quality %q", req.Quality))
		return
	}

	receipt, err := s.controller.Submit(r.Context(), jobs.SubmitRequest{
		Owner:  req.Owner,
		Source: req.Source,
		Format: format,
		Options: export.Options{
			Quality:  quality,
			Width:    req.Resolution[0],
			Height:   req.Resolution[1],
			FPS:      req.FPS,
			Duration: req.Duration,
			Alpha:    req.Alpha,
			Bitrate:  req.Bitrate,
			Codec:    req.Codec,
		},
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("submission failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to submit export job")
		return
	}
	s.writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := s.controller.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("status query failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to query job status")
		return
	}
	s.writeJSON(w, http.StatusOK, s.statusPayload(job))
}

func (s *Server) statusPayload(job *jobs.Job) statusResponse {
	payload := statusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		Format:      job.Format,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	switch job.Status {
	case jobs.StatusComplete:
		payload.DownloadURL = "/api/export/download/" + job.ID
		if strings.TrimSpace(job.ResultJSON) != "" {
			payload.Result = json.RawMessage(job.ResultJSON)
		}
	case jobs.StatusFailed:
		payload.Error = job.ErrorMessage
	}
	return payload
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	artifact, err := s.controller.ArtifactFor(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, jobs.ErrNotReady):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrIntegrity):
			s.logger.Error("artifact integrity failure", logging.String(logging.FieldJobID, id), logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
		default:
			s.logger.Error("artifact lookup failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to locate artifact")
		}
		return
	}

	w.Header().Set("Content-Type", artifact.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+exportExtension(artifact.MediaType)))
	http.ServeFile(w, r, artifact.Path)
}

func exportExtension(mediaType string) string {
	switch mediaType {
	case "video/mp4":
		return ".mp4"
	case "image/gif":
		return ".gif"
	case "video/webm":
		return ".webm"
	default:
		return ""
	}
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"formats": s.registry.Capabilities(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := s.controller.History(r.Context(), owner, limit)
	if err != nil {
		s.logger.Error("history query failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list job history")
		return
	}
	payloads := make([]statusResponse, 0, len(history))
	for _, job := range history {
		payloads = append(payloads, s.statusPayload(job))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": payloads})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.Health(r.Context())
	if err != nil {
		s.logger.Error("job health query failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to aggregate job stats")
		return
	}
	stats := s.registry.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"exports": stats,
		"jobs": map[string]int{
			"total":      health.Total,
			"pending":    health.Pending,
			"processing": health.Processing,
			"complete":   health.Complete,
			"failed":     health.Failed,
		},
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.controller.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, jobs.ErrTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("cancel failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to cancel job")
		}
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  id,
		"message": "cancellation requested",
	})
}

func (s *Server) handleEncoderHealth(w http.ResponseWriter, r *http.Request) {
	health := s.locator.HealthCheck(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"installed":      health.Installed,
		"source":         health.Source,
		"version":        health.Version,
		"path":           health.Path,
		"codecs_found":   health.CodecsAvailable,
		"codecs_missing": health.CodecsMissing,
		"status":         health.Status,
		"remediation":    health.Remediation,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func joinFormats(formats []export.Format) string {
	parts := make([]string, len(formats))
	for i, format := range formats {
		parts[i] = string(format)
	}
	return strings.Join(parts, ", ")
}
