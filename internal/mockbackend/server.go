// Package mockbackend serves a stand-in for the RAG backend so the client can
// be exercised without the real service.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/backend"
	"github.com/Rorical/ragchat/internal/models"
)

const maxUploadSize = 64 << 20

type Options struct {
	// ChunkSize is the number of reply bytes written per flush.
	ChunkSize int
	// ChunkDelay is slept between flushes.
	ChunkDelay time.Duration
	// IngestSteps is how many status polls a running ingestion takes.
	IngestSteps int
}

func DefaultOptions() Options {
	return Options{ChunkSize: 3, ChunkDelay: 40 * time.Millisecond, IngestSteps: 4}
}

type Server struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	polls    int
	status   models.IngestionStatus
	step     int
	uploaded string
	agentUp  bool
}

func NewServer(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}
	if opts.IngestSteps <= 0 {
		opts.IngestSteps = 1
	}
	return &Server{
		opts:   opts,
		logger: logger.Named("mockbackend"),
		status: models.IngestionIdle,
	}
}

// Router mounts the backend routes under /api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Post(backend.ChatPath, s.handleChat)
		r.Get(backend.StatusPath, s.handleStatus)
		r.Post(backend.UploadPath, s.handleUpload)
		r.Post(backend.IngestPath, s.handleIngest)
	})
	return r
}

type chatRequest struct {
	Message string `json:"message"`
}

// Reply is the canned answer streamed for message.
func Reply(message string) string {
	return fmt.Sprintf("You asked: %q. Voilà, here is what the indexed notes say: café ☕, naïve résumé, 数据检索 and 🚀.", message)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	// Fixed-size byte chunks split multi-byte characters on purpose.
	reply := []byte(Reply(req.Message))
	for start := 0; start < len(reply); start += s.opts.ChunkSize {
		end := min(start+s.opts.ChunkSize, len(reply))
		if _, err := w.Write(reply[start:end]); err != nil {
			s.logger.Debug("client went away", zap.Error(err))
			return
		}
		flusher.Flush()

		if s.opts.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.opts.ChunkDelay):
			}
		}
	}
	s.logger.Info("reply streamed", zap.Int("bytes", len(reply)), zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.polls++
	var progress *float64
	if s.status == models.IngestionRunning {
		s.step++
		p := float64(s.step) / float64(s.opts.IngestSteps)
		progress = &p
		if s.step >= s.opts.IngestSteps {
			s.status = models.IngestionDone
			s.agentUp = true
		}
	}
	msg := fmt.Sprintf("poll #%d", s.polls)
	snap := models.StatusSnapshot{
		IngestionStatus:   s.status,
		AgentInitialized:  s.agentUp,
		IngestionMessage:  &msg,
		IngestionProgress: progress,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "file field is required"})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Only .zip files are allowed"})
		return
	}
	n, err := io.Copy(io.Discard, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	s.uploaded = header.Filename
	s.mu.Unlock()

	s.logger.Info("archive uploaded", zap.String("file", header.Filename), zap.Int64("bytes", n))
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded", "filename": header.Filename})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.status == models.IngestionRunning:
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Ingestion already running"})
		return
	case s.uploaded == "":
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "No uploaded data to ingest"})
		return
	}

	s.status = models.IngestionRunning
	s.step = 0
	s.agentUp = false
	s.logger.Info("ingestion started", zap.String("file", s.uploaded))
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
