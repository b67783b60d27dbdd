// Package bridge serves the chat service to browsers as server-sent events.
package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/chat-relay/pkg/metrics"
	"github.com/go-go-golems/chat-relay/pkg/service"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	client      service.ChatServiceClient
	allowOrigin string
}

type Option func(*Handler)

func WithAllowOrigin(origin string) Option {
	return func(h *Handler) {
		h.allowOrigin = origin
	}
}

func NewHandler(client service.ChatServiceClient, options ...Option) *Handler {
	h := &Handler{
		client:      client,
		allowOrigin: "*",
	}
	for _, o := range options {
		o(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// NewRouter returns the bridge router with its middleware stack.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors(h.allowOrigin))

	h.RegisterRoutes(r)
	return r
}

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Info().
			Str("component", "bridge").
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("Bridge request")
	})
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req service.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.BridgeRequestsTotal.WithLabelValues("unknown", "bad_request").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tools := false
	if v := r.URL.Query().Get("tools"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			metrics.BridgeRequestsTotal.WithLabelValues("unknown", "bad_request").Inc()
			http.Error(w, fmt.Sprintf("invalid tools parameter: %q", v), http.StatusBadRequest)
			return
		}
		tools = b
	}
	mode := "simple"
	if tools {
		mode = "tools"
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	creq := connect.NewRequest(&req)
	if id := middleware.GetReqID(r.Context()); id != "" {
		creq.Header().Set(service.CallIDHeader, id)
	}
	var stream *connect.ServerStreamForClient[service.ChatResponse]
	var err error
	if tools {
		stream, err = h.client.StreamChatWithTools(r.Context(), creq)
	} else {
		stream, err = h.client.StreamChat(r.Context(), creq)
	}
	if err != nil {
		metrics.BridgeRequestsTotal.WithLabelValues(mode, "error").Inc()
		http.Error(w, fmt.Sprintf("Failed to call relay: %s", errorMessage(err)), http.StatusBadGateway)
		return
	}
	defer func() { _ = stream.Close() }()

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	for stream.Receive() {
		chunk := stream.Msg().Chunk
		if chunk == "" {
			continue
		}
		start()
		if err := writeEvent(w, "", chunk); err != nil {
			log.Debug().Err(err).Str("component", "bridge").Msg("Client went away")
			metrics.BridgeRequestsTotal.WithLabelValues(mode, "canceled").Inc()
			return
		}
		flusher.Flush()
	}

	if err := stream.Err(); err != nil {
		metrics.BridgeRequestsTotal.WithLabelValues(mode, "error").Inc()
		log.Warn().Err(err).Str("component", "bridge").Str("code", connect.CodeOf(err).String()).Msg("Relay stream failed")
		if !started {
			http.Error(w, fmt.Sprintf("Failed to call relay: %s", errorMessage(err)), http.StatusBadGateway)
			return
		}
		_ = writeEvent(w, "error", errorMessage(err))
		flusher.Flush()
		return
	}

	start()
	flusher.Flush()
	metrics.BridgeRequestsTotal.WithLabelValues(mode, "ok").Inc()
}

// writeEvent writes one server-sent event. Multi-line payloads are split over
// several data lines.
func writeEvent(w io.Writer, event string, data string) error {
	var sb strings.Builder
	if event != "" {
		sb.WriteString("event: ")
		sb.WriteString(event)
		sb.WriteString("\n")
	}
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func errorMessage(err error) string {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce.Message()
	}
	return err.Error()
}
