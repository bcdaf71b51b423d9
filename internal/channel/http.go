package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"reelbot/internal/domain"
	"reelbot/internal/metrics"

	"github.com/google/uuid"
)

const (
	httpMaxBodyBytes = 1 << 20

	replyInvalidJSON      = "Invalid JSON"
	replyNoMessage        = "No message"
	replyMethodNotAllowed = "Method not allowed"
	replyTooLarge         = "Request too large"
)

// HTTP exposes the pipeline as a JSON endpoint for manual and automated
// testing: POST /update {"message": "..."} -> {"reply": "..."}.
type HTTP struct {
	addr        string
	processor   Processor
	collector   *metrics.Collector
	metricsPath string
	logger      *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

type HTTPConfig struct {
	Addr        string // host:port, default 0.0.0.0:8080
	Processor   Processor
	Collector   *metrics.Collector // optional; enables MetricsPath
	MetricsPath string
	Logger      *slog.Logger
}

// UpdateRequest is the body accepted by POST /update.
type UpdateRequest struct {
	Message string `json:"message"`
}

// UpdateResponse is returned for every /update call, success or not.
type UpdateResponse struct {
	Reply string `json:"reply"`
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Addr == "" {
		cfg.Addr = "0.0.0.0:8080"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &HTTP{
		addr:        cfg.Addr,
		processor:   cfg.Processor,
		collector:   cfg.Collector,
		metricsPath: cfg.MetricsPath,
		logger:      cfg.Logger,
		ready:       make(chan struct{}),
	}
}

func (h *HTTP) Name() string { return "http" }

// Handler returns the routed handler without starting a listener.
func (h *HTTP) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/update", h.handleUpdate)
	mux.HandleFunc("/healthz", h.handleHealth)
	if h.collector != nil {
		mux.Handle(h.metricsPath, h.collector.Handler())
	}
	return h.withRequestID(mux)
}

// Addr returns the bound address once the server is listening.
func (h *HTTP) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// Ready is closed once the listener is bound.
func (h *HTTP) Ready() <-chan struct{} { return h.ready }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (h *HTTP) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()
	close(h.ready)

	server := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	h.logger.Info("http test endpoint listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		h.logger.Info("http test endpoint shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func (h *HTTP) handleUpdate(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.Header().Set("Allow", http.MethodPost)
		h.writeReply(rw, r, http.StatusMethodNotAllowed, replyMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	if h.collector != nil {
		inflight := h.collector.Gauge("reelbot_http_inflight_requests", "Update requests currently being processed", "")
		inflight.Inc()
		defer inflight.Dec()
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, httpMaxBodyBytes+1))
	if err != nil {
		h.writeReply(rw, r, http.StatusBadRequest, replyInvalidJSON)
		return
	}
	if len(body) > httpMaxBodyBytes {
		h.writeReply(rw, r, http.StatusRequestEntityTooLarge, replyTooLarge)
		return
	}

	text, status := parseUpdate(body)
	switch status {
	case http.StatusBadRequest:
		h.writeReply(rw, r, status, replyInvalidJSON)
		return
	case http.StatusUnprocessableEntity:
		h.writeReply(rw, r, status, replyNoMessage)
		return
	}

	reply := h.processor.Process(r.Context(), domain.InboundMessage{
		Channel:   h.Name(),
		ChatID:    requestID(r),
		SenderID:  r.RemoteAddr,
		Text:      text,
		Timestamp: time.Now(),
	})

	h.logger.Info("http update processed",
		"request_id", requestID(r),
		"outcome", reply.Outcome,
		"text_len", len(text),
	)
	h.writeReply(rw, r, http.StatusOK, reply.Text())
}

// parseUpdate extracts the message text. It returns 400 for a body that is
// not JSON and 422 when "message" is missing, empty or not a string.
func parseUpdate(body []byte) (string, int) {
	if !json.Valid(body) {
		return "", http.StatusBadRequest
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", http.StatusUnprocessableEntity
	}
	raw, ok := fields["message"]
	if !ok {
		return "", http.StatusUnprocessableEntity
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil || message == "" {
		return "", http.StatusUnprocessableEntity
	}
	return message, http.StatusOK
}

func (h *HTTP) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

func (h *HTTP) writeReply(rw http.ResponseWriter, r *http.Request, status int, text string) {
	if h.collector != nil {
		h.collector.Counter("reelbot_http_responses_total", "HTTP test endpoint responses, by status code",
			`code="`+strconv.Itoa(status)+`"`).Inc()
	}
	if status != http.StatusOK {
		h.logger.Warn("http update rejected", "request_id", requestID(r), "status", status, "reply", text)
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(UpdateResponse{Reply: text}); err != nil {
		h.logger.Error("http write failed", "request_id", requestID(r), "err", err)
	}
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-ID"

// withRequestID tags each request with the caller's X-Request-ID or a fresh UUID.
func (h *HTTP) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		rw.Header().Set(requestIDHeader, id)
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}
