// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/image/draw"

	"github.com/GriffinCanCode/scrollshot/internal/config"
	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/history"
	"github.com/GriffinCanCode/scrollshot/internal/resilience"
	"github.com/GriffinCanCode/scrollshot/internal/runner"
	"github.com/GriffinCanCode/scrollshot/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type EventMessage struct {
	Type  string       `json:"type"`
	Event runner.Event `json:"event"`
}

type StatusMessage struct {
	Type   string         `json:"type"`
	Status runner.Status  `json:"status"`
	Recent []runner.Event `json:"recent"`
}

type StopAckMessage struct {
	Type    string `json:"type"`
	Stopped bool   `json:"stopped"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Runner is the session host the server controls.
type Runner interface {
	Start(ctx context.Context, req runner.Request) (string, error)
	Stop() bool
	Status() runner.Status
	Events() <-chan runner.Event
	Recent(n int) []runner.Event
}

// History lists finished sessions.
type History interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
	Get(ctx context.Context, id int64) (history.Record, error)
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one WebSocket connection with a single writer goroutine.
type client struct {
	conn    *websocket.Conn
	send    chan any
	limiter rateLimiter
}

const clientBuffer = 64

// Server handles HTTP and WebSocket connections.
type Server struct {
	runner   Runner
	history  History
	defaults config.CaptureConfig
	breakers []*resilience.Breaker

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a server and starts broadcasting runner events. history may be nil.
func New(r Runner, h History, cfg *config.Config) *Server {
	s := &Server{
		runner:   r,
		history:  h,
		defaults: cfg.Capture,
		clients:  make(map[*websocket.Conn]*client),
		done:     make(chan struct{}),
	}

	go s.broadcastEvents()

	return s
}

// Watch reports b on the health endpoint. Call before serving.
func (s *Server) Watch(b ...*resilience.Breaker) {
	s.breakers = append(s.breakers, b...)
}

// Close stops the broadcaster.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/scroll/start", s.handleStart)
	mux.HandleFunc("POST /api/scroll/stop", s.handleStop)
	mux.HandleFunc("GET /api/scroll/status", s.handleStatus)
	mux.HandleFunc("GET /api/scroll/events", s.handleEvents)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/preview", s.handlePreview)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// startRequest lets display_id be omitted without meaning display 0.
type startRequest struct {
	runner.Request
	DisplayID *uint32 `json:"display_id"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBody))
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid start request"))
		return
	}

	req := body.Request
	req.DisplayID = s.defaults.DisplayID
	if body.DisplayID != nil {
		req.DisplayID = *body.DisplayID
	}
	if req.ScaleFactor == 0 {
		req.ScaleFactor = s.defaults.ScaleFactor
	}

	id, err := s.runner.Start(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trace.Logger(r.Context()).Info("scroll capture requested", "session_id", id, "selection", req.Selection)
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": s.runner.Stop()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

// Health reports whether the capture path is usable.
type Health struct {
	Status   string             `json:"status"`
	Running  bool               `json:"running"`
	Breakers []resilience.Stats `json:"breakers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{Status: "ok", Running: s.runner.Status().Running, Breakers: []resilience.Stats{}}
	for _, b := range s.breakers {
		st := b.Stats()
		if st.State != resilience.Closed.String() {
			h.Status = "degraded"
		}
		h.Breakers = append(h.Breakers, st)
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", 0, 0, runner.RecentEvents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Recent(n))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, errNoHistory)
		return
	}
	limit, err := queryInt(r, "limit", DefaultListLimit, 1, MaxListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	width, err := queryInt(r, "width", PreviewWidth, 1, MaxPreviewWidth)
	if err != nil {
		writeError(w, r, err)
		return
	}

	img, err := loadPNG(rec.Output)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, Thumbnail(img, width)); err != nil {
		trace.Logger(r.Context()).Warn("preview encode failed", "id", rec.ID, "error", err)
	}
}

var errNoHistory = apperrors.New(apperrors.CodeUnavailable, "session history is disabled")

func (s *Server) lookup(r *http.Request) (history.Record, error) {
	if s.history == nil {
		return history.Record{}, errNoHistory
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return history.Record{}, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid session id %q", r.PathValue("id"))
	}
	return s.history.Get(r.Context(), id)
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrapf(err, apperrors.CodeNotFound, "capture %s no longer exists", path)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailed, "open capture")
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailed, "decode capture")
	}
	return img, nil
}

// Thumbnail scales img down to width, keeping its aspect ratio. Images
// already narrower than width are returned unchanged.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "%s must be an integer in [%d, %d], got %q", key, lo, hi, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		trace.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	body := map[string]string{"error": err.Error()}
	if appErr, ok := apperrors.As(err); ok {
		body["code"] = appErr.Code.String()
	}
	writeJSON(w, code, body)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	c := &client{conn: conn, send: make(chan any, clientBuffer)}
	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	baseCtx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	go s.writeLoop(baseCtx, c)
	c.offer(StatusMessage{Type: "status", Status: s.runner.Status(), Recent: s.runner.Recent(0)})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.offer(ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			c.offer(ErrorMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch base.Type {
		case "stop":
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			}
			stopped := s.runner.Stop()
			trace.Logger(ctx).Info("stop requested over websocket", "stopped", stopped)
			c.offer(StopAckMessage{Type: "stop_ack", Stopped: stopped})
		case "status":
			c.offer(StatusMessage{Type: "status", Status: s.runner.Status()})
		default:
			c.offer(ErrorMessage{Type: "error", Message: "unknown message type " + strconv.Quote(base.Type)})
		}
	}
}

// offer queues msg for the client, dropping it when the client is not keeping up.
func (c *client) offer(msg any) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("websocket client lagging, message dropped")
	}
}

func (s *Server) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, WSWriteTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				slog.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) broadcastEvents() {
	events := s.runner.Events()
	for {
		select {
		case <-s.done:
			return
		case ev := <-events:
			msg := EventMessage{Type: "event", Event: ev}
			s.mu.RLock()
			for _, c := range s.clients {
				c.offer(msg)
			}
			s.mu.RUnlock()
		}
	}
}
