// Package http implements the HTTP transport for replymode.
//
// This transport exposes a small REST API: the reply pipeline, a bare TTS
// decision endpoint, per-session TTS configuration and a read-only view of a
// contact's voice mode. It is what the WhatsApp/Instagram gateways call.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/caji-assist/replymode/docs"
	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/session"
	"github.com/caji-assist/replymode/internal/transport"
)

// Headers carrying the message fields of a raw audio upload.
const (
	HeaderSession      = "X-Replymode-Session"
	HeaderRemoteJID    = "X-Replymode-Remote-Jid"
	HeaderResponseText = "X-Replymode-Response-Text"
)

const defaultMaxAudioBytes = 25 << 20

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port     int
	client   *http.Client
	maxAudio int64

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{
		port:     port,
		client:   &http.Client{Timeout: 15 * time.Second},
		maxAudio: defaultMaxAudioBytes,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler returns the API routes served with svc.
func (t *Transport) Handler(svc transport.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/replies", func(w http.ResponseWriter, r *http.Request) {
		t.handleReply(w, r, svc)
	})
	mux.HandleFunc("POST /v1/decisions", func(w http.ResponseWriter, r *http.Request) {
		handleDecision(w, r, svc)
	})
	mux.HandleFunc("GET /v1/sessions/{id}/config", func(w http.ResponseWriter, r *http.Request) {
		handleGetSessionConfig(w, r, svc)
	})
	mux.HandleFunc("PUT /v1/sessions/{id}/config", func(w http.ResponseWriter, r *http.Request) {
		handlePutSessionConfig(w, r, svc)
	})
	mux.HandleFunc("GET /v1/contacts/{id}/audio-mode", func(w http.ResponseWriter, r *http.Request) {
		handleAudioMode(w, r, svc)
	})

	// Swagger UI, backed by the doc registered by the docs package.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server and serves requests with svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleReply processes a POST /v1/replies request.
//
// @Summary     Build the reply for a customer message
// @Description Accepts a JSON message, or raw voice-note bytes with the message fields in headers.
// @Description Voice notes are transcribed, the session's TTS rules decide between audio and text,
// @Description and the reply parts are returned (and forwarded to reply_to when set).
// @Tags        replies
// @Accept      json
// @Accept      audio/ogg
// @Accept      audio/mpeg
// @Produce     json
// @Param       message                    body    message.Message  true   "Message (JSON). For raw audio, POST the bytes with the audio Content-Type."
// @Param       X-Replymode-Session        header  string           false  "Session id (raw audio uploads)"
// @Param       X-Replymode-Remote-Jid     header  string           false  "Customer address (raw audio uploads)"
// @Param       X-Replymode-Response-Text  header  string           false  "Assistant reply, URL-encoded (raw audio uploads)"
// @Success     200  {object}  message.Reply  "Reply parts"
// @Failure     400  {string}  string  "Invalid request body or headers"
// @Failure     413  {string}  string  "Audio larger than 25 MiB"
// @Failure     500  {string}  string  "Internal processing error"
// @Router      /v1/replies [post]
func (t *Transport) handleReply(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	var msg message.Message

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	default:
		audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.maxAudio))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, fmt.Sprintf("audio exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "reading audio: "+err.Error(), http.StatusBadRequest)
			return
		}
		msg.Audio = audio
		msg.Type = message.IncomingAudio
		msg.ContentType = r.Header.Get("Content-Type")
		msg.SessionID = r.Header.Get(HeaderSession)
		msg.RemoteJID = r.Header.Get(HeaderRemoteJID)
		msg.ResponseText = headerText(r.Header.Get(HeaderResponseText))
	}

	reply, err := svc.Handle(r.Context(), &msg)
	if err != nil {
		writeError(w, "reply", err)
		return
	}
	writeJSON(w, reply)
}

// handleDecision processes a POST /v1/decisions request.
//
// @Summary     Evaluate TTS rules
// @Description Returns whether the reply should be audio and the rule that decided.
// @Description A contact id enables start/stop phrase handling and updates the contact's voice mode.
// @Tags        decisions
// @Accept      json
// @Produce     json
// @Param       request  body      message.DecisionRequest   true  "Decision input"
// @Success     200      {object}  message.DecisionResponse  "Decision"
// @Failure     400      {string}  string  "Invalid request"
// @Router      /v1/decisions [post]
func handleDecision(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	var req message.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := svc.Decide(r.Context(), req)
	if err != nil {
		writeError(w, "decision", err)
		return
	}
	writeJSON(w, res)
}

// handleGetSessionConfig processes a GET /v1/sessions/{id}/config request.
//
// @Summary     Get a session's TTS configuration
// @Tags        sessions
// @Produce     json
// @Param       id   path      string          true  "Session id"
// @Success     200  {object}  session.Config  "Configuration"
// @Router      /v1/sessions/{id}/config [get]
func handleGetSessionConfig(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	cfg, err := svc.SessionConfig(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "session config", err)
		return
	}
	writeJSON(w, cfg)
}

// handlePutSessionConfig processes a PUT /v1/sessions/{id}/config request.
//
// @Summary     Update a session's TTS configuration
// @Description Fields left out of the body keep their current value.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       id      path      string          true  "Session id"
// @Param       update  body      session.Update  true  "Partial configuration"
// @Success     200     {object}  session.Config  "Updated configuration"
// @Failure     400     {string}  string  "Invalid request"
// @Router      /v1/sessions/{id}/config [put]
func handlePutSessionConfig(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	var u session.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	cfg, err := svc.UpdateSessionConfig(r.Context(), r.PathValue("id"), u)
	if err != nil {
		writeError(w, "session config", err)
		return
	}
	writeJSON(w, cfg)
}

// handleAudioMode processes a GET /v1/contacts/{id}/audio-mode request.
//
// @Summary     Get a contact's voice mode
// @Tags        contacts
// @Produce     json
// @Param       id   path      string                  true  "Contact id (sessionId:remoteJid)"
// @Success     200  {object}  message.AudioModeState  "Voice mode"
// @Failure     500  {string}  string  "Mode store unavailable"
// @Router      /v1/contacts/{id}/audio-mode [get]
func handleAudioMode(w http.ResponseWriter, r *http.Request, svc transport.Service) {
	state, err := svc.AudioMode(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "audio mode", err)
		return
	}
	writeJSON(w, state)
}

// headerText decodes a URL-encoded header value, falling back to the raw value.
func headerText(v string) string {
	if s, err := url.PathUnescape(v); err == nil {
		return s
	}
	return v
}

// writeJSON encodes v before writing any header so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
		http.Error(w, "encoding response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, transport.ErrInvalidRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Error(op+" failed", "error", err)
	http.Error(w, op+" error: "+err.Error(), http.StatusInternalServerError)
}

// Send delivers a payload to an HTTP target via POST.
func (t *Transport) Send(ctx context.Context, target message.Target, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http send: status %d: %s", resp.StatusCode, body)
	}

	slog.Debug("http send success", "target", target.Endpoint, "status", resp.StatusCode)
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}
