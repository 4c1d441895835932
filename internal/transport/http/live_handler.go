package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	gorillaws "github.com/gorilla/websocket"

	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/infrastructure"
	mw "csvpulse/internal/middleware"
	"csvpulse/internal/websocket"
	"csvpulse/pkg/contracts/domain"
	"csvpulse/pkg/contracts/events"
)

// LiveOptions configures the live view endpoint
type LiveOptions struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	// MessageTimeout bounds the evaluation of one message. Zero means no limit.
	MessageTimeout time.Duration
	Client         websocket.Config
	Metrics        *infrastructure.DashboardMetrics
}

// LiveHandler upgrades GET /api/sessions/{sessionID}/live to a WebSocket.
// Every text message is decoded as criteria and answered with the view of
// the session table, or with a problem object.
type LiveHandler struct {
	service      DashboardServiceInterface
	hub          *websocket.Hub
	opts         LiveOptions
	upgrader     gorillaws.Upgrader
	validation   *mw.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewLiveHandler creates a new live view handler
func NewLiveHandler(service DashboardServiceInterface, hub *websocket.Hub, opts LiveOptions, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *LiveHandler {
	h := &LiveHandler{
		service:      service,
		hub:          hub,
		opts:         opts,
		validation:   mw.NewValidationMiddleware(logger, errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "live_handler")),
	}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			apierrors.WriteProblem(w, r, apierrors.NewProblemDetails(
				status,
				apierrors.TypeValidation,
				http.StatusText(status),
				reason.Error(),
				r.URL.Path,
			).WithExtension("trace_id", infrastructure.GetTraceID(r.Context())))
		},
	}
	return h
}

// ServeHTTP upgrades the connection and serves it until either side closes it
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.service.GetSession(r.Context(), sessionID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already responded
		return
	}

	h.logger.InfoContext(r.Context(), "live view opened",
		slog.String("session_id", sessionID),
		slog.String("request_id", mw.GetRequestID(r.Context())),
		slog.String("remote_addr", r.RemoteAddr))

	client := websocket.NewClient(websocket.NewConnectionWrapper(conn), sessionID,
		h.processor(r, sessionID), h.opts.Client, h.logger)
	if err := h.hub.Serve(r.Context(), client); err != nil {
		h.logger.WarnContext(r.Context(), "live view ended with error",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
}

// processor answers one message. r is the upgrade request and only
// supplies the path and trace ID of problem replies.
func (h *LiveHandler) processor(r *http.Request, sessionID string) websocket.Processor {
	traceID := infrastructure.GetTraceID(r.Context())

	return func(ctx context.Context, seq int64, message []byte) []byte {
		if h.opts.MessageTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.opts.MessageTimeout)
			defer cancel()
		}

		view, err := h.view(ctx, sessionID, message)
		h.opts.Metrics.RecordLiveMessage(ctx, err)

		var reply events.Message
		if err != nil {
			problem := h.errorHandler.ErrorToProblem(err, r)
			problem.WithExtension("trace_id", traceID)
			reply = events.NewMessage(events.MessageTypeError, traceID, problem)
			h.logger.DebugContext(ctx, "live message rejected",
				slog.String("session_id", sessionID),
				slog.Int64("seq", seq),
				slog.Int("status", problem.Status),
				slog.String("error", err.Error()))
		} else {
			reply = events.NewMessage(events.MessageTypeView, traceID, view)
		}
		reply.Seq = seq

		data, err := json.Marshal(reply)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to encode live reply",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			data, _ = json.Marshal(events.Message{
				BaseMessage: events.BaseMessage{Type: events.MessageTypeError, TraceID: traceID},
				Seq:         seq,
			})
		}
		return data
	}
}

func (h *LiveHandler) view(ctx context.Context, sessionID string, message []byte) (*domain.View, error) {
	var c domain.Criteria
	if err := decodeStrict(message, &c); err != nil {
		return nil, apierrors.InvalidRequestWithError(err)
	}
	if err := h.validation.ValidateStruct(&c); err != nil {
		return nil, err
	}
	return h.service.View(ctx, sessionID, c)
}

func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.WarnContext(r.Context(), "WebSocket origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.opts.AllowedOrigins))
	return false
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
