// Package httpserver is the HTTP side of the API: health, document export
// and import, and a websocket feed of document snapshots.
package httpserver

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/expense-keeper/internal/auth"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/service"
)

// Handler serves the HTTP routes.
type Handler struct {
	expenses service.ExpenseService
	tokens   *auth.Manager
	log      *zap.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
}

// New constructs the HTTP handler set.
func New(expenses service.ExpenseService, tokens *auth.Manager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		expenses: expenses,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the token is verified before upgrading
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router returns the route table wrapped in logging and panic recovery.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.recoverMiddleware, h.loggingMiddleware)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/v1/expenses").Subrouter()
	api.HandleFunc("/{id}/export", h.export).Methods(http.MethodGet)
	api.HandleFunc("/{id}/import", h.importFile).Methods(http.MethodPost)
	api.HandleFunc("/{id}/watch", h.watch).Methods(http.MethodGet)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

var errBadToken = errors.New("invalid token")

// caller resolves the request identity. No token yields the anonymous
// caller; a token that fails verification is an error.
func (h *Handler) caller(r *http.Request) (model.Caller, error) {
	tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		tok = r.URL.Query().Get("access_token")
	}
	if tok == "" {
		return model.Caller{}, nil
	}
	c, err := h.tokens.Verify(tok)
	if err != nil {
		return model.Caller{}, errBadToken
	}
	return c, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	code, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, errBadToken), errors.Is(err, errs.ErrUnauthenticated), errors.Is(err, errs.ErrUnauthorized):
		code, msg = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, errs.ErrPermissionDenied):
		code, msg = http.StatusForbidden, "permission denied"
	case errors.Is(err, errs.ErrInvalidArgument):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		code, msg = http.StatusConflict, "already exists"
	case errors.Is(err, errs.ErrRateLimited):
		code, msg = http.StatusTooManyRequests, "rate limited"
	default:
		h.log.Error("http handler failed", zap.String("op", op), zap.Error(err))
	}
	writeJSON(w, code, errorBody{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack hands the connection to the websocket upgrader.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	s.code = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		// metadata only, never payloads
		h.log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("code", rec.code),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", r.RemoteAddr),
		)
	})
}

func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				h.log.Error("panic",
					zap.Any("reason", rv),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
