// Package api serves funnel readiness, fix actions and publishing over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-readiness/internal/editor"
	"github.com/sells-group/funnel-readiness/internal/fixaction"
	"github.com/sells-group/funnel-readiness/internal/model"
	"github.com/sells-group/funnel-readiness/internal/store"
)

// Options configures the API server.
type Options struct {
	FixTimeout  time.Duration
	CORSOrigins []string
}

// Server routes readiness requests to an editor.
type Server struct {
	editor     *editor.Editor
	tracker    fixaction.Tracker
	fixTimeout time.Duration
	router     chi.Router
}

// New creates a Server and registers its routes.
func New(ed *editor.Editor, opts Options) *Server {
	if opts.FixTimeout <= 0 {
		opts.FixTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{editor: ed, fixTimeout: opts.FixTimeout}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/funnels/{funnelID}", func(r chi.Router) {
		r.Get("/readiness", s.handleReadiness)
		r.Post("/fix", s.handleFix)
		r.Post("/publish", s.handlePublish)
	})
	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	funnelID := chi.URLParam(r, "funnelID")
	report, err := s.editor.Readiness(r.Context(), funnelID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type fixRequest struct {
	IssueID string          `json:"issueId"`
	Action  json.RawMessage `json:"action,omitempty"`
}

type fixResponse struct {
	fixaction.Result
	NavigateTo string `json:"navigateTo,omitempty"`
}

// handleFix runs the fix action of one issue. When the request carries no
// action, the issue's own fix action from a fresh evaluation is used.
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	funnelID := chi.URLParam(r, "funnelID")

	var req fixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IssueID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "issueId is required"})
		return
	}

	key := funnelID + "/" + req.IssueID
	if !s.tracker.Begin(key) {
		writeJSON(w, http.StatusConflict, fixaction.Result{Success: false, Message: "Fix already in progress"})
		return
	}
	defer s.tracker.End(key)

	action, err := s.resolveAction(r.Context(), funnelID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.fixTimeout)
	defer cancel()

	var resp fixResponse
	h := s.editor.Handlers(funnelID, func(path string) { resp.NavigateTo = path })
	if action == nil {
		resp.Result = fixaction.ExecuteJSON(ctx, req.Action, h)
	} else {
		resp.Result = fixaction.Execute(ctx, action, h)
	}

	zap.L().Info("api: fix executed",
		zap.String("funnel_id", funnelID),
		zap.String("issue_id", req.IssueID),
		zap.Bool("success", resp.Success),
	)
	writeJSON(w, http.StatusOK, resp)
}

// resolveAction returns the issue's fix action when the request has none.
// A nil action with nil error means the raw request action should be used.
func (s *Server) resolveAction(ctx context.Context, funnelID string, req fixRequest) (model.FixAction, error) {
	if len(req.Action) > 0 && string(req.Action) != "null" {
		return nil, nil
	}
	report, err := s.editor.Readiness(ctx, funnelID)
	if err != nil {
		return nil, err
	}
	issue, ok := report.Issue(req.IssueID)
	if !ok {
		return nil, errIssueNotFound
	}
	if issue.FixAction == nil {
		return nil, errNoFixAction
	}
	return issue.FixAction, nil
}

var (
	errIssueNotFound = errors.New("issue not found")
	errNoFixAction   = errors.New("issue has no fix action")
)

type publishBlockedResponse struct {
	Error     string                `json:"error"`
	Readiness model.FunnelReadiness `json:"readiness"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	funnelID := chi.URLParam(r, "funnelID")
	f, report, err := s.editor.Publish(r.Context(), funnelID)
	if errors.Is(err, editor.ErrPublishBlocked) {
		writeJSON(w, http.StatusConflict, publishBlockedResponse{Error: "publish blocked", Readiness: report})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "funnel not found"
	case errors.Is(err, store.ErrVersionConflict):
		status, msg = http.StatusConflict, "funnel changed during the request, retry"
	case errors.Is(err, errIssueNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, errNoFixAction):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	default:
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
