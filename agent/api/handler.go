package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/agents/orchestrator"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
	"github.com/Tharun007-TK/studybuddy-ai-agent/pkg/keymutex"
	metricsx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/metrics"
)

const defaultMaxBodyBytes = 1 << 20

// Tutor is the coordinator surface served over HTTP.
type Tutor interface {
	HandleTurn(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResult, error)
	GetProgress(ctx context.Context, studentID, topic string) (progress.Report, error)
	ExportCSV(ctx context.Context, studentID string, w io.Writer) error
}

var _ Tutor = (*orchestrator.Orchestrator)(nil)

type TurnRequest struct {
	SessionID    string         `json:"session_id" validate:"required,max=128"`
	StudentID    string         `json:"student_id" validate:"required,max=128"`
	Intent       string         `json:"intent" validate:"omitempty,oneof=continue assess explain quiz submit_answers find_resources report_progress"`
	Topic        string         `json:"topic" validate:"max=200"`
	Message      string         `json:"message" validate:"max=4000"`
	QuizID       string         `json:"quiz_id" validate:"max=128"`
	Answers      map[int]string `json:"answers" validate:"max=50,dive,max=2000"`
	StudyMinutes int            `json:"study_minutes" validate:"min=0,max=1440"`
	Goals        []string       `json:"goals" validate:"max=20,dive,required,max=200"`
}

type TurnResponse struct {
	Activity statex.Activity     `json:"activity"`
	Message  string              `json:"message"`
	Data     any                 `json:"data,omitempty"`
	Session  statex.SessionState `json:"session"`
}

type Option func(*Handler)

func WithMetrics(m *metricsx.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

type Handler struct {
	tutor    Tutor
	sessions statex.Store
	metrics  *metricsx.Metrics
	validate *validator.Validate
	// sessionLocks spans load, turn and save of one session.
	sessionLocks *keymutex.KeyMutex

	maxBodyBytes int64
	now          func() time.Time
}

func NewHandler(tutor Tutor, sessions statex.Store, opts ...Option) (*Handler, error) {
	if tutor == nil {
		return nil, errors.New("tutor is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	h := &Handler{
		tutor:        tutor,
		sessions:     sessions,
		validate:     validator.New(),
		sessionLocks: keymutex.New(),
		maxBodyBytes: defaultMaxBodyBytes,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes builds the router for the tutoring API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(instrument(h.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", h.handleTurn)
		r.Get("/students/{studentID}/progress", h.handleProgress)
		r.Get("/students/{studentID}/export.csv", h.handleExport)
	})
	return r
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode body: %v", contractx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", contractx.ErrValidation, formatValidation(err)))
		return
	}

	unlock := h.sessionLocks.Lock(req.SessionID)
	defer unlock()

	ctx := r.Context()
	session, err := h.loadSession(ctx, req.SessionID, req.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.tutor.HandleTurn(ctx, orchestrator.TurnRequest{
		Session:   *session,
		StudentID: req.StudentID,
		Intent:    contractx.Intent(req.Intent),
		Payload: contractx.TurnPayload{
			Topic:        req.Topic,
			Message:      req.Message,
			QuizID:       req.QuizID,
			Answers:      req.Answers,
			StudyMinutes: req.StudyMinutes,
			Goals:        req.Goals,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sessions.Save(ctx, &res.Session); err != nil {
		writeError(w, r, fmt.Errorf("save session: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, TurnResponse{
		Activity: res.Output.Activity,
		Message:  res.Output.Message,
		Data:     res.Output.Data,
		Session:  res.Session,
	})
}

// loadSession returns the stored session or a fresh one for an unknown id.
func (h *Handler) loadSession(ctx context.Context, sessionID, studentID string) (*statex.SessionState, error) {
	session, err := h.sessions.Load(ctx, sessionID)
	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, statex.ErrStateNotFound):
		return statex.NewSessionState(sessionID, studentID, h.now()), nil
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentParam(w, r)
	if !ok {
		return
	}
	report, err := h.tutor.GetProgress(r.Context(), studentID, r.URL.Query().Get("topic"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentParam(w, r)
	if !ok {
		return
	}

	// Buffer so a failure can still be reported as JSON.
	var buf strings.Builder
	if err := h.tutor.ExportCSV(r.Context(), studentID, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", studentID+"-progress.csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, buf.String())
}

func studentParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	studentID := strings.TrimSpace(chi.URLParam(r, "studentID"))
	if studentID == "" {
		writeError(w, r, fmt.Errorf("%w: student id is required", contractx.ErrValidation))
		return "", false
	}
	return studentID, true
}

func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
