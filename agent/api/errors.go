package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{contractx.ErrStaleQuiz, http.StatusConflict, "stale_quiz"},
	{contractx.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{contractx.ErrMalformedAttempt, http.StatusUnprocessableEntity, "malformed_attempt"},
	{statex.ErrStudentMismatch, http.StatusForbidden, "student_mismatch"},
	{contractx.ErrValidation, http.StatusBadRequest, "validation"},
	{contractx.ErrNotFound, http.StatusNotFound, "not_found"},
	{contractx.ErrUpstreamTimeout, http.StatusGatewayTimeout, "upstream_timeout"},
	{contractx.ErrUpstream, http.StatusBadGateway, "upstream"},
	{contractx.ErrSchemaViolation, http.StatusBadGateway, "schema_violation"},
	{contractx.ErrModelInvoke, http.StatusBadGateway, "model_invoke"},
}

// statusFor maps a domain error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("api: encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	event := log.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = log.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("code", code).Msg("api: request failed")

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}
