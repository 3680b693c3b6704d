package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Tomlord1122/todo-widget/internal/api"
	"github.com/Tomlord1122/todo-widget/internal/service"
	"github.com/Tomlord1122/todo-widget/internal/session"
)

const (
	msgRejected        = "Invalid or expired anti-forgery token."
	msgUnauthenticated = "Authentication required."
	msgFailed          = "Request failed"
)

// Outcomes recorded in metrics.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// dispatch runs the session check, decodes the body and invokes the route's
// handler. The anti-forgery token is rotated before the store is touched;
// every response after that point carries the successor token.
func (s *Server) dispatch(rt compiledRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		outcome := s.serve(w, r, rt)
		observeRequest(rt.action, outcome, time.Since(start))
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, rt compiledRoute) string {
	ctx := r.Context()

	caller, err := s.issuer.FromRequest(r)
	if err != nil {
		s.log.Warn().Err(err).Str("action", string(rt.action)).Msg("rejected request without valid bearer")
		s.respondRejected(w, http.StatusUnauthorized, msgUnauthenticated)
		return outcomeRejected
	}

	next, err := s.tokens.Rotate(ctx, caller.SessionID, r.Header.Get(api.CSRFHeader))
	if err != nil {
		if errors.Is(err, session.ErrTokenMismatch) {
			s.log.Warn().
				Uint("user_id", caller.UserID).
				Str("action", string(rt.action)).
				Msg("anti-forgery token mismatch")
			s.respondRejected(w, http.StatusForbidden, msgRejected)
			return outcomeRejected
		}
		s.log.Error().Err(err).Uint("user_id", caller.UserID).Msg("failed to rotate anti-forgery token")
		s.respondRejected(w, http.StatusInternalServerError, msgFailed)
		return outcomeError
	}

	var body []byte
	if rt.schema != nil {
		body, err = readBody(w, r, rt.schema)
		if err != nil {
			return s.respondFailure(w, next, caller, rt.action, err)
		}
	}

	data, err := rt.handle(ctx, caller, body)
	if err != nil {
		return s.respondFailure(w, next, caller, rt.action, err)
	}

	s.respondEnvelope(w, http.StatusOK, api.Envelope{Status: true, Data: data, CSRFToken: &next})
	return outcomeOK
}

func (s *Server) respondFailure(w http.ResponseWriter, next string, caller session.Identity, action api.Action, err error) string {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		msg := vErr.Error()
		s.respondEnvelope(w, http.StatusBadRequest, api.Envelope{Message: &msg, CSRFToken: &next})
		return outcomeInvalid
	}

	s.log.Error().
		Err(err).
		Uint("user_id", caller.UserID).
		Str("action", string(action)).
		Msg("request failed")
	msg := msgFailed
	s.respondEnvelope(w, http.StatusInternalServerError, api.Envelope{Message: &msg, CSRFToken: &next})
	return outcomeError
}

// respondRejected answers without a successor token.
func (s *Server) respondRejected(w http.ResponseWriter, code int, message string) {
	s.respondEnvelope(w, code, api.Envelope{Message: &message})
}

func (s *Server) respondEnvelope(w http.ResponseWriter, code int, env api.Envelope) {
	s.respondWithJSON(w, code, env)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":false,"data":null,"message":"Request failed","csrf_token":null}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
