package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tomlord1122/todo-widget/internal/api"
	"github.com/Tomlord1122/todo-widget/internal/session"
)

const (
	createSchema = `{
  "type": "object",
  "properties": {"content": {"type": "string"}},
  "required": ["content"],
  "additionalProperties": false
}`
	updateSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "content": {"type": "string"},
    "done": {"type": "boolean"}
  },
  "required": ["id"],
  "additionalProperties": false
}`
	deleteSchema = `{
  "type": "object",
  "properties": {
    "todos": {"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 1}}
  },
  "required": ["todos"],
  "additionalProperties": false
}`
	reorderSchema = `{
  "type": "object",
  "properties": {
    "order": {"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 1}}
  },
  "required": ["order"],
  "additionalProperties": false
}`
)

// routeTable binds every widget action to its handler.
func (s *Server) routeTable() []route {
	return []route{
		{
			action: api.ActionRead,
			method: http.MethodGet,
			path:   "/",
			handle: func(ctx context.Context, caller session.Identity, _ []byte) (any, error) {
				return s.todoService.List(ctx, caller.UserID)
			},
		},
		{
			action:     api.ActionCreate,
			method:     http.MethodPost,
			path:       "/create",
			bodySchema: createSchema,
			handle: func(ctx context.Context, caller session.Identity, body []byte) (any, error) {
				var req api.CreateTodoRequest
				if err := decodeInto(body, &req); err != nil {
					return nil, err
				}
				return s.todoService.Create(ctx, caller.UserID, req)
			},
		},
		{
			action:     api.ActionUpdate,
			method:     http.MethodPost,
			path:       "/update",
			bodySchema: updateSchema,
			handle: func(ctx context.Context, caller session.Identity, body []byte) (any, error) {
				var req api.UpdateTodoRequest
				if err := decodeInto(body, &req); err != nil {
					return nil, err
				}
				return s.todoService.Update(ctx, caller.UserID, req)
			},
		},
		{
			action:     api.ActionDelete,
			method:     http.MethodPost,
			path:       "/delete",
			bodySchema: deleteSchema,
			handle: func(ctx context.Context, caller session.Identity, body []byte) (any, error) {
				var req api.DeleteTodosRequest
				if err := decodeInto(body, &req); err != nil {
					return nil, err
				}
				return s.todoService.Delete(ctx, caller.UserID, req)
			},
		},
		{
			action:     api.ActionReorder,
			method:     http.MethodPost,
			path:       "/reorder",
			bodySchema: reorderSchema,
			handle: func(ctx context.Context, caller session.Identity, body []byte) (any, error) {
				var req api.ReorderTodosRequest
				if err := decodeInto(body, &req); err != nil {
					return nil, err
				}
				return s.todoService.Reorder(ctx, caller.UserID, req)
			},
		},
	}
}

// RegisterRoutes builds the router serving the todo actions and health.
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", api.CSRFHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/todos", func(r chi.Router) {
		r.Get("/session", s.sessionHandler)
		for _, rt := range s.routes {
			r.Method(rt.method, rt.path, s.dispatch(rt))
		}
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "up", "store": "memory"})
		return
	}

	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStats)
}

// sessionHandler hands the page its first anti-forgery token. Any token the
// session held before is invalidated.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.issuer.FromRequest(r)
	if err != nil {
		s.log.Warn().Err(err).Msg("session bootstrap without valid bearer")
		s.respondRejected(w, http.StatusUnauthorized, msgUnauthenticated)
		return
	}

	token, err := s.tokens.Mint(r.Context(), caller.SessionID)
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", caller.UserID).Msg("failed to mint anti-forgery token")
		s.respondRejected(w, http.StatusInternalServerError, msgFailed)
		return
	}

	s.respondEnvelope(w, http.StatusOK, api.Envelope{
		Status:    true,
		Data:      map[string]uint{"user_id": caller.UserID},
		CSRFToken: &token,
	})
}
