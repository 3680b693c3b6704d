package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-widget/internal/database"
	"github.com/Tomlord1122/todo-widget/internal/service"
	"github.com/Tomlord1122/todo-widget/internal/session"
)

// Deps are the collaborators a Server is built from. DB is nil when the
// in-memory store is used.
type Deps struct {
	TodoService service.TodoService
	DB          database.Service
	Issuer      *session.Issuer
	Tokens      session.TokenStore
	Log         zerolog.Logger
}

type Server struct {
	todoService service.TodoService
	db          database.Service
	issuer      *session.Issuer
	tokens      session.TokenStore
	log         zerolog.Logger
	routes      []compiledRoute
}

// New validates the route table and returns a Server ready to register its
// routes.
func New(deps Deps) (*Server, error) {
	if deps.TodoService == nil || deps.Issuer == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("server: todo service, issuer and token store are required")
	}

	s := &Server{
		todoService: deps.TodoService,
		db:          deps.DB,
		issuer:      deps.Issuer,
		tokens:      deps.Tokens,
		log:         deps.Log,
	}

	routes, err := compileRoutes(s.routeTable())
	if err != nil {
		return nil, fmt.Errorf("server: invalid route table: %w", err)
	}
	s.routes = routes
	return s, nil
}

// NewHTTPServer wraps the Server's routes in an http.Server listening on port.
func NewHTTPServer(port int, deps Deps) (*http.Server, error) {
	appServer, err := New(deps)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server, nil
}
