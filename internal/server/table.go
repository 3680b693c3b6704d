package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Tomlord1122/todo-widget/internal/api"
	"github.com/Tomlord1122/todo-widget/internal/session"
)

type handlerFunc func(ctx context.Context, caller session.Identity, body []byte) (any, error)

type route struct {
	action     api.Action
	method     string
	path       string
	bodySchema string
	handle     handlerFunc
}

type compiledRoute struct {
	route
	schema *jsonschema.Schema
}

// compileRoutes checks that every action is bound exactly once and compiles
// the request schemas. Routes with a body must be POST; GET routes take none.
func compileRoutes(routes []route) ([]compiledRoute, error) {
	seen := make(map[api.Action]bool, len(routes))
	paths := make(map[string]bool, len(routes))
	compiled := make([]compiledRoute, 0, len(routes))

	for _, rt := range routes {
		if !rt.action.Valid() {
			return nil, fmt.Errorf("unknown action %q", rt.action)
		}
		if seen[rt.action] {
			return nil, fmt.Errorf("action %q bound twice", rt.action)
		}
		seen[rt.action] = true

		if !strings.HasPrefix(rt.path, "/") {
			return nil, fmt.Errorf("action %q: path %q must start with /", rt.action, rt.path)
		}
		key := rt.method + " " + rt.path
		if paths[key] {
			return nil, fmt.Errorf("action %q: %s already bound", rt.action, key)
		}
		paths[key] = true

		if rt.handle == nil {
			return nil, fmt.Errorf("action %q has no handler", rt.action)
		}

		cr := compiledRoute{route: rt}
		switch rt.method {
		case http.MethodGet:
			if rt.bodySchema != "" {
				return nil, fmt.Errorf("action %q: GET routes take no body", rt.action)
			}
		case http.MethodPost:
			if rt.bodySchema == "" {
				return nil, fmt.Errorf("action %q: POST routes need a body schema", rt.action)
			}
			schema, err := jsonschema.CompileString(string(rt.action)+".json", rt.bodySchema)
			if err != nil {
				return nil, fmt.Errorf("action %q: compile schema: %w", rt.action, err)
			}
			cr.schema = schema
		default:
			return nil, fmt.Errorf("action %q: unsupported method %q", rt.action, rt.method)
		}
		compiled = append(compiled, cr)
	}

	var missing []string
	for _, action := range api.Actions {
		if !seen[action] {
			missing = append(missing, string(action))
		}
	}
	if len(missing) > 0 {
		return nil, errors.New("unbound actions: " + strings.Join(missing, ", "))
	}
	return compiled, nil
}
