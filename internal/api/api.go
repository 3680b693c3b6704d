// Package api holds the wire types shared by the todo service and its clients.
package api

import "encoding/json"

// CSRFHeader carries the anti-forgery token on every todo request.
const CSRFHeader = "X-CSRF-Token"

// Action names one of the operations the widget can request.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReorder Action = "reorder"
)

// Actions lists every valid action in a stable order.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionReorder}

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionReorder:
		return true
	}
	return false
}

// Envelope is the uniform response body. CSRFToken is nil only when the
// request was rejected before the anti-forgery check passed.
type Envelope struct {
	Status    bool    `json:"status"`
	Data      any     `json:"data"`
	Message   *string `json:"message"`
	CSRFToken *string `json:"csrf_token"`
}

// RawEnvelope is Envelope with the payload left undecoded.
type RawEnvelope struct {
	Status    bool            `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   *string         `json:"message"`
	CSRFToken *string         `json:"csrf_token"`
}

type Todo struct {
	ID          uint    `json:"id"`
	Content     string  `json:"content"`
	Done        bool    `json:"done"`
	Position    uint    `json:"position"`
	TimeCreated string  `json:"time_created"`
	TimeDone    *string `json:"time_done"`
}

type CreateTodoRequest struct {
	Content string `json:"content"`
}

type CreateTodoResponse struct {
	InsertID uint `json:"insert_id"`
}

// UpdateTodoRequest uses pointers so an omitted field is left untouched.
type UpdateTodoRequest struct {
	ID      uint    `json:"id"`
	Content *string `json:"content,omitempty"`
	Done    *bool   `json:"done,omitempty"`
}

type UpdateTodoResponse struct {
	Updated int64 `json:"updated"`
	Todo    Todo  `json:"todo"`
}

type DeleteTodosRequest struct {
	Todos []uint `json:"todos"`
}

type DeleteTodosResponse struct {
	Deleted int64 `json:"deleted"`
}

type ReorderTodosRequest struct {
	Order []uint `json:"order"`
}

// ReorderTodosResponse echoes the ids that received a position, in position order.
type ReorderTodosResponse struct {
	Reordered int    `json:"reordered"`
	Order     []uint `json:"order"`
}
