package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Tomlord1122/todo-widget/internal/service"
)

const maxBodyBytes = 1 << 20

// readBody reads the request body and validates it against schema. Every
// failure is reported as a *service.ValidationError.
func readBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &service.ValidationError{Message: "Request body is too large"}
		}
		return nil, &service.ValidationError{Message: "Request body could not be read"}
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, describeDecodeError(err)
	}
	if decoder.More() {
		return nil, &service.ValidationError{Message: "Request body must contain a single JSON object"}
	}

	if err := schema.Validate(doc); err != nil {
		return nil, describeSchemaError(err)
	}
	return body, nil
}

// decodeInto decodes an already validated body into its typed request.
func decodeInto(body []byte, dst any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return describeDecodeError(err)
	}
	return nil
}

func describeDecodeError(err error) error {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		return &service.ValidationError{Message: msg}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &service.ValidationError{Message: "Request body contains badly-formed JSON"}
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		return &service.ValidationError{Field: unmarshalTypeError.Field, Message: msg}
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return &service.ValidationError{Message: fmt.Sprintf("Request body contains unknown field %s", fieldName)}
	case errors.Is(err, io.EOF):
		return &service.ValidationError{Message: "Request body must not be empty"}
	}
	return &service.ValidationError{Message: "Request body could not be decoded"}
}

// describeSchemaError reports the most specific schema violation.
func describeSchemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &service.ValidationError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}

	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	if i := strings.IndexByte(field, '/'); i >= 0 {
		field = field[:i]
	}
	return &service.ValidationError{Field: field, Message: ve.Message}
}
