package core

import (
	"encoding/json"
	"fmt"
)

// Binder decodes the parameters a message carries for its handler (the
// message metadata) into a typed value. Dispatcher.SetBinder installs one.
type Binder interface {
	Bind(params map[string]string, v any) error
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(params map[string]string, v any) error

func (f BinderFunc) Bind(params map[string]string, v any) error { return f(params, v) }

// JSONBinder binds parameters as a JSON object of strings, so target fields
// are matched by their json tags and must be string typed (or implement
// json.Unmarshaler).
type JSONBinder struct{}

func (JSONBinder) Bind(params map[string]string, v any) error {
	if params == nil {
		params = map[string]string{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: params do not fit %T: %v", ErrInvalidParameter, v, err)
	}
	return nil
}
