package processor

import (
	"encoding/json"
	"fmt"
)

// Renderer turns a processor result into its display form.
type Renderer interface {
	Render(result any) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(result any) (string, error)

func (f RendererFunc) Render(result any) (string, error) { return f(result) }

// TextRenderer renders strings and byte slices as-is, Stringers and errors
// through their methods, nil as the empty string and anything else as JSON.
type TextRenderer struct{}

func (TextRenderer) Render(result any) (string, error) {
	switch r := result.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case error:
		return r.Error(), nil
	case fmt.Stringer:
		return r.String(), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("render %T: %w", result, err)
	}
	return string(data), nil
}
