package upload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/set-night/agentchat/internal/domain"
)

// parseJSON wraps an array in the tabular envelope and passes an object
// through unchanged. Numbers stay exact.
func parseJSON(data []byte, source string) (domain.Resource, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after json value", domain.ErrInvalidPayload)
	}

	switch val := v.(type) {
	case []any:
		return domain.Resource{
			"data":      val,
			"row_count": len(val),
			"source":    source,
		}, nil
	case map[string]any:
		return domain.Resource(val), nil
	default:
		return nil, fmt.Errorf("%w: expected a json object or array", domain.ErrInvalidPayload)
	}
}
