package render

import (
	"encoding/json"

	"github.com/dshills/overlapengine/internal/schema"
)

type jsonRenderer struct{}

func (r *jsonRenderer) Render(env *schema.Envelope) ([]byte, error) {
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
