package remote

import (
	"encoding/json"
	"errors"
)

// listEnvelope matches the preferred list-response shape, a wrapper object carrying
// the items under "results".
type listEnvelope struct {
	Results []json.RawMessage `json:"results"`
}

// decodeListPayload accepts either {"results": [...]} or a bare array.
func decodeListPayload(body []byte) ([]json.RawMessage, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Results != nil {
		return env.Results, nil
	}
	var bare []json.RawMessage
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	return nil, errors.New(`remote: response is neither {"results":[...]} nor a bare array`)
}
