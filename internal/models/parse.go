package models

import (
	"encoding/json"
	"fmt"
)

// ParseCurrent decodes a current-weather response body. It is a pure
// function: it either returns a fully populated report or an error, never a
// partial record. Missing required fields (the upstream always sets cod and
// dt) are treated the same as malformed JSON.
func ParseCurrent(raw []byte) (*CurrentWeather, error) {
	var w CurrentWeather
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode current weather: %w", err)
	}
	if w.Cod == 0 || w.Dt == 0 {
		return nil, fmt.Errorf("decode current weather: response body missing required fields")
	}
	return &w, nil
}
