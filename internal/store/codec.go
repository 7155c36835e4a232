package store

import (
	"fmt"

	"github.com/goccy/go-json"

	"spendwise/internal/core"
)

// EncodeSources serializes per-source income as {"Salary": 500000} in cents.
func EncodeSources(src map[string]core.Money) ([]byte, error) {
	raw := make(map[string]int64, len(src))
	for k, v := range src {
		raw[k] = v.Cents
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode income sources: %w", err)
	}
	return b, nil
}

// DecodeSources is the inverse of EncodeSources. Empty input yields an empty map.
func DecodeSources(b []byte) (map[string]core.Money, error) {
	out := make(map[string]core.Money)
	if len(b) == 0 {
		return out, nil
	}
	var raw map[string]int64
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode income sources: %w", err)
	}
	for k, v := range raw {
		out[k] = core.Money{Cents: v}
	}
	return out, nil
}
