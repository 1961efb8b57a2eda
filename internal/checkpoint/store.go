// Package checkpoint persists per-label scan positions so a time-boxed run
// can resume without reprocessing threads.
package checkpoint

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
)

// propertyPrefix namespaces checkpoint entries in the property store.
const propertyPrefix = "uber.checkpoint."

// Store is the durable property store for checkpoint state. Get never fails
// on corrupt state: anything unreadable is treated as absent.
type Store interface {
	// Get returns the stored state for a label, or the zero state.
	Get(label string) (entity.CheckpointState, error)
	// Save writes state for a label with a fresh timestamp.
	Save(label string, state entity.CheckpointState) error
	// Clear removes stored state, so the next run rescans from offset 0.
	Clear(label string) error
	Close() error
}

// PropertyKey derives the store key for a label: a reversible,
// collision-resistant encoding under a fixed namespace tag.
func PropertyKey(label string) string {
	return propertyPrefix + base64.RawURLEncoding.EncodeToString([]byte(label))
}

// LabelFromKey reverses PropertyKey. It returns false for keys outside the
// checkpoint namespace.
func LabelFromKey(key string) (string, bool) {
	encoded, ok := strings.CutPrefix(key, propertyPrefix)
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

var stateSchema = mustCompileSchema(map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"offset":     map[string]any{"type": "integer", "minimum": 0},
		"completed":  map[string]any{"type": "boolean"},
		"updated_at": map[string]any{"type": "integer", "minimum": 0},
	},
	"required": []string{"offset", "completed"},
})

func mustCompileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("checkpoint.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile("checkpoint.json")
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// decodeState parses a stored value. Invalid JSON or a document outside the
// schema yields the zero state rather than an error.
func decodeState(raw string) entity.CheckpointState {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return entity.CheckpointState{}
	}
	if err := stateSchema.Validate(v); err != nil {
		return entity.CheckpointState{}
	}
	var state entity.CheckpointState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return entity.CheckpointState{}
	}
	return state
}

// encodeState serializes state with a fresh timestamp.
func encodeState(state entity.CheckpointState) (string, error) {
	state.UpdatedAt = time.Now().UnixMilli()
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}
	return string(b), nil
}
