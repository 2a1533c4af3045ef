// internal/api/validate.go
package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// logRecordSchema enforces the edge-log data model at the ingest
// boundary: required fields, the cache-status enum, and non-negative
// numeric fields
const logRecordSchema = `{
	"type": "object",
	"required": ["request_path", "timestamp"],
	"properties": {
		"request_id":       {"type": "string"},
		"timestamp":        {"type": "string", "minLength": 1},
		"client_ip":        {"type": "string"},
		"request_path":     {"type": "string", "minLength": 1},
		"request_method":   {"type": "string"},
		"cache_status":     {"type": "string", "enum": ["HIT", "MISS", "EXPIRED", "BYPASS"]},
		"edge_server":      {"type": "string"},
		"ttl":              {"type": "integer", "minimum": 0},
		"response_time_ms": {"type": "number", "minimum": 0},
		"status_code":      {"type": "integer"},
		"bytes_sent":       {"type": "integer", "minimum": 0}
	}
}`

// validateLogPayload checks one JSON-encoded log record against the
// edge-log schema before it is decoded
func validateLogPayload(body []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(logRecordSchema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("api: schema validation: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			msgs = append(msgs, resultErr.String())
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}
