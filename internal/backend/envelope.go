package backend

import (
	"bytes"
	"encoding/json"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

// decodeList accepts only a bare JSON array. Wrapped shapes such as
// {"data": [...]} are rejected instead of being unpacked.
func decodeList[T any](op string, body []byte) ([]T, error) {
	if firstByte(body) != '[' {
		return nil, apperr.Errorf(apperr.SchemaMismatch, op, "expected JSON array, got %s", shape(body))
	}
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(err, apperr.SchemaMismatch, op)
	}
	return out, nil
}

// decodeObject accepts only a JSON object.
func decodeObject[T any](op string, body []byte) (*T, error) {
	if firstByte(body) != '{' {
		return nil, apperr.Errorf(apperr.SchemaMismatch, op, "expected JSON object, got %s", shape(body))
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(err, apperr.SchemaMismatch, op)
	}
	return &out, nil
}

func firstByte(body []byte) byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func shape(body []byte) string {
	switch firstByte(body) {
	case 0:
		return "empty body"
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 'n':
		return "null"
	}
	return "scalar"
}
