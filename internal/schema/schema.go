// Package schema validates untrusted JSON payloads coming from the backend.
//
// The Go type parameter is the shape descriptor: a payload is decoded into
// it and then checked against its `validate` struct tags. Parse never
// panics; every failure is reported as an error wrapping
// ErrUnsupportedFormat.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names instead of Go ones.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates an already decoded value.
func (v *Validator) Struct(value any) error {
	if err := v.validate.Struct(value); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return nil
}

// Parse decodes data into T and validates it.
func Parse[T any](v *Validator, data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := v.Struct(out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// ParseList decodes a JSON array of T, drops null elements and validates
// the rest. Any invalid element fails the whole list.
func ParseList[T any](v *Validator, data []byte) ([]T, error) {
	var raw []*T
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	out := make([]T, 0, len(raw))
	for i, item := range raw {
		if item == nil {
			continue
		}
		if err := v.Struct(item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, *item)
	}
	return out, nil
}

// Field decodes a single named field of a JSON object, the way the
// backend wraps payloads like {"users": [...]}.
func Field(data []byte, name string) ([]byte, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	field, ok := envelope[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrUnsupportedFormat, name)
	}
	return field, nil
}
