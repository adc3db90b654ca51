package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

var ErrNumber = errors.New("invalid numeric reading")

// Number is a numeric reading which may not have been collected.
//
// On the wire a known reading is a JSON number and an unknown reading is the
// placeholder string, so consumers can always render the field.
type Number[T int | float64] struct {
	Reading T
	// Placeholder is set when the reading could not be taken.
	Placeholder string
}

// Known returns a collected reading.
func Known[T int | float64](v T) Number[T] {
	return Number[T]{Reading: v}
}

// Unknown returns a reading that failed, rendered as the given placeholder.
func Unknown[T int | float64](placeholder string) Number[T] {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	return Number[T]{Placeholder: placeholder}
}

func (n Number[T]) IsKnown() bool {
	return n.Placeholder == ""
}

func (n Number[T]) String() string {
	if !n.IsKnown() {
		return n.Placeholder
	}

	switch v := any(n.Reading).(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (n Number[T]) MarshalJSON() ([]byte, error) {
	if !n.IsKnown() {
		return json.Marshal(n.Placeholder)
	}

	return json.Marshal(n.Reading)
}

func (n *Number[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case bytes.Equal(b, []byte("null")):
		*n = Unknown[T](DefaultPlaceholder)
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(ErrNumber, err.Error())
		}

		*n = Unknown[T](s)

		return nil
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Wrap(ErrNumber, err.Error())
	}

	*n = Known(v)

	return nil
}

// MarshalYAML implements the yaml.Marshaler interface.
func (n Number[T]) MarshalYAML() (any, error) {
	if !n.IsKnown() {
		return n.Placeholder, nil
	}

	return n.Reading, nil
}

// Value implements the driver.Valuer interface, unknown readings are stored as text.
func (n Number[T]) Value() (driver.Value, error) {
	if !n.IsKnown() {
		return n.Placeholder, nil
	}

	switch v := any(n.Reading).(type) {
	case int:
		return int64(v), nil
	case float64:
		return v, nil
	}

	return nil, ErrNumber
}

// Scan implements the sql.Scanner interface.
func (n *Number[T]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = Unknown[T](DefaultPlaceholder)
	case int64:
		*n = Known(T(v))
	case float64:
		*n = Known(T(v))
	case []byte:
		return n.scanText(string(v))
	case string:
		return n.scanText(v)
	default:
		return errors.Wrap(ErrNumber, fmt.Sprintf("unsupported column type %T", src))
	}

	return nil
}

func (n *Number[T]) scanText(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = Unknown[T](s)
		return nil //nolint:nilerr // non numeric text is the placeholder
	}

	*n = Known(T(f))

	return nil
}
