package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DecodeError reports a stored order document that does not match the schema.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode order: %s: %v", e.Reason, e.Err)
	}
	return "decode order: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode serialises an order with the current schema version.
func Encode(o *Order) ([]byte, error) {
	doc := *o
	doc.SchemaVersion = CurrentSchemaVersion
	return json.Marshal(&doc)
}

// Decode parses a stored order strictly: unknown fields, unknown versions,
// unknown statuses and missing ids are all errors.
func Decode(data []byte) (*Order, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var o Order
	if err := dec.Decode(&o); err != nil {
		return nil, &DecodeError{Reason: "malformed document", Err: err}
	}
	if dec.More() {
		return nil, &DecodeError{Reason: "trailing data after document"}
	}

	switch {
	case o.SchemaVersion != CurrentSchemaVersion:
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported schema version %d", o.SchemaVersion)}
	case o.ID <= 0:
		return nil, &DecodeError{Reason: "missing id"}
	case !o.Status.Valid():
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown status %q", o.Status)}
	case len(o.Items) == 0:
		return nil, &DecodeError{Reason: "no items"}
	}
	return &o, nil
}

// IsDecodeError reports whether err came from Decode.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
