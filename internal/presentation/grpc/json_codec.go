package grpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"google.golang.org/grpc/encoding"
)

// codecName is the content subtype ImportService messages travel with
// (application/grpc+json).
const codecName = "json"

func init() {
	encoding.RegisterCodec(importCodec{})
}

// importCodec encodes ImportService messages as JSON. Decoding is strict: a
// field the service does not know is rejected instead of silently dropped,
// so a misspelled lot name cannot turn into an empty lot.
type importCodec struct{}

func (importCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (importCodec) Unmarshal(data []byte, v any) error {
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("json codec: cannot decode into %T", v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json codec: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("json codec: trailing data after message")
	}
	return nil
}

func (importCodec) Name() string {
	return codecName
}
