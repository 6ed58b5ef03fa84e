/*
Package save
File: codec.go
Description:
    Turns the persisted game layout into an opaque, plain-text transport string
    and back.

    Format: JSON, whose UTF-8 bytes are base64 encoded with the standard
    alphabet. This matches btoa(unescape(encodeURIComponent(json))) byte for
    byte, so multi-byte text survives and strings exported by the browser
    build of the game can be imported here.
*/

package save

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/everforgeworks/quantum-incremental/internal/game"
)

// ErrMalformed wraps every decode failure: bad base64, bad UTF-8, bad JSON, or a schema violation.
var ErrMalformed = errors.New("malformed save data")

// Encode serializes any JSON-marshalable value into a transport string.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode save: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeRaw reverses the transport transform and returns the JSON bytes.
func DecodeRaw(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrMalformed)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrMalformed)
	}
	return raw, nil
}

// Decode reverses Encode into v. The payload must pass the save schema
// before v is filled.
func Decode(s string, v any) error {
	raw, err := DecodeRaw(s)
	if err != nil {
		return err
	}
	if err := Validate(raw); err != nil {
		return err
	}
	return decodeJSON(raw, v, false)
}

// decodeJSON reads exactly one JSON value from raw. Anything after it,
// other than whitespace, makes the payload malformed.
func decodeJSON(raw []byte, v any, useNumber bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after save object", ErrMalformed)
	}
	return nil
}

// EncodeGame serializes the persisted game layout.
func EncodeGame(data game.SaveData) (string, error) {
	return Encode(data)
}

// DecodeGame parses a transport string into the persisted game layout.
func DecodeGame(s string) (game.SaveData, error) {
	var data game.SaveData
	if err := Decode(s, &data); err != nil {
		return game.SaveData{}, err
	}
	return data, nil
}
