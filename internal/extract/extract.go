// Package extract turns free-form model output into structured payloads.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// jsonFencePattern matches the first ```json fenced block. The closing fence must open a line
// or end one, so backticks inside JSON strings do not close the block. It is optional so
// truncated completions still yield their interior.
var jsonFencePattern = regexp.MustCompile("(?is)```[ \t]*json[ \t]*\\r?\\n?(.*?)(?:(?m:^[ \t]*```)|(?m:```[ \t]*$)|\\z)")

// fenceLinePattern matches leftover fence delimiters such as "```" or "```json".
var fenceLinePattern = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*$")

// MalformedOutputError means no parseable structure was found in raw model output.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	if e.Err == nil {
		return "malformed output"
	}
	return fmt.Sprintf("malformed output: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

var ErrEmptyOutput = errors.New("empty output")

// Payload is a structured shape model output can be parsed into.
// Normalize fills defaults for absent optional fields and rejects unusable values.
type Payload interface {
	Normalize() error
}

// Clean isolates the structured part of raw: the interior of the first ```json block if there
// is one, otherwise the text verbatim, with any leftover fence lines removed.
func Clean(raw string) string {
	body := raw
	if m := jsonFencePattern.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}
	body = fenceLinePattern.ReplaceAllString(body, "")
	return strings.TrimSpace(body)
}

// Extract parses raw into T. It never substitutes default content for unparseable input;
// callers decide whether a *MalformedOutputError is retried elsewhere.
func Extract[T any, P interface {
	*T
	Payload
}](raw string) (T, error) {
	var out T
	if strings.TrimSpace(raw) == "" {
		return out, &MalformedOutputError{Raw: raw, Err: ErrEmptyOutput}
	}

	body := Clean(raw)
	if body == "" {
		return out, &MalformedOutputError{Raw: raw, Err: ErrEmptyOutput}
	}
	if !strings.HasPrefix(body, "{") {
		return out, &MalformedOutputError{Raw: raw, Err: errors.New("expected a JSON object")}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&out); err != nil {
		return out, &MalformedOutputError{Raw: raw, Err: fmt.Errorf("decode: %w", err)}
	}
	if dec.More() {
		return out, &MalformedOutputError{Raw: raw, Err: errors.New("unexpected content after JSON object")}
	}

	if err := P(&out).Normalize(); err != nil {
		return out, &MalformedOutputError{Raw: raw, Err: err}
	}
	return out, nil
}

// IsMalformed reports whether err is or wraps a *MalformedOutputError.
func IsMalformed(err error) bool {
	var m *MalformedOutputError
	return errors.As(err, &m)
}
