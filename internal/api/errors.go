package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized matches any *Error carrying a 401 status.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a failed backend call: a non-2xx response, or a transport
// failure with Status 0.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a 401 as ErrUnauthorized.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// check turns a resty result into nil or an *Error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return &Error{Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	if resp == nil {
		return &Error{Message: "no response"}
	}
	if !resp.IsError() {
		return nil
	}
	return &Error{
		Status:  resp.StatusCode(),
		Message: ErrorMessage(resp.StatusCode(), resp.Body()),
	}
}

// ErrorMessage extracts the first readable message from an error body.
// Recognised shapes are {"detail": "..."}, {"error": "..."},
// {"message": "..."} and field maps like {"field": ["msg"]}. Anything else
// yields the raw body, or the status text for an empty body.
func ErrorMessage(status int, body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		if text := http.StatusText(status); text != "" {
			return text
		}
		return fmt.Sprintf("HTTP %d", status)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return raw
	}

	for _, key := range []string{"detail", "error", "message", "non_field_errors"} {
		if msg := firstText(obj[key]); msg != "" {
			return msg
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msg := firstText(obj[k]); msg != "" {
			return k + ": " + msg
		}
	}
	return raw
}

// firstText returns v when it is a non-empty string, or the first non-empty
// string in v when it is a list.
func firstText(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		for _, item := range val {
			if s := firstText(item); s != "" {
				return s
			}
		}
	}
	return ""
}
