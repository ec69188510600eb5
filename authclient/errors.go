package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrInvalidBaseURL is returned by New when the base URL is empty,
// relative or not http(s).
var ErrInvalidBaseURL = errors.New("authclient: invalid base URL")

// Error is a non-2xx answer from the authentication service.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth service: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth service: %d: %s", e.Status, e.Message)
}

const maxErrorBody = 64 << 10

func errorFromResponse(resp *http.Response) *Error {
	e := &Error{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(body, e) == nil && (e.Code != "" || e.Message != "") {
		return e
	}
	e.Code = ""
	e.Message = strings.TrimSpace(string(body))
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
