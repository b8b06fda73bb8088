package notion

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dennwc/assetcache/content"
)

// APIError is a non-2xx response of the Notion API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var resp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &resp) == nil {
		e.Code, e.Message = resp.Code, resp.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is reports deleted or inaccessible objects as content.ErrNotFound.
func (e *APIError) Is(err error) bool {
	return err == content.ErrNotFound && (e.StatusCode == http.StatusNotFound || e.Code == "object_not_found")
}
