// Package llm provides text-completion adapters for hosted and local
// language models. Adapters are stateless apart from their HTTP client and
// safe for concurrent use.
package llm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request is a single completion request.
type Request struct {
	System    string // instructions for the model
	Prompt    string // the user turn
	MaxTokens int    // zero means the adapter default
}

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 512

func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Provider: provider,
		Status:   resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
	}
}
