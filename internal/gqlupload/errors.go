package gqlupload

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// GraphQLError is one entry of a response's "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// TransportError reports a failed submission: a network failure, a non-2xx
// status, an unreadable body or a response carrying GraphQL errors.
type TransportError struct {
	StatusCode int            // 0 when no response was received
	Errors     []GraphQLError // server-provided errors, if any
	Err        error          // underlying cause, if any
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("graphql transport")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if len(e.Errors) > 0 {
		msgs := make([]string, len(e.Errors))
		for i, ge := range e.Errors {
			msgs[i] = ge.Message
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(msgs, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerMessage returns the first server-provided error message as plain
// text, or "" if the server sent none. Markup is stripped since the text
// ends up on the registration page.
func (e *TransportError) ServerMessage() string {
	for _, ge := range e.Errors {
		if msg := plainText(ge.Message); msg != "" {
			return msg
		}
	}
	return ""
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

func plainText(s string) string {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
