// Package completion sends single-turn prompts to a remote chat-completion service.
// Failures are returned as data in a Result, never as an error.
package completion

import "context"

// ErrorKind classifies a failed completion.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindConnection        ErrorKind = "connection"
	KindRequest           ErrorKind = "request"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindMissingContent    ErrorKind = "missing_content"
)

// User-visible failure messages.
const (
	MsgTimeout           = "Error: The request to the AI service timed out. Please try again."
	MsgConnection        = "Error: Could not connect to the AI service. Please check your internet connection."
	MsgRequestPrefix     = "Error: An API request failed: "
	MsgMalformedResponse = "Error: The AI service returned a malformed response."
	MsgMissingContent    = "Error: The AI service returned an invalid response."
)

// Result is either generated text or a tagged failure.
type Result struct {
	Text    string
	Kind    ErrorKind // empty on success
	Message string    // human-readable failure message
}

// Failed reports whether the completion failed.
func (r Result) Failed() bool {
	return r.Kind != ""
}

// String returns the generated text, or the failure message.
func (r Result) String() string {
	if r.Failed() {
		return r.Message
	}
	return r.Text
}

// Completer is the capability every caller depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) Result
}

func failure(kind ErrorKind, msg string) Result {
	return Result{Kind: kind, Message: msg}
}
