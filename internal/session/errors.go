package session

import "fmt"

// RequestKind classifies a rejected request.
type RequestKind int

const (
	NonConformingBody RequestKind = iota + 1
	InvalidMessageRole
	NoPromptOrMessages
	InvalidModel
)

func (k RequestKind) String() string {
	switch k {
	case NonConformingBody:
		return "non_conforming_body"
	case InvalidMessageRole:
		return "invalid_message_role"
	case NoPromptOrMessages:
		return "no_prompt_or_messages"
	case InvalidModel:
		return "invalid_model"
	default:
		return "unknown"
	}
}

// Reason returns the client-facing description of k.
func (k RequestKind) Reason() string {
	switch k {
	case NonConformingBody:
		return "Request body does not conform to expected standard."
	case InvalidMessageRole:
		return "An invalid message role was given. These must be either 'system', 'user', 'assistant', or 'tool'."
	case NoPromptOrMessages:
		return "One of `messages` or `prompt` is required."
	case InvalidModel:
		return "The requested model does not exist."
	default:
		return fmt.Sprintf("request error %d", int(k))
	}
}

// RequestError rejects a request before any engine invocation.
type RequestError struct {
	Kind RequestKind
	// Err carries detail for logs. It is nil on the sentinel values.
	Err error
}

func (e *RequestError) Error() string {
	return e.Kind.Reason()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches sentinel request errors by kind.
func (e *RequestError) Is(target error) bool {
	t, ok := target.(*RequestError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNonConformingBody  = &RequestError{Kind: NonConformingBody}
	ErrInvalidMessageRole = &RequestError{Kind: InvalidMessageRole}
	ErrNoPromptOrMessages = &RequestError{Kind: NoPromptOrMessages}
	ErrInvalidModel       = &RequestError{Kind: InvalidModel}
)

func requestError(kind RequestKind, err error) *RequestError {
	return &RequestError{Kind: kind, Err: err}
}
