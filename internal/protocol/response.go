package protocol

// Object types of response envelopes.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectList                = "list"
	ObjectModel               = "model"
)

// RoleAssistant is the role of every generated message.
const RoleAssistant = "assistant"

// Envelope is the common header of completion responses.
type Envelope struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
}

// ChatCompletion is a non-streaming chat-mode response.
type ChatCompletion struct {
	Envelope
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice is one chat-mode choice.
type ChatChoice struct {
	Index              int             `json:"index"`
	FinishReason       *string         `json:"finish_reason"`
	NativeFinishReason *string         `json:"native_finish_reason"`
	Message            ResponseMessage `json:"message"`
}

// ResponseMessage is the assistant message of a chat choice. Content is
// encoded as null when absent.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// TextCompletion is a non-streaming completion-mode response. It shares the
// chat.completion object type.
type TextCompletion struct {
	Envelope
	Choices []TextChoice `json:"choices"`
}

// TextChoice is one completion-mode choice.
type TextChoice struct {
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason"`
	Text         *string `json:"text"`
}

// ChatCompletionChunk is one streamed event.
type ChatCompletionChunk struct {
	Envelope
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one streamed choice. FinishReason is null until the
// terminal chunk.
type ChunkChoice struct {
	Index              int     `json:"index"`
	FinishReason       *string `json:"finish_reason"`
	NativeFinishReason *string `json:"native_finish_reason"`
	Delta              Delta   `json:"delta"`
}

// Delta is the incremental part of a streamed choice. Absent content is
// omitted rather than sent empty.
type Delta struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Model is one entry of the models list.
type Model struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

// ModelList is the body of GET /api/v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
