package engine

// Transcript is the engine's ordered record of a conversation.
type Transcript struct {
	Entries []Entry
}

// Len returns the number of entries.
func (t Transcript) Len() int {
	return len(t.Entries)
}

// Entry is one typed transcript item: *Instructions, *Prompt, *Response or
// *ToolResult.
type Entry interface {
	entry()
}

// Instructions carry system text and the tool catalogue available to the model.
type Instructions struct {
	Segments        []Segment
	ToolDefinitions []ToolDefinition
}

// Prompt is a user turn.
type Prompt struct {
	Segments []Segment
}

// Response is a model turn. It always has at least one segment.
type Response struct {
	Segments []Segment
}

// ToolResult is the output of a tool invocation, keyed by the invocation id.
type ToolResult struct {
	ID       string
	Segments []Segment
}

func (*Instructions) entry() {}
func (*Prompt) entry()       {}
func (*Response) entry()     {}
func (*ToolResult) entry()   {}

// Segment is a piece of entry content: TextSegment or ToolCallSegment.
type Segment interface {
	segment()
}

// TextSegment is plain text.
type TextSegment struct {
	Content string
}

// ToolCallSegment records a tool invocation made by the model.
type ToolCallSegment struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

func (TextSegment) segment()     {}
func (ToolCallSegment) segment() {}

// Text concatenates the text segments of segs.
func Text(segs []Segment) string {
	var out string
	for _, s := range segs {
		if t, ok := s.(TextSegment); ok {
			out += t.Content
		}
	}
	return out
}

// ToolDefinition describes a callable tool. InputSchema is a JSON document.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema string
}

// ToolCall is a tool invocation produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// SamplingMode selects how the next token is drawn.
type SamplingMode int

const (
	// SamplingProbabilityThreshold is nucleus (top-p) sampling.
	SamplingProbabilityThreshold SamplingMode = iota + 1
	// SamplingTopK draws from the k most likely tokens.
	SamplingTopK
)

// Sampling is an explicit sampling strategy. A nil *Sampling in Options means
// the engine default.
type Sampling struct {
	Mode      SamplingMode
	Threshold float64
	TopK      int
	Seed      *uint64
}

// Options are generation options. Nil fields use engine defaults.
type Options struct {
	Sampling    *Sampling
	Temperature *float64
	MaxTokens   *int
}

// Request is everything one engine invocation needs.
type Request struct {
	Transcript Transcript
	Prompt     string
	Tools      []ToolDefinition
	Options    Options
	// Schema constrains the output when non-nil.
	Schema *GenerationSchema
}

// Generation is a generation result. During streaming each Generation is a
// cumulative snapshot: Text only grows and ToolCalls is append-only.
type Generation struct {
	Text      string
	ToolCalls []ToolCall
	// Content holds the structured output when the request carried a Schema.
	Content GeneratedContent
}
