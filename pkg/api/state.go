package api

// Metadata keys the engine itself reads or writes. Steps may define their
// own keys freely as long as they do not collide with these.
const (
	// MetaRunID is set by the engine before the entry node runs and is
	// immutable for the rest of the run.
	MetaRunID = "run_id"

	// MetaCurrentStep is updated by the engine to the name of the step
	// currently executing on this branch's state.
	MetaCurrentStep = "current_step"

	// MetaShowReasoning asks steps to append their reasoning to Messages.
	MetaShowReasoning = "show_reasoning"

	// MetaGenerateReport asks the pipeline's report router to schedule a
	// follow-up report step instead of terminating.
	MetaGenerateReport = "generate_report"
)

// Message is a single event on the conversation / audit trail.
type Message struct {
	// Role is the speaker, e.g. "system", "user" or "assistant".
	Role string

	// Name identifies the step that produced the message, when relevant.
	Name string

	// Content is the message text.
	Content string
}

// State is the shared record threaded through every step of a run.
//
// Messages is append-only: steps add to it, never remove or reorder.
// Data carries the business payload keyed by string; Metadata carries
// execution-control flags. The engine hands every step its own clone, so a
// step returns its (possibly modified) state instead of mutating shared
// structure in place.
type State struct {
	Messages []Message
	Data     map[string]any
	Metadata map[string]any
}

// NewState returns an empty state with initialized maps.
func NewState() *State {
	return &State{
		Data:     make(map[string]any),
		Metadata: make(map[string]any),
	}
}

// Clone returns a copy of the state with fresh Messages, Data and Metadata
// containers. Leaf values are shared: a step that wants to modify a nested
// structure must replace it rather than mutate it.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	c := &State{
		Messages: make([]Message, len(s.Messages)),
		Data:     make(map[string]any, len(s.Data)),
		Metadata: make(map[string]any, len(s.Metadata)),
	}
	copy(c.Messages, s.Messages)
	for k, v := range s.Data {
		c.Data[k] = v
	}
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// AddMessage appends a message to the trail.
func (s *State) AddMessage(m Message) {
	s.Messages = append(s.Messages, m)
}

// Value returns the Data entry for key.
func (s *State) Value(key string) (any, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// StringValue returns the Data entry for key if it is a string.
func (s *State) StringValue(key string) (string, bool) {
	v, ok := s.Data[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// SetValue sets a Data entry, initializing the map if needed.
func (s *State) SetValue(key string, v any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = v
}

// Meta returns the Metadata entry for key.
func (s *State) Meta(key string) (any, bool) {
	v, ok := s.Metadata[key]
	return v, ok
}

// MetaBool returns the Metadata entry for key if it is a bool.
func (s *State) MetaBool(key string) bool {
	v, ok := s.Metadata[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SetMeta sets a Metadata entry, initializing the map if needed.
func (s *State) SetMeta(key string, v any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = v
}

// RunID returns the run identifier assigned by the engine, or "" before the
// run has started.
func (s *State) RunID() string {
	id, _ := s.Metadata[MetaRunID].(string)
	return id
}
