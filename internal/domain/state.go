package domain

// State is the conversation value threaded through every handler call.
// Head is nil for an empty conversation. Version increments on every head
// advance so owners can tell stale values apart.
type State struct {
	Head    *MessageID
	Version uint64
}

// Advance returns a new state whose head is id.
func (s State) Advance(id MessageID) State {
	return State{
		Head:    IDPtr(id),
		Version: s.Version + 1,
	}
}

// HeadString renders the head for logs.
func (s State) HeadString() string {
	if s.Head == nil {
		return ""
	}
	return string(*s.Head)
}
