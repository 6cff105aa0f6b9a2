package state

import "time"

// EventType names a committed store mutation.
type EventType string

const (
	EventCredentialUpdated  EventType = "credential.updated"
	EventProjectCreated     EventType = "project.created"
	EventProjectDeleted     EventType = "project.deleted"
	EventProjectSelected    EventType = "project.selected"
	EventGenerationAdded    EventType = "generation.added"
	EventChatAppended       EventType = "chat.appended"
	EventPreferencesUpdated EventType = "preferences.updated"
)

// Event is published after a mutation has been persisted.
type Event struct {
	Type         EventType `json:"type"`
	ProjectID    string    `json:"project_id,omitempty"`
	GenerationID string    `json:"generation_id,omitempty"`
	At           time.Time `json:"at"`
}

// Subscribe registers a listener for store events. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
//
// Go Pattern: Publishing never blocks. A subscriber whose buffer is full
// misses the event instead of stalling a mutation.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, buffer)
	s.subs[id] = ch

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		c, ok := s.subs[id]
		if !ok {
			return
		}
		delete(s.subs, id)
		close(c)
	}
	return ch, unsubscribe
}

func (s *Store) publish(evt Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
