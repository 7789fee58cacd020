// Package session tracks where each user is in a multi-message conversation.
// Every owner gets a looplab/fsm instance that decides which free-text reply
// means what. Sessions live in memory for the life of the process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/looplab/fsm"
)

// State is a conversation step.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingName         State = "awaiting_name"
	StateAwaitingProducts     State = "awaiting_products"
	StateAwaitingDeleteChoice State = "awaiting_delete_choice"
)

// Event names accepted by Session.Fire.
const (
	EventStart    = "start"
	EventAdd      = "add"
	EventDelete   = "delete"
	EventName     = "name"
	EventProducts = "products"
	EventSelect   = "select"
	EventCancel   = "cancel"
)

// Scratch keys.
const (
	KeyName = "name"
)

// ErrInvalidTransition is returned when an event does not apply to the current state.
var ErrInvalidTransition = errors.New("event not valid in current state")

var allStates = []string{
	string(StateIdle),
	string(StateAwaitingName),
	string(StateAwaitingProducts),
	string(StateAwaitingDeleteChoice),
}

var pendingStates = []string{
	string(StateAwaitingName),
	string(StateAwaitingProducts),
	string(StateAwaitingDeleteChoice),
}

func newMachine(ownerID int64, log *slog.Logger) *fsm.FSM {
	return fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: EventStart, Src: allStates, Dst: string(StateAwaitingName)},
			{Name: EventAdd, Src: allStates, Dst: string(StateAwaitingProducts)},
			{Name: EventDelete, Src: allStates, Dst: string(StateAwaitingDeleteChoice)},
			{Name: EventName, Src: []string{string(StateAwaitingName)}, Dst: string(StateIdle)},
			{Name: EventProducts, Src: []string{string(StateAwaitingProducts)}, Dst: string(StateIdle)},
			{Name: EventSelect, Src: []string{string(StateAwaitingDeleteChoice)}, Dst: string(StateIdle)},
			{Name: EventCancel, Src: pendingStates, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				log.DebugContext(ctx, "Session state changed",
					"owner_id", ownerID, "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// Session is one owner's conversation. Callers hold Lock for the duration
// of an inbound event so one owner's events are handled in arrival order.
type Session struct {
	mu      sync.Mutex
	ownerID int64
	machine *fsm.FSM
	scratch map[string]string
}

// Lock serializes event handling for this owner.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the lock taken by Lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// OwnerID returns the owner this session belongs to.
func (s *Session) OwnerID() int64 { return s.ownerID }

// State returns the current conversation step.
func (s *Session) State() State {
	return State(s.machine.Current())
}

// Can reports whether event applies to the current state.
func (s *Session) Can(event string) bool {
	return s.machine.Can(event)
}

// Fire applies event. If the event does not apply, the state is left
// untouched and the error matches ErrInvalidTransition.
func (s *Session) Fire(ctx context.Context, event string) error {
	err := s.machine.Event(ctx, event)
	if err == nil {
		return nil
	}

	var invalid fsm.InvalidEventError
	var unknown fsm.UnknownEventError
	var noTransition fsm.NoTransitionError
	switch {
	case errors.As(err, &invalid), errors.As(err, &unknown):
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, s.machine.Current())
	case errors.As(err, &noTransition):
		// Same source and destination, e.g. /add while already adding.
		return nil
	default:
		return fmt.Errorf("session event %q failed: %w", event, err)
	}
}

// Set stores a transient value for the current conversation.
func (s *Session) Set(key, value string) {
	s.scratch[key] = value
}

// Value returns a transient value previously stored with Set.
func (s *Session) Value(key string) (string, bool) {
	v, ok := s.scratch[key]
	return v, ok
}

// Manager owns every session, keyed by owner id.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	logger   *slog.Logger
}

// NewManager creates an empty session manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[int64]*Session),
		logger:   logger.With("component", "sessions"),
	}
}

// Get returns the owner's session, creating an idle one on first use.
func (m *Manager) Get(ownerID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[ownerID]; ok {
		return s
	}

	s := &Session{
		ownerID: ownerID,
		machine: newMachine(ownerID, m.logger),
		scratch: make(map[string]string),
	}
	m.sessions[ownerID] = s
	m.logger.Debug("Created session", "owner_id", ownerID)
	return s
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reset forgets every session. Called on shutdown.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions)
	m.sessions = make(map[int64]*Session)
	m.logger.Info("Dropped all sessions", "count", n)
}
