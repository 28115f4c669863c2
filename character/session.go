// Package character implements stateful conversational characters driven by
// an LLM collaborator and projected into a Godot scene through a connector.
//
// Two session variants exist: Session (chat plus generic engine actions) and
// VRMSession (adds animation and blend-shape control for a VRM scene node).
// The variant is chosen at construction; there is no runtime switching.
package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/waifuai/waifu-llm-vrm/connector"
	"github.com/waifuai/waifu-llm-vrm/internal/wire"
	"github.com/waifuai/waifu-llm-vrm/llm"
	"github.com/waifuai/waifu-llm-vrm/pkg/logger"
)

// DefaultHistoryLimit is the default bound on stored conversation turns.
const DefaultHistoryLimit = 40

// ErrNoLLM is returned when a session is constructed without a collaborator.
var ErrNoLLM = errors.New("no llm collaborator configured")

// ValidationError reports an argument rejected before any I/O happened.
type ValidationError struct {
	// Field names the offending argument.
	Field string
	// Reason describes the constraint that failed.
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Config configures a session.
type Config struct {
	// Name is the character's immutable name.
	Name string
	// Personality is the character's immutable personality description.
	Personality string
	// HistoryLimit bounds stored conversation turns. Defaults to
	// DefaultHistoryLimit.
	HistoryLimit int
	// LLM is the language-model collaborator. Required.
	LLM llm.Client
	// Connector is the shared engine channel. Optional; without one the
	// character can chat but engine-bound actions fail with
	// connector.ErrNotConnected.
	Connector *connector.Connector
}

// Stats is a snapshot of a session's activity.
type Stats struct {
	// Name is the character name.
	Name string
	// Interactions counts completed Talk exchanges.
	Interactions int
	// HistoryLen is the current stored turn count.
	HistoryLen int
}

// Session is one conversational character.
//
// All methods are safe for concurrent use; Talk calls are serialized so the
// history is never observed mid-mutation.
type Session struct {
	name         string
	personality  string
	historyLimit int
	llm          llm.Client
	conn         *connector.Connector

	mu           sync.Mutex
	history      []llm.Turn
	state        map[string]any
	interactions int
}

// New creates a session. The LLM collaborator is a construction-time
// precondition; identity fields are immutable afterwards.
func New(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if cfg.LLM == nil {
		return nil, ErrNoLLM
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Session{
		name:         cfg.Name,
		personality:  cfg.Personality,
		historyLimit: limit,
		llm:          cfg.LLM,
		conn:         cfg.Connector,
		state:        make(map[string]any),
	}, nil
}

// SystemPrompt builds the collaborator system instruction for a character.
func SystemPrompt(name, personality string) string {
	prompt := fmt.Sprintf("You are %s, a character in a game scene.", name)
	if personality != "" {
		prompt += " Personality: " + personality
	}
	prompt += " Stay in character and keep replies conversational."
	return prompt
}

// Name returns the character's name.
func (s *Session) Name() string { return s.name }

// Personality returns the character's personality description.
func (s *Session) Personality() string { return s.personality }

// Talk sends the user's text to the collaborator and returns the reply.
//
// The user turn and the reply are appended to the bounded history together;
// when the collaborator fails, the history is rolled back to its pre-call
// value and the error surfaces unchanged. The caller never observes a user
// turn without a paired reply.
func (s *Session) Talk(ctx context.Context, inputText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, llm.Turn{Role: llm.RoleUser, Text: inputText})

	reply, err := s.llm.SendMessage(ctx, s.history)
	if err != nil {
		s.history = s.history[:len(s.history)-1]
		return "", fmt.Errorf("talk: %w", err)
	}

	s.history = append(s.history, llm.Turn{Role: llm.RoleModel, Text: reply})
	if excess := len(s.history) - s.historyLimit; excess > 0 {
		s.history = append([]llm.Turn(nil), s.history[excess:]...)
	}
	s.interactions++
	logger.Debugf("character %s: exchange %d complete", s.name, s.interactions)
	return reply, nil
}

// PerformAction forwards a validated action to the engine as a connector
// call. Connector failures propagate unchanged; attempts without a connected
// channel fail fast instead of queueing.
func (s *Session) PerformAction(ctx context.Context, action string, args ...any) error {
	if strings.TrimSpace(action) == "" {
		return &ValidationError{Field: "action", Reason: "must not be empty"}
	}
	_, err := s.call(ctx, action, args...)
	return err
}

// ListenPlayerInput subscribes the session to the engine's player_input
// events, so text typed in-scene flows through Talk without a REPL in the
// way. Each event is handled on its own goroutine; onReply receives the
// collaborator's reply or the Talk error. Requires a connector.
func (s *Session) ListenPlayerInput(ctx context.Context, onReply func(reply string, err error)) error {
	if s.conn == nil {
		return connector.ErrNotConnected
	}
	s.conn.On(wire.EventPlayerInput, func(payload json.RawMessage) {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(payload, &in); err != nil {
			logger.Warnf("character %s: bad player_input payload: %v", s.name, err)
			return
		}
		if strings.TrimSpace(in.Text) == "" {
			return
		}
		go func() {
			reply, err := s.Talk(ctx, in.Text)
			if onReply != nil {
				onReply(reply, err)
			}
		}()
	})
	return nil
}

// call issues a connector call on behalf of the session.
func (s *Session) call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if s.conn == nil {
		return nil, connector.ErrNotConnected
	}
	return s.conn.Call(ctx, method, args...)
}

// UpdateState merges the given key/value pairs into the session state,
// last write wins per key. Empty keys are rejected.
func (s *Session) UpdateState(updates map[string]any) error {
	for key := range updates {
		if key == "" {
			return &ValidationError{Field: "state key", Reason: "must not be empty"}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range updates {
		s.state[key] = value
	}
	return nil
}

// State returns a copy of the session state.
func (s *Session) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}

// History returns a copy of the bounded conversation history, oldest first.
func (s *Session) History() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Turn(nil), s.history...)
}

// Stats returns a snapshot of the session's activity.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Name: s.name, Interactions: s.interactions, HistoryLen: len(s.history)}
}
