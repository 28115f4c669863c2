// Package llm defines the language-model collaborator consumed by character
// sessions.
//
// Sessions depend only on the Client interface; the gemini subpackage
// provides the production implementation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Conversation roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// APIKeyFile is the conventional credential location, relative to the user's
// home directory.
const APIKeyFile = ".api-gemini"

// ErrAPIKeyNotFound is returned when the credential file is missing or empty.
var ErrAPIKeyNotFound = errors.New("gemini api key not found")

// ErrProvider wraps upstream model failures (quota, network, malformed
// responses). The conversation that triggered the failure is left untouched
// by callers.
var ErrProvider = errors.New("llm provider error")

// Turn is one entry of a conversation history.
type Turn struct {
	// Role is RoleUser or RoleModel.
	Role string `json:"role"`
	// Text is the turn content.
	Text string `json:"text"`
}

// Client produces a model reply for a conversation.
//
// SendMessage receives the full bounded history, newest turn last, and
// returns the model's reply text. Implementations must not retain the
// history slice.
type Client interface {
	SendMessage(ctx context.Context, history []Turn) (string, error)
}

// LoadAPIKey reads the Gemini API key from ~/.api-gemini.
func LoadAPIKey() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPIKeyNotFound, err)
	}
	return LoadAPIKeyFrom(filepath.Join(home, APIKeyFile))
}

// LoadAPIKeyFrom reads the Gemini API key from an explicit path.
func LoadAPIKeyFrom(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAPIKeyNotFound, path, err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrAPIKeyNotFound, path)
	}
	return key, nil
}
