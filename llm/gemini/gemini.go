// Package gemini implements the llm.Client collaborator on top of the Google
// Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/waifuai/waifu-llm-vrm/llm"
)

// DefaultModel is the Gemini model used when no override is configured.
const DefaultModel = "gemini-2.5-flash"

// Config configures a Gemini client.
type Config struct {
	// APIKey is the Gemini API key (see llm.LoadAPIKey).
	APIKey string
	// Model overrides DefaultModel when set.
	Model string
	// SystemPrompt is the character's system instruction (built from its
	// name and personality by the character package).
	SystemPrompt string
}

// Client calls the Gemini API. It implements llm.Client.
type Client struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// New creates a Gemini-backed collaborator.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrAPIKeyNotFound
	}
	genClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrProvider, err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	genCfg := &genai.GenerateContentConfig{}
	if cfg.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(cfg.SystemPrompt, genai.RoleUser)
	}

	return &Client{client: genClient, model: model, config: genCfg}, nil
}

// SendMessage replays the bounded history as Gemini content and returns the
// model's reply text.
func (c *Client) SendMessage(ctx context.Context, history []llm.Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == llm.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrProvider, err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		// Safety-filtered or otherwise empty candidate.
		return "", fmt.Errorf("%w: empty response", llm.ErrProvider)
	}
	return res.Candidates[0].Content.Parts[0].Text, nil
}
