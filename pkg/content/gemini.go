// Package content generates lesson material: scripted sequences from course
// documents via the Gemini API, interrupt explanations for mid-lesson
// questions, and LLM-backed grading of free-form checkpoint answers.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"
)

// LLM is the generation surface the generator and judge consume. intent
// selects a model profile ("lesson", "interrupt", "judge").
type LLM interface {
	GenerateText(ctx context.Context, intent, prompt string) (string, error)
	GenerateJSON(ctx context.Context, intent, prompt string, target any) error
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	Key      string
	Model    string            // default model
	Profiles map[string]string // intent -> model override
	LogPath  string            // prompt/response log, empty disables
}

// GeminiClient implements LLM on the Gemini API.
type GeminiClient struct {
	mu          sync.RWMutex
	genaiClient *genai.Client
	modelName   string
	profiles    map[string]string
	logPath     string
}

// NewGeminiClient creates and validates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Key})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := &GeminiClient{
		genaiClient: client,
		modelName:   modelName,
		profiles:    cfg.Profiles,
		logPath:     cfg.LogPath,
	}
	if err := c.validateModel(ctx); err != nil {
		slog.Warn("Gemini model validation failed (proceeding anyway)", "error", err)
	}
	return c, nil
}

func (c *GeminiClient) resolveModel(intent string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.profiles[intent]; ok && m != "" {
		return m
	}
	return c.modelName
}

// GenerateText sends a prompt and returns the text response.
func (c *GeminiClient) GenerateText(ctx context.Context, intent, prompt string) (string, error) {
	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.resolveModel(intent), genai.Text(prompt), &genai.GenerateContentConfig{})
	if err != nil {
		c.logPrompt(intent, prompt, fmt.Sprintf("ERROR: %v", err))
		return "", fmt.Errorf("generate text error: %w", err)
	}
	text, err := getResponseText(resp)
	if err != nil {
		c.logPrompt(intent, prompt, fmt.Sprintf("TEXT_PARSE_ERROR: %v", err))
		return "", err
	}
	c.logPrompt(intent, prompt, text)
	return text, nil
}

// GenerateJSON sends a prompt and unmarshals the JSON response into target.
func (c *GeminiClient) GenerateJSON(ctx context.Context, intent, prompt string, target any) error {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.resolveModel(intent), genai.Text(prompt), cfg)
	if err != nil {
		c.logPrompt(intent, prompt, fmt.Sprintf("ERROR: %v", err))
		return fmt.Errorf("generate json error: %w", err)
	}
	text, err := getResponseText(resp)
	if err != nil {
		c.logPrompt(intent, prompt, fmt.Sprintf("TEXT_PARSE_ERROR: %v", err))
		return err
	}
	cleaned := cleanJSONBlock(text)
	c.logPrompt(intent, prompt, cleaned)
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON response: %w. Response: %s", err, cleaned)
	}
	return nil
}

func (c *GeminiClient) logPrompt(intent, prompt, response string) {
	if c.logPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(c.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	entry := fmt.Sprintf("[%s] PROMPT: %s\nPROMPT_TEXT:\n%s\n\nRESPONSE:\n%s\n%s\n",
		timestamp, intent, prompt, response, strings.Repeat("-", 80))
	_, _ = f.WriteString(entry)
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

// HealthCheck verifies the configured model is reachable. Used as a
// startup probe.
func (c *GeminiClient) HealthCheck(ctx context.Context) error {
	return c.validateModel(ctx)
}

// validateModel checks model availability, listing alternatives on failure.
func (c *GeminiClient) validateModel(ctx context.Context) error {
	name := c.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	_, err := c.genaiClient.Models.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", c.modelName)
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models...", "model", c.modelName, "error", err)
	iter, listErr := c.genaiClient.Models.List(ctx, nil)
	if listErr != nil {
		slog.Warn("Failed to list models for recovery", "error", listErr)
		return nil
	}
	for {
		resp, nextErr := iter.Next(ctx)
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			break
		}
		if strings.Contains(strings.ToLower(resp.Name), "gemini") {
			slog.Info("Available model", "name", resp.Name)
		}
	}
	return nil
}
