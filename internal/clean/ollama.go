package clean

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/retypeset/internal/common"
)

const (
	maxAttempts = 3
	retryPause  = 2 * time.Second
)

// Chatter the model prepends or appends despite the prompt. Lines matching
// any of these are dropped from the response.
var boilerplate = []string{
	"here is", "here's", "the text", "corrected", "fixed",
	"output:", "result:", "summary", "main points", "appears to be",
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// OllamaCleaner repairs OCR artifacts by sending small text chunks through a
// local Ollama model. Every failure path degrades to the original text: a
// dead server, an exhausted retry budget or a suspiciously short completion
// never lose content.
type OllamaCleaner struct {
	cfg    common.CleanConfig
	model  string
	client *http.Client
	logger *slog.Logger
}

func NewOllamaCleaner(cfg common.CleanConfig, logger *slog.Logger) *OllamaCleaner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaCleaner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckConnection verifies the server is reachable and resolves the model to
// use: the configured one when available, otherwise the first installed.
func (c *OllamaCleaner) CheckConnection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/api/tags", nil)
	if err != nil {
		return "", fmt.Errorf("build tags request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama unreachable at %s: %w", c.cfg.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama tags: status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("decode tags: %w", err)
	}
	if len(tags.Models) == 0 {
		return "", fmt.Errorf("ollama has no models installed")
	}
	for _, m := range tags.Models {
		if m.Name == c.cfg.Model {
			c.model = m.Name
			return c.model, nil
		}
	}
	c.model = tags.Models[0].Name
	c.logger.Warn("clean.model.fallback", "wanted", c.cfg.Model, "using", c.model)
	return c.model, nil
}

type generateOptions struct {
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          int      `json:"top_k"`
	RepeatPenalty float64  `json:"repeat_penalty"`
	NumPredict    int      `json:"num_predict"`
	Stop          []string `json:"stop"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// CleanText cleans text chunk by chunk. Chunks that cannot be cleaned are
// kept verbatim, so the returned text is never shorter than the badly
// degraded cases would make it.
func (c *OllamaCleaner) CleanText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if c.model == "" {
		if _, err := c.CheckConnection(ctx); err != nil {
			c.logger.Error("clean.connection.failed", "error", err)
			return text, err
		}
	}

	chunks := chunkText(text, c.cfg.MaxChunkChars)
	c.logger.Info("clean.start", "chars", len(text), "chunks", len(chunks), "model", c.model)

	cleaned := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return text, err
		}
		out, err := c.cleanChunk(ctx, chunk)
		if err != nil {
			c.logger.Error("clean.chunk.failed", "chunk", i+1, "error", err)
			out = chunk
		}
		cleaned[i] = out
	}

	result := strings.Join(cleaned, "\n\n")
	c.logger.Info("clean.done", "chars_in", len(text), "chars_out", len(result))
	return result, nil
}

func (c *OllamaCleaner) cleanChunk(ctx context.Context, chunk string) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(chunk),
		Stream: false,
		Options: generateOptions{
			Temperature:   0,
			TopP:          0.1,
			TopK:          10,
			RepeatPenalty: 1.0,
			NumPredict:    int(float64(len(chunk)) * 1.2),
			Stop:          []string{"\n\nInput:", "EXAMPLE:", "Now fix", "Output:"},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, _, err := SendJSON(ctx, c.client, c.cfg.URL+"/api/generate", payload, nil, c.logger)
		if err == nil {
			if err = ValidateJSONAgainstSchema(generateResponseSchema, raw); err == nil {
				var gr generateResponse
				if err = json.Unmarshal(raw, &gr); err == nil {
					return c.accept(chunk, gr.Response), nil
				}
			}
		}
		lastErr = err
		c.logger.Warn("clean.chunk.retry", "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryPause):
			}
		}
	}
	return "", fmt.Errorf("clean chunk after %d attempts: %w", maxAttempts, lastErr)
}

// accept filters model chatter out of the completion and rejects outputs
// that lost too much content.
func (c *OllamaCleaner) accept(chunk, raw string) string {
	out := filterResponse(raw)
	if len(chunk) > 0 && float64(len(out))/float64(len(chunk)) < 0.5 {
		c.logger.Warn("clean.chunk.too_short", "in", len(chunk), "out", len(out))
		return chunk
	}
	return out
}

func filterResponse(raw string) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "#") {
			continue
		}
		lower := strings.ToLower(line)
		skip := false
		for _, pat := range boilerplate {
			if strings.Contains(lower, pat) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func buildPrompt(chunk string) string {
	return `Fix OCR errors in this text. Do NOT summarize or explain anything.

EXAMPLE:
Input: "Th e qu ick br0wn f0x jum ps 0ver th e 1azy d0g"
Output: "The quick brown fox jumps over the lazy dog"

Input: "D ata w arehouses ar e lim ited in th eir ab ility"
Output: "Data warehouses are limited in their ability"

Input: "In 2e21, the c0mpany"
Output: "In 2021, the company"

IMPORTANT: Keep all years (2020, 2021, 2022, etc.) and numbers exactly as they are.
IMPORTANT: Keep ALL line breaks and paragraph breaks as in the input. Do not merge lines or paragraphs. Only correct OCR errors.
Now fix this text (output ONLY the corrected text):

` + chunk
}

// chunkText splits text into sentence-aligned chunks of at most maxChars.
// A single oversized sentence becomes its own chunk rather than being cut.
func chunkText(text string, maxChars int) []string {
	sentences := splitSentences(text)
	var chunks []string
	var current strings.Builder

	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(s)+1 > maxChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, strings.TrimSpace(text[start:m[0]+1]))
		start = m[1]
	}
	if start < len(text) {
		if tail := strings.TrimSpace(text[start:]); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}
