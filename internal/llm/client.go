package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"contentagent/internal/config"
	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

const evaluatePrompt = `You are a content analyst. Evaluate the following piece for insight quality,
relevance to AI and technology, and business value. Respond with a single JSON
object and nothing else: {"score": <0-100>, "summary": "<2-3 sentence summary>",
"comment": "<1-2 sentences on why it matters>"}`

const generatePrompt = `You are a technology writer. Synthesize the provided curated items into a
single blog post. Start the output with a YAML header block delimited by ---
lines containing title, date, summary, tags, and author, followed by the
markdown body.`

// Client talks to an OpenRouter-compatible API for evaluation, generation,
// and embeddings. Each call has exactly one expected response schema; a
// mismatch is an error, not a reason to probe alternate shapes.
type Client struct {
	endpoint    string
	model       string
	embedModel  string
	apiKey      string
	temperature float64
	maxTokens   int
	retry       config.RetryConfig
	httpClient  *http.Client
}

var (
	_ ports.Evaluator = (*Client)(nil)
	_ ports.Generator = (*Client)(nil)
	_ ports.Embedder  = (*Client)(nil)
)

// New builds a client from configuration.
func New(cfg config.LLMConfig, retry config.RetryConfig) *Client {
	return &Client{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       retry,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Evaluate scores one record's content, returning the parsed verdict.
func (c *Client) Evaluate(ctx context.Context, content, author string, source domain.Source) (domain.Evaluation, error) {
	user := fmt.Sprintf("Source: %s\nAuthor: %s\n\n%s", source, author, content)

	raw, err := c.complete(ctx, evaluatePrompt, user)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate content: %w", err)
	}

	// A malformed verdict still yields a row: neutral score, flagged for
	// manual review. Only transport failures surface as errors.
	var eval domain.Evaluation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &eval); err != nil || eval.Score < 0 || eval.Score > 100 {
		return domain.Evaluation{
			Score:   50,
			Summary: "Evaluation failed - unable to summarize",
			Comment: "Evaluation error - manual review required",
		}, nil
	}

	return eval, nil
}

// GenerateBlog synthesizes the shortlist into a document with a header block.
func (c *Client) GenerateBlog(ctx context.Context, items []domain.CuratedRecord, contextNote string) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal curated items: %w", err)
	}

	user := fmt.Sprintf("Context: %s\n\nCurated items:\n%s", contextNote, payload)
	text, err := c.complete(ctx, generatePrompt, user)
	if err != nil {
		return "", fmt.Errorf("generate blog: %w", err)
	}

	return text, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	err := c.doWithRetry(ctx, func() error {
		return c.post(ctx, "/embeddings", embedRequest{Model: c.embedModel, Input: texts}, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var resp chatResponse
	err := c.doWithRetry(ctx, func() error {
		return c.post(ctx, "/chat/completions", req, &resp)
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, payload, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("api error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// doWithRetry retries the call a bounded number of times with a constant
// interval (zero by default, so failures retry immediately).
func (c *Client) doWithRetry(ctx context.Context, fn func() error) error {
	attempts := c.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retry.Interval), uint64(attempts-1))
	return backoff.Retry(fn, backoff.WithContext(policy, ctx))
}

// extractJSON pulls the first top-level JSON object out of a completion that
// may wrap it in prose or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
