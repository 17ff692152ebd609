package advice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SourceOpenAI labels advice written by the chat completion model.
const SourceOpenAI = "openai"

// Config holds OpenAI configuration parameters. A nil Temperature uses the
// default; an explicit zero is kept.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

const defaultTemperature = 0.3

// Client implements Advisor against the OpenAI chat completions API.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	temp := defaultTemperature
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	if temp < 0 || temp > 2 {
		return nil, fmt.Errorf("temperature %v outside [0,2]", temp)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Advise requests a retention recommendation for the prediction.
func (c *Client) Advise(ctx context.Context, input Input) (Advice, error) {
	if c == nil || !c.Enabled() {
		return Advice{}, ErrDisabled
	}

	body, err := json.Marshal(c.buildPayload(input))
	if err != nil {
		return Advice{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Advice{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Advice{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return Advice{}, fmt.Errorf("openai status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Advice{}, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Advice{}, errors.New("openai empty response")
	}

	content := normalizeJSONBlock(decoded.Choices[0].Message.Content)
	if content == "" {
		return Advice{}, errors.New("openai empty recommendation")
	}
	var parsed struct {
		Recommendation string `json:"recommendation"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Advice{}, fmt.Errorf("parse ai response: %w", err)
	}
	text := strings.TrimSpace(parsed.Recommendation)
	if text == "" {
		return Advice{}, errors.New("ai recommendation missing")
	}

	return Advice{
		Band:           Band(input.Result.ChurnProbability),
		Recommendation: text,
		Source:         SourceOpenAI,
	}, nil
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func (c *Client) buildPayload(input Input) map[string]any {
	messages := []map[string]string{
		{
			"role":    "system",
			"content": "You are a telecom customer retention analyst. Reply with a strict JSON object containing the single key recommendation. The recommendation must be at most two sentences, name one concrete retention action, and must not restate the probability. Emit nothing outside the JSON object.",
		},
		{
			"role":    "user",
			"content": buildUserPrompt(input),
		},
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	return payload
}

func buildUserPrompt(input Input) string {
	r := input.Record
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "Churn probability: %.1f%% (%s risk)\n", input.Result.ChurnProbability*100, Band(input.Result.ChurnProbability))
	fmt.Fprintf(builder, "Predicted churn: %t\n", input.Result.ChurnLabel)
	fmt.Fprintf(builder, "Age: %d, gender: %s, state: %s\n", r.Age, r.Gender, r.State)
	fmt.Fprintf(builder, "Device: %s, plan: %s, unit price: %.0f\n", r.Device, r.SubscriptionPlan, r.UnitPrice)
	fmt.Fprintf(builder, "Purchases: %d, total revenue: %.0f, data usage: %.1f GB\n", r.PurchaseCount, r.TotalRevenue, r.DataUsage)
	fmt.Fprintf(builder, "Satisfaction: %d/10, tenure: %d months\n", r.SatisfactionRate, r.TenureMonths)
	builder.WriteString("Suggest the next retention step for the account manager.\n")
	return builder.String()
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
