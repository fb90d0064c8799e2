package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

const systemPrompt = "You are an SRE assistant. You receive a structured root cause " +
	"analysis of a batch data pipeline as JSON. Answer the operator's question using " +
	"only facts from that JSON. Be concise and lead with the verdict."

// AnthropicConfig holds the model-backed formatter settings.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// AnthropicFormatter renders reports through the Claude API, falling back to
// the rule formatter when the call fails.
type AnthropicFormatter struct {
	client   anthropic.Client
	model    anthropic.Model
	max      int64
	fallback *RuleFormatter
	logger   *slog.Logger
}

// NewAnthropicFormatter constructs a model-backed formatter. An empty APIKey
// lets the SDK read ANTHROPIC_API_KEY from the environment.
func NewAnthropicFormatter(cfg AnthropicConfig, logger *slog.Logger) *AnthropicFormatter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	var client anthropic.Client
	if cfg.APIKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	} else {
		client = anthropic.NewClient()
	}

	return &AnthropicFormatter{
		client:   client,
		model:    anthropic.Model(cfg.Model),
		max:      int64(cfg.MaxTokens),
		fallback: NewRuleFormatter(),
		logger:   logger,
	}
}

// Render asks the model to narrate the report. The report itself is already
// computed; a failed or empty completion degrades to the rule formatter so
// the endpoint never loses the analysis.
func (f *AnthropicFormatter) Render(ctx context.Context, query string, report models.Report) (string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if query == "" {
		query = "Why did the pipeline miss its SLA?"
	}

	prompt := fmt.Sprintf("Question: %s\n\nAnalysis JSON:\n%s", query, payload)
	resp, err := f.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     f.model,
		MaxTokens: f.max,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		f.logger.Warn("narrative completion failed, using rule formatter", slog.Any("error", err))
		return f.fallback.Render(ctx, query, report)
	}

	var parts []string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		f.logger.Warn("narrative completion empty, using rule formatter")
		return f.fallback.Render(ctx, query, report)
	}
	return text, nil
}
