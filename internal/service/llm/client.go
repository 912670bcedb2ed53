package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/service/ratelimit"
	applogger "MarketBrief/pkg/logger"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared/constant"
)

// Client wraps the chat-completions API for structured-output calls. Every
// call is rate limited through a shared token bucket.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
	limiter     *ratelimit.Limiter
	rps         float64
	logger      *applogger.Logger
}

// Config holds the generative-call settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	RPS         float64
}

// New creates a rate-limited chat-completions client.
func New(cfg Config, limiter *ratelimit.Limiter, lgr *applogger.Logger) *Client {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		api:         openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     limiter,
		rps:         rps,
		logger:      lgr,
	}
}

// GenerateJSON runs one completion constrained to the JSON schema of out and
// unmarshals the answer into it. out must be a pointer to a struct.
func (c *Client) GenerateJSON(ctx context.Context, name, system, user string, out any) (models.TokenUsage, error) {
	if err := c.waitTurn(ctx); err != nil {
		return models.TokenUsage{}, err
	}

	schema, err := schemaFor(out)
	if err != nil {
		return models.TokenUsage{}, err
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Strict: param.NewOpt(true),
					Schema: schema,
				},
				Type: constant.ValueOf[constant.JSONSchema](),
			},
		},
	})
	if err != nil {
		c.logger.Error("completion failed",
			applogger.String("call", name),
			applogger.Error(err))
		return models.TokenUsage{}, fmt.Errorf("completion %s: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return models.TokenUsage{}, fmt.Errorf("completion %s: empty response", name)
	}

	usage := models.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return usage, fmt.Errorf("completion %s: decode result: %w", name, err)
	}

	c.logger.Info("completion finished",
		applogger.String("call", name),
		applogger.Int64("total_tokens", usage.TotalTokens),
		applogger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return usage, nil
}

func (c *Client) waitTurn(ctx context.Context) error {
	for !c.limiter.Allow("llm", c.rps, c.rps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// schemaFor derives the strict JSON schema of out's type.
func schemaFor(out any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(out)

	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	delete(m, "$schema")
	return m, nil
}
