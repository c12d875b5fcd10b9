package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/goatshell/server/internal/config"
	"github.com/goatshell/server/internal/game/params"
)

// AnthropicClient calls the Anthropic Messages API to interpret player
// commands and generate single-player obstacle events. Replies are requested
// as JSON and validated against the parameter catalog before use.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	catalog   *params.Catalog
	logger    *zap.Logger
}

// NewAnthropicClient creates an interpreter backed by the Anthropic API.
//
// Precondition: cfg.APIKey must be non-empty; catalog and logger must be non-nil.
func NewAnthropicClient(cfg config.InterpreterConfig, catalog *params.Catalog, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		timeout:   cfg.Timeout,
		catalog:   catalog,
		logger:    logger,
	}
}

// Process interprets free text from a player.
//
// Postcondition: Returns a validated Result, or a non-nil error the caller
// must degrade to an unavailable result.
func (c *AnthropicClient) Process(ctx context.Context, command string) (Result, error) {
	prompt := fmt.Sprintf("Player command: %s", command)
	raw, err := c.complete(ctx, c.processSystemPrompt(), prompt)
	if err != nil {
		return Result{}, fmt.Errorf("processing command: %w", err)
	}

	res, err := c.parseResult(raw)
	if err != nil {
		return Result{}, fmt.Errorf("processing command: %w", err)
	}
	return res, nil
}

// Generate produces a synthetic obstacle command for single-player mode.
//
// Postcondition: Returns a Result with a valid ObstacleType, or a non-nil error.
func (c *AnthropicClient) Generate(ctx context.Context) (Result, error) {
	raw, err := c.complete(ctx, c.generateSystemPrompt(), "Generate the next obstacle now.")
	if err != nil {
		return Result{}, fmt.Errorf("generating event: %w", err)
	}

	res, err := c.parseResult(raw)
	if err != nil {
		return Result{}, fmt.Errorf("generating event: %w", err)
	}
	if !ValidObstacleType(res.ObstacleType) {
		return Result{}, fmt.Errorf("generating event: invalid obstacle type %q", res.ObstacleType)
	}
	return res, nil
}

func (c *AnthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling messages API: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return sb.String(), nil
}

// parseResult extracts and validates the JSON object from a completion.
// Unknown parameter keys are dropped; values are clamped to [-1, 1].
func (c *AnthropicClient) parseResult(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("completion contains no JSON object")
	}

	var res Result
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return Result{}, fmt.Errorf("decoding completion JSON: %w", err)
	}

	kept := res.ParameterModifications[:0]
	for _, mod := range res.ParameterModifications {
		if !c.catalog.Known(mod.Parameter) {
			c.logger.Warn("interpreter returned unknown parameter",
				zap.String("parameter", mod.Parameter),
			)
			continue
		}
		mod.NormalizedValue = params.Clamp(mod.NormalizedValue)
		kept = append(kept, mod)
	}
	res.ParameterModifications = kept
	return res, nil
}

func (c *AnthropicClient) processSystemPrompt() string {
	return fmt.Sprintf(`You are the AI assistant for 'Goat In The Shell', a terminal-based platformer. A prompter types commands to reshape the level while a goat tries to survive it. Respond with a single JSON object, no prose outside it:
{"response": "<short reply to the prompter>", "success": <bool>, "parameter_modifications": [{"parameter": "<key>", "normalized_value": <-1..1>}]}
Valid parameter keys: %s. Use an empty parameter_modifications list when the command adjusts nothing.`,
		strings.Join(c.catalog.Keys(), ", "))
}

func (c *AnthropicClient) generateSystemPrompt() string {
	return fmt.Sprintf(`You are the hostile level director for 'Goat In The Shell' single-player mode. Each turn, pick one obstacle to throw at the goat. Respond with a single JSON object, no prose outside it:
{"response": "<one taunting sentence>", "success": true, "obstacle_type": "<type>", "parameter_modifications": [{"parameter": "<key>", "normalized_value": <-1..1>}]}
Valid obstacle types: %s. Valid parameter keys: %s.`,
		strings.Join(ObstacleTypes, ", "),
		strings.Join(c.catalog.Keys(), ", "))
}
