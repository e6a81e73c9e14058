package src

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Default stage models. Planner, architect, and reviewer run on the
// stronger model; the coder runs on the fast one with a larger output
// window since it emits whole file sets.
const (
	defaultStrongModel = "claude-sonnet-4-6"
	defaultFastModel   = "claude-haiku-4-5-20251001"
)

// ModelConfig selects the model and sampling parameters for one pipeline
// stage.
type ModelConfig struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// ToolSchema describes the forced tool used to obtain structured output:
// the model must answer by calling a tool whose input schema is the type
// we want back.
type ToolSchema struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// ImagePayload is a base64-encoded image attached to a structured request.
type ImagePayload struct {
	MediaType string
	Data      string
}

// StructuredRequest is a single structured-output model call.
type StructuredRequest struct {
	System string
	Prompt string
	Image  *ImagePayload
	Schema ToolSchema
}

// Invoker abstracts the model backend. The pipeline depends on this
// interface so tests can substitute scripted responses.
type Invoker interface {
	// InvokeStructured forces a tool call and returns the raw tool input.
	InvokeStructured(ctx context.Context, cfg ModelConfig, req StructuredRequest) (json.RawMessage, error)
	// InvokeText returns the concatenated text blocks of a plain completion.
	InvokeText(ctx context.Context, cfg ModelConfig, system, prompt string) (string, error)
}

// Models bundles the per-stage configuration with the backend that
// executes the calls. Built once at startup and shared.
type Models struct {
	Planner   ModelConfig
	Architect ModelConfig
	Coder     ModelConfig
	Reviewer  ModelConfig
	Invoker   Invoker
}

// NewModels wires the default stage configuration against the Anthropic
// API. Model names can be overridden per stage through the environment.
func NewModels(apiKey string) *Models {
	strong := envOr("DEVOPUS_STRONG_MODEL", defaultStrongModel)
	fast := envOr("DEVOPUS_FAST_MODEL", defaultFastModel)
	return &Models{
		Planner:   ModelConfig{Model: strong, MaxTokens: 4096},
		Architect: ModelConfig{Model: strong, MaxTokens: 8192},
		Coder:     ModelConfig{Model: fast, MaxTokens: 16384},
		Reviewer:  ModelConfig{Model: strong, MaxTokens: 4096},
		Invoker:   newAnthropicInvoker(apiKey),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type anthropicInvoker struct {
	client anthropic.Client
}

func newAnthropicInvoker(apiKey string) *anthropicInvoker {
	return &anthropicInvoker{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (a *anthropicInvoker) InvokeStructured(ctx context.Context, cfg ModelConfig, req StructuredRequest) (json.RawMessage, error) {
	blocks := []anthropic.ContentBlockParamUnion{}
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, req.Image.Data))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   cfg.MaxTokens,
		Temperature: anthropic.Float(cfg.Temperature),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        req.Schema.Name,
				Description: anthropic.String(req.Schema.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: req.Schema.Properties,
					Required:   req.Schema.Required,
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Schema.Name},
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			return json.RawMessage(variant.JSON.Input.Raw()), nil
		}
	}
	return nil, E(ErrCodeSchemaValidation, "model %s returned no tool call for %s", cfg.Model, req.Schema.Name)
}

func (a *anthropicInvoker) InvokeText(ctx context.Context, cfg ModelConfig, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   cfg.MaxTokens,
		Temperature: anthropic.Float(cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	out := ""
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

// planSchema is the forced tool schema for the planner stage.
func planSchema() ToolSchema {
	return ToolSchema{
		Name:        "record_plan",
		Description: "Record the project plan for the requested application.",
		Properties: map[string]any{
			"name":        map[string]any{"type": "string", "description": "Name of the app to be built"},
			"description": map[string]any{"type": "string", "description": "One line description of the app"},
			"techstack":   map[string]any{"type": "string", "description": "Tech stack, e.g. React, Tailwind"},
			"features": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of features the app should have",
			},
			"files": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path":    map[string]any{"type": "string"},
						"purpose": map[string]any{"type": "string"},
					},
					"required": []string{"path", "purpose"},
				},
				"description": "Files to be created with their purpose",
			},
		},
		Required: []string{"name", "description", "techstack", "features", "files"},
	}
}

// taskPlanSchema is the forced tool schema for the architect stage.
func taskPlanSchema() ToolSchema {
	return ToolSchema{
		Name:        "record_task_plan",
		Description: "Record the implementation plan and architecture diagram.",
		Properties: map[string]any{
			"architecture_diagram": map[string]any{
				"type":        "string",
				"description": "Mermaid.js graph TD flowchart of the component hierarchy",
			},
			"implementation_steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"filepath":         map[string]any{"type": "string"},
						"task_description": map[string]any{"type": "string"},
					},
					"required": []string{"filepath", "task_description"},
				},
				"description": "Ordered implementation tasks, one per file",
			},
		},
		Required: []string{"architecture_diagram", "implementation_steps"},
	}
}
