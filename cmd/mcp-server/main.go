package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/devopus/devopus/src"
)

// MCP server exposing the generation pipeline over stdio, so agent hosts
// can build and modify React projects as tool calls.

const (
	toolGenerateProject = "generate_project"
	toolModifyProject   = "modify_project"
)

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Fatal("ANTHROPIC_API_KEY is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	pipeline := src.NewPipeline(src.NewModels(apiKey), nil, logger)

	s := server.NewMCPServer(
		"DevOpus MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	registerTools(s, pipeline)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func registerTools(s *server.MCPServer, pipeline *src.Pipeline) {
	s.AddTool(mcp.Tool{
		Name:        toolGenerateProject,
		Description: "Generate a complete React application from a natural-language prompt. Returns the generated files as JSON along with the plan and review.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "Description of the application to build",
				},
			},
			Required: []string{"prompt"},
		},
	}, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt := request.GetString("prompt", "")
		if prompt == "" {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		result, err := pipeline.Run(ctx, src.Request{Prompt: prompt})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		out, err := json.MarshalIndent(map[string]any{
			"files":   result.Files,
			"plan":    result.PlanText,
			"diagram": result.Diagram,
			"review":  result.Review,
		}, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	})

	s.AddTool(mcp.Tool{
		Name:        toolModifyProject,
		Description: "Modify a previously generated React application. Takes the modification request and the current files as a JSON object mapping paths to content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "The modification to apply",
				},
				"files": map[string]interface{}{
					"type":        "string",
					"description": "JSON object of current files, mapping path to content; must include /App.tsx",
				},
			},
			Required: []string{"prompt", "files"},
		},
	}, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt := request.GetString("prompt", "")
		filesJSON := request.GetString("files", "")
		if prompt == "" || filesJSON == "" {
			return mcp.NewToolResultError("prompt and files are required"), nil
		}

		var files src.FileSet
		if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("files is not a valid JSON object: %v", err)), nil
		}

		result, err := pipeline.FollowUp(ctx, src.FollowUpRequest{Prompt: prompt, CurrentFiles: files})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("modification failed: %v", err)), nil
		}

		out, err := json.MarshalIndent(map[string]any{
			"files":   result.Files,
			"summary": result.Summary,
		}, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	})
}
