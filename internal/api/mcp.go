package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/intelapi/internal/protocol"
	"github.com/kalambet/intelapi/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Catalog *session.Catalog
	Log     GenerationLog // optional; recent generations resource is empty without it
	Version string
}

// NewMCPServer creates an MCP server exposing text generation over the
// same session pipeline as the HTTP API.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"intelapi",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("intelapi: local text generation with optional JSON schema constrained output."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate",
			mcp.WithDescription("Generate a completion for a prompt with a local model. Pass a JSON schema to get structured JSON output."),
			mcp.WithString("prompt", mcp.Description("The prompt to complete"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Model name (default \"base\")")),
			mcp.WithString("schema", mcp.Description("Optional JSON schema object, as a JSON string, the output must conform to")),
		),
		mcpGenerate(deps),
	)

	s.AddTool(
		mcp.NewTool("list_models",
			mcp.WithDescription("List the model names accepted by generate."),
		),
		mcpListModels(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"intelapi://generations/recent",
			"Recent Generations",
			mcp.WithResourceDescription("Metadata of the last 10 generations"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpGenerate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		chatReq := &protocol.ChatRequest{Prompt: &prompt}
		if model := req.GetString("model", ""); model != "" {
			chatReq.Model = &model
		}
		if schema := req.GetString("schema", ""); schema != "" {
			if !json.Valid([]byte(schema)) {
				return mcpError("schema must be a JSON object"), nil
			}
			chatReq.ResponseFormat = &protocol.ResponseFormat{
				Type: protocol.FormatJSONSchema,
				JSONSchema: &protocol.JSONSchemaFormat{
					Name:   "response",
					Schema: json.RawMessage(schema),
				},
			}
		}

		s, err := session.New(deps.Catalog, chatReq)
		if err != nil {
			var reqErr *session.RequestError
			if errors.As(err, &reqErr) {
				return mcpError(reqErr.Kind.Reason()), nil
			}
			return mcpError(fmt.Sprintf("invalid request: %v", err)), nil
		}

		g := newGeneration(s)
		chunk := s.Respond(ctx)
		g.finish(chunk.FinishReason, len(chunk.ToolCalls), deps.Log)

		text := ""
		if chunk.Content != nil {
			text = *chunk.Content
		}
		switch chunk.FinishReason {
		case session.FinishStop, session.FinishToolCalls:
			return mcpText(text), nil
		case session.FinishError:
			return mcpError(text), nil
		default:
			return mcpError(fmt.Sprintf("generation stopped: %s", chunk.FinishReason)), nil
		}
	}
}

func mcpListModels(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(deps.Catalog.Names())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal models: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type generationSummary struct {
			ID           string `json:"id"`
			CreatedAt    string `json:"created_at"`
			Model        string `json:"model"`
			FinishReason string `json:"finish_reason"`
		}

		summaries := []generationSummary{}
		if deps.Log != nil {
			gens, err := deps.Log.RecentGenerations(10)
			if err != nil {
				return nil, fmt.Errorf("failed to get recent generations: %w", err)
			}
			for _, g := range gens {
				summaries = append(summaries, generationSummary{
					ID:           g.ID,
					CreatedAt:    g.CreatedAt.Format(time.RFC3339),
					Model:        g.Model,
					FinishReason: g.FinishReason,
				})
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal generations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
