package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/techscore/internal/score"
	"github.com/joescharf/techscore/internal/submit"
)

// Submitter delivers a submission. *submit.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, data score.Data) (*submit.Result, error)
}

// Server exposes score validation and submission as MCP tools.
type Server struct {
	submitter  Submitter
	defaultURL string
	version    string
}

// NewServer creates the MCP server wrapper. defaultURL is used when a
// submit call does not name a server.
func NewServer(sub Submitter, defaultURL, version string) *Server {
	return &Server{
		submitter:  sub,
		defaultURL: defaultURL,
		version:    version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("techscore", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.validateTool())
	srv.AddTool(s.submitTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// fieldOptions declares one tool argument per submission field.
func fieldOptions() []mcp.ToolOption {
	var opts []mcp.ToolOption
	for _, f := range score.Fields {
		if f.Kind == score.KindFloat {
			opts = append(opts, mcp.WithNumber(f.Key, mcp.Description(f.Usage)))
		} else {
			opts = append(opts, mcp.WithString(f.Key, mcp.Description(f.Usage)))
		}
	}
	return opts
}

// dataFromRequest copies the submission fields present in the call arguments.
func dataFromRequest(request mcp.CallToolRequest) score.Data {
	args := request.GetArguments()
	data := score.Data{}
	for _, f := range score.Fields {
		if v, ok := args[f.Key]; ok {
			data[f.Key] = v
		}
	}
	return data
}

// techscore_validate
func (s *Server) validateTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Check a technical design score submission for missing required fields without sending it. Returns {\"valid\": bool, \"missing\": [keys]}."),
	}, fieldOptions()...)
	return mcp.NewTool("techscore_validate", opts...), s.handleValidate
}

func (s *Server) handleValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	missing := score.Validate(dataFromRequest(request))
	if missing == nil {
		missing = []string{}
	}

	data, err := json.Marshal(map[string]any{
		"valid":   len(missing) == 0,
		"missing": missing,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// techscore_submit
func (s *Server) submitTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Submit a technical design score to the fullstack quality platform. All ten score fields are required. A non-200 response is returned as a result with ok=false, not as an error."),
		mcp.WithString("url", mcp.Description("API server address; defaults to the configured url")),
	}, fieldOptions()...)
	return mcp.NewTool("techscore_submit", opts...), s.handleSubmit
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	baseURL := request.GetString("url", s.defaultURL)
	if baseURL == "" {
		return mcp.NewToolResultError("missing server address: pass url or configure one"), nil
	}

	data := dataFromRequest(request)
	if err := score.Check(data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	endpoint := score.Endpoint(baseURL)
	res, err := s.submitter.Submit(ctx, endpoint, data)
	if err != nil {
		var rfe *submit.ResponseFormatError
		if errors.As(err, &rfe) {
			return mcp.NewToolResultError(fmt.Sprintf("%v; raw response: %s", err, rfe.Raw)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("submit to %s: %v", endpoint, err)), nil
	}

	out, err := json.Marshal(map[string]any{
		"endpoint":    endpoint,
		"status_code": res.StatusCode,
		"ok":          res.OK(),
		"request_id":  res.RequestID,
		"response":    res.Body,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
