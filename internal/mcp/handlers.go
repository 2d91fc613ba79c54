package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/artifact"
	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/project"
	"github.com/hpungsan/chatbox/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	ctrl   *session.Controller
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctrl *session.Controller, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{ctrl: ctrl, cfg: cfg, logger: logger.Named("mcp")}
}

// Request types for each tool

// GenerateRequest represents the arguments for project_generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// SelectTabRequest represents the arguments for project_select_tab.
type SelectTabRequest struct {
	Tab string `json:"tab"`
}

// ExportRequest represents the arguments for project_export.
type ExportRequest struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
}

// GenerateOutput is the result of project_generate.
type GenerateOutput struct {
	Project   *project.Project  `json:"project"`
	Filenames map[string]string `json:"filenames"`
}

// HandleGenerate handles the project_generate tool.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[GenerateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return errorResult(errors.NewInvalidRequest("prompt is required")), nil
	}

	if !h.ctrl.Submit(ctx, in.Prompt) {
		return errorResult(errors.NewInvalidRequest("a generation is already in progress")), nil
	}

	s := h.ctrl.State()
	if err := s.LastError(); err != nil {
		return errorResult(err), nil
	}
	if s.Project == nil {
		return errorResult(errors.NewNoProject()), nil
	}

	return successResult(GenerateOutput{
		Project: s.Project.WithoutImage(),
		Filenames: map[string]string{
			string(artifact.KindCode):      project.CodeFilename(s.Project.ProjectName),
			string(artifact.KindBOM):       project.BOMFilename(s.Project.ProjectName),
			string(artifact.KindSchematic): project.SchematicFilename(s.Project.ProjectName),
		},
	})
}

// HandleState handles the project_state tool.
func (h *Handlers) HandleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := h.ctrl.State()
	s.Project = s.Project.WithoutImage()
	return successResult(s)
}

// HandleSelectTab handles the project_select_tab tool.
func (h *Handlers) HandleSelectTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[SelectTabRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.ctrl.SelectTab(session.Tab(in.Tab)); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"active_tab": in.Tab})
}

// HandleExport handles the project_export tool.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	kind, ok := artifact.ParseKind(in.Kind)
	if !ok {
		return errorResult(errors.NewInvalidRequest(
			fmt.Sprintf("unknown artifact kind %q: must be one of code, bom, schematic", in.Kind))), nil
	}

	a, err := h.ctrl.Export(kind)
	if err != nil {
		return errorResult(err), nil
	}
	if a == nil {
		return errorResult(errors.NewNoProject()), nil
	}

	out, err := artifact.Save(ctx, h.cfg, a, in.Path)
	if err != nil {
		h.logger.Warn("artifact save failed", zap.String("kind", in.Kind), zap.Error(err))
		return errorResult(err), nil
	}
	return successResult(out)
}

// Result helpers

// errorResult creates an MCP error result from any error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		// Details of internal errors may carry file paths.
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
