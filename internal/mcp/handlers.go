package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/profile"
	"github.com/hpungsan/backseat/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
// One MCP process serves one client, so it owns a single session.
type Handlers struct {
	orch *ops.Orchestrator
	cfg  *config.Config
	sess *session.Session
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(orch *ops.Orchestrator, cfg *config.Config, sess *session.Session) *Handlers {
	return &Handlers{orch: orch, cfg: cfg, sess: sess}
}

// Request types for each tool

// NameRequest represents the arguments for profile_get, profile_select and profile_delete.
type NameRequest struct {
	Name string `json:"name"`
}

// ExportRequest represents the arguments for profile_export.
type ExportRequest struct {
	ToFile bool   `json:"to_file,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for profile_import.
type ImportRequest struct {
	Data string `json:"data,omitempty"`
	Path string `json:"path,omitempty"`
}

// AskRequest represents the arguments for screen_ask.
type AskRequest struct {
	Question string  `json:"question,omitempty"`
	OCRText  *string `json:"ocr_text,omitempty"`
}

// PageRequest represents the arguments for page_extract and page_ask.
type PageRequest struct {
	HTML     string `json:"html"`
	Question string `json:"question,omitempty"`
}

// Handler implementations

// HandleProfileList handles the profile_list tool call.
func (h *Handlers) HandleProfileList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListProfiles(ctx, h.orch.Store, h.sess)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileGet handles the profile_get tool call.
func (h *Handlers) HandleProfileGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *profile.Profile
	if strings.TrimSpace(input.Name) == "" {
		result, err = ops.GetCurrentProfile(ctx, h.orch.Store, h.cfg, h.sess)
	} else {
		result, err = ops.GetProfile(ctx, h.orch.Store, input.Name)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileSelect handles the profile_select tool call.
func (h *Handlers) HandleProfileSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetCurrentProfile(ctx, h.orch.Store, h.sess, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileSave handles the profile_save tool call.
// The arguments are a profile record.
func (h *Handlers) HandleProfileSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[profile.Profile](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveProfile(ctx, h.orch.Store, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileDelete handles the profile_delete tool call.
func (h *Handlers) HandleProfileDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NameRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteProfile(ctx, h.orch.Store, h.cfg, h.sess, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileExport handles the profile_export tool call.
func (h *Handlers) HandleProfileExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.ToFile || input.Path != "" {
		result, err := ops.ExportProfilesToFile(ctx, h.orch.Store, h.cfg, ops.ExportFileInput{Path: input.Path})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.ExportProfiles(ctx, h.orch.Store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleProfileImport handles the profile_import tool call.
func (h *Handlers) HandleProfileImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *ops.ImportOutput
	switch {
	case input.Data != "" && input.Path != "":
		return errorResult(errors.NewInvalidRequest("provide either data or path, not both")), nil
	case input.Path != "":
		result, err = ops.ImportProfilesFromFile(ctx, h.orch.Store, h.cfg, h.sess, ops.ImportFileInput{Path: input.Path})
	case input.Data != "":
		result, err = ops.ImportProfiles(ctx, h.orch.Store, h.cfg, h.sess, input.Data)
	default:
		return errorResult(errors.NewInvalidRequest("data or path is required")), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleScreenAnalyze handles the screen_analyze tool call.
func (h *Handlers) HandleScreenAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := h.orch.AnalyzeScreen(ctx, h.sess)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleScreenAsk handles the screen_ask tool call.
func (h *Handlers) HandleScreenAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AskRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *ops.AskOutput
	if input.OCRText != nil {
		result, err = h.orch.AskQuestionWith(ctx, h.sess, *input.OCRText, input.Question)
	} else {
		result, err = h.orch.AskQuestion(ctx, h.sess, input.Question)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePageExtract handles the page_extract tool call.
func (h *Handlers) HandlePageExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.orch.ExtractPage(ctx, h.sess, input.HTML)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePageAsk handles the page_ask tool call.
func (h *Handlers) HandlePageAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.orch.AskAboutPage(ctx, h.sess, input.HTML, input.Question)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var bErr *errors.BackseatError
	if errors.As(err, &bErr) {
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": bErr.Message,
			"status":  bErr.Status,
		}
		if bErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if bErr.Details != nil {
			errorObj["details"] = bErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
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
