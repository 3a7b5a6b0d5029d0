package mcp

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/metrics"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/session"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"profile", "screen", "page"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"profile_list": {
		def:     profileListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileList },
	},
	"profile_get": {
		def:     profileGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileGet },
	},
	"profile_select": {
		def:     profileSelectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileSelect },
	},
	"profile_save": {
		def:     profileSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileSave },
	},
	"profile_delete": {
		def:     profileDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileDelete },
	},
	"profile_export": {
		def:     profileExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileExport },
	},
	"profile_import": {
		def:     profileImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileImport },
	},
	"screen_analyze": {
		def:     screenAnalyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScreenAnalyze },
	},
	"screen_ask": {
		def:     screenAskToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScreenAsk },
	},
	"page_extract": {
		def:     pageExtractToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageExtract },
	},
	"page_ask": {
		def:     pageAskToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePageAsk },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "screen_ask" → "screen").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// Deps are the collaborators the MCP server needs.
type Deps struct {
	Orchestrator *ops.Orchestrator
	Config       *config.Config
	Session      *session.Session
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// NewServer creates a new MCP server with Backseat tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"backseat",
		version,
		server.WithToolCapabilities(true),
	)

	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandlers(deps.Orchestrator, cfg, deps.Session)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, instrument(name, entry.handler(h), cfg.RequestTimeout(), deps.Metrics, logger))
	}

	return s
}

// errToolFailed marks a tool result with IsError set.
var errToolFailed = stderrors.New("tool call failed")

// instrument bounds a tool handler by timeout, records metrics and logs
// failures. A zero timeout leaves the call unbounded.
func instrument(name string, next server.ToolHandlerFunc, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		result, err := next(ctx, req)

		outcomeErr := err
		if outcomeErr == nil && result != nil && result.IsError {
			outcomeErr = errToolFailed
		}
		m.ObserveMessage(name, outcomeErr, time.Since(start))
		if outcomeErr != nil {
			logger.Warn("tool call failed", zap.String("tool", name), zap.Duration("duration", time.Since(start)))
		}
		return result, err
	}
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
