package mcp

import "github.com/mark3labs/mcp-go/mcp"

var profileListToolDef = mcp.NewTool("profile_list",
	mcp.WithDescription("List all profiles in insertion order and the current profile name."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var profileGetToolDef = mcp.NewTool("profile_get",
	mcp.WithDescription("Get a profile by name. Without a name, returns the current profile."),
	mcp.WithString("name", mcp.Description("Exact profile name (case-sensitive)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var profileSelectToolDef = mcp.NewTool("profile_select",
	mcp.WithDescription("Make a profile current for this session and for future sessions."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exact profile name")),
)

var profileSaveToolDef = mcp.NewTool("profile_save",
	mcp.WithDescription("Create or overwrite a profile by name. Name, ollamaUrl, model and at least one OCR language are required."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Profile name")),
	mcp.WithString("ollamaUrl", mcp.Required(), mcp.Description("Base URL of the Ollama server, e.g. http://localhost:11434")),
	mcp.WithString("model", mcp.Required(), mcp.Description("Model identifier, e.g. llama2")),
	mcp.WithString("ocrUrl", mcp.Description("Full URL of the OCR endpoint")),
	mcp.WithArray("ocrLanguages", mcp.Required(), mcp.Description("OCR language codes, e.g. [\"deu\", \"eng\"]"),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithString("prompt", mcp.Description("System prompt")),
	mcp.WithObject("filters", mcp.Description("DOM filters: {regex, domInclude, domExclude}"),
		mcp.Properties(map[string]any{
			"regex":      map[string]any{"type": "string"},
			"domInclude": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"domExclude": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		})),
)

var profileDeleteToolDef = mcp.NewTool("profile_delete",
	mcp.WithDescription("Delete a profile. Deleting the current profile selects Default."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exact profile name")),
	mcp.WithDestructiveHintAnnotation(true),
)

var profileExportToolDef = mcp.NewTool("profile_export",
	mcp.WithDescription("Export all profiles as a JSON array. With to_file, writes to path (default ~/.backseat/exports/backseat-profiles-YYYY-MM-DD.json)."),
	mcp.WithBoolean("to_file", mcp.Description("Write to a file instead of returning the data")),
	mcp.WithString("path", mcp.Description("Output .json path (implies to_file)")),
)

var profileImportToolDef = mcp.NewTool("profile_import",
	mcp.WithDescription("Replace all profiles with a JSON array, given inline as data or read from path."),
	mcp.WithString("data", mcp.Description("JSON array of profile records")),
	mcp.WithString("path", mcp.Description("Path of an exported .json file")),
	mcp.WithDestructiveHintAnnotation(true),
)

var screenAnalyzeToolDef = mcp.NewTool("screen_analyze",
	mcp.WithDescription("Capture the screen and run OCR with the current profile. The text is kept for screen_ask."),
)

var screenAskToolDef = mcp.NewTool("screen_ask",
	mcp.WithDescription("Ask the current profile's model about the last recognized screen text."),
	mcp.WithString("question", mcp.Description("Question to ask")),
	mcp.WithString("ocr_text", mcp.Description("Use this text instead of the last recognized text")),
)

var pageExtractToolDef = mcp.NewTool("page_extract",
	mcp.WithDescription("Extract full and filtered text from an HTML page using the current profile's filters."),
	mcp.WithString("html", mcp.Required(), mcp.Description("HTML document")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var pageAskToolDef = mcp.NewTool("page_ask",
	mcp.WithDescription("Ask the current profile's model about the filtered text of an HTML page."),
	mcp.WithString("html", mcp.Required(), mcp.Description("HTML document")),
	mcp.WithString("question", mcp.Description("Question to ask")),
)
