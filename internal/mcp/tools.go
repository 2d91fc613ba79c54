package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var generateToolDef = mcp.NewTool("project_generate",
	mcp.WithDescription("Generate an Arduino project (firmware, bill of materials, wiring guide and schematic image) "+
		"from a plain-language description. Blocks until generation finishes. Returns the project without the image payload; "+
		"use project_export with kind=schematic to save the image."),
	mcp.WithString("prompt",
		mcp.Required(),
		mcp.Description("Project idea, e.g. \"a night light that turns on when it gets dark\""),
	),
)

var stateToolDef = mcp.NewTool("project_state",
	mcp.WithDescription("Return the current session: chat transcript, loading flag, last error, active tab and project (without the image payload)."),
)

var selectTabToolDef = mcp.NewTool("project_select_tab",
	mcp.WithDescription("Switch the active output panel."),
	mcp.WithString("tab",
		mcp.Required(),
		mcp.Description("Output panel to show"),
		mcp.Enum("code", "bom", "schematic"),
	),
)

var exportToolDef = mcp.NewTool("project_export",
	mcp.WithDescription("Save one artifact of the current project to disk and return its path. "+
		"Default destination is ~/.chatbox/exports/<filename>."),
	mcp.WithString("kind",
		mcp.Required(),
		mcp.Description("Artifact to save: code (.ino), bom (.csv) or schematic (.png)"),
		mcp.Enum("code", "bom", "schematic"),
	),
	mcp.WithString("path",
		mcp.Description("Destination file; must carry the artifact's extension and sit directly in the exports dir or an allowed_paths entry"),
	),
)
