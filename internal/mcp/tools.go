package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are written for the calling model: they
// state what the tool returns and which arguments are mutually exclusive.

var parseToolDef = mcp.NewTool("timeline_parse",
	mcp.WithDescription("Parse raw ftrace function_graph text into a stored packet timeline. Returns the new timeline's id and summary counts (transmit/receive/other, max depth)."),
	mcp.WithString("trace_text",
		mcp.Required(),
		mcp.Description("Raw function_graph capture text (the content of trace or trace_pipe)."),
	),
	mcp.WithString("name",
		mcp.Description("Optional stable handle for the timeline, unique among active timelines (case-insensitive)."),
	),
	mcp.WithString("label",
		mcp.Description("Optional free-text description."),
	),
	mcp.WithString("mode",
		mcp.Description("Name collision behavior: 'error' (default) or 'replace'."),
		mcp.Enum("error", "replace"),
	),
)

var resolveToolDef = mcp.NewTool("timeline_resolve",
	mcp.WithDescription("Locate the definition site of every function in a stored timeline inside a kernel source tree, and splice file/line into the timeline. Address the timeline by id OR name, not both."),
	mcp.WithString("id", mcp.Description("Timeline ULID.")),
	mcp.WithString("name", mcp.Description("Timeline name (alternative to id).")),
	mcp.WithString("source_root",
		mcp.Required(),
		mcp.Description("Root of the kernel source tree to search."),
	),
	mcp.WithArray("dirs",
		mcp.Description("Ordered subdirectories to search, relative to source_root. First accepted definition wins. Defaults to the configured network-first order."),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithNumber("workers", mcp.Description("Concurrent resolution workers (default from config).")),
	mcp.WithNumber("timeout_ms", mcp.Description("Per-function timeout in milliseconds; timed-out functions degrade to placeholders.")),
)

var fetchToolDef = mcp.NewTool("timeline_fetch",
	mcp.WithDescription("Fetch a stored timeline by id or name, including its entries (call stacks, directions, synthetic buffer state, source locations)."),
	mcp.WithString("id", mcp.Description("Timeline ULID.")),
	mcp.WithString("name", mcp.Description("Timeline name (alternative to id).")),
	mcp.WithBoolean("include_entries", mcp.Description("Include the full entry list (default true). Set false for metadata only.")),
	mcp.WithBoolean("include_locations", mcp.Description("Include per-function resolution results (without bodies; use timeline_source for a body).")),
	mcp.WithBoolean("include_deleted", mcp.Description("Allow fetching a soft-deleted timeline.")),
)

var listToolDef = mcp.NewTool("timeline_list",
	mcp.WithDescription("List stored timelines, most recently updated first. Returns metadata and summaries, never entries."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100).")),
	mcp.WithNumber("offset", mcp.Description("Pagination offset.")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted timelines.")),
)

var deleteToolDef = mcp.NewTool("timeline_delete",
	mcp.WithDescription("Soft-delete a timeline by id or name. The name becomes reusable immediately; the data survives until a purge."),
	mcp.WithString("id", mcp.Description("Timeline ULID.")),
	mcp.WithString("name", mcp.Description("Timeline name (alternative to id).")),
)

var purgeToolDef = mcp.NewTool("timeline_purge",
	mcp.WithDescription("Permanently remove soft-deleted timelines past the retention window."),
	mcp.WithNumber("older_than_days", mcp.Description("Purge timelines deleted at least this many days ago (default 7; 0 purges everything soft-deleted).")),
)

var exportToolDef = mcp.NewTool("timeline_export",
	mcp.WithDescription("Export a timeline to a JSON file. The destination must be a .json path directly inside an allowed directory."),
	mcp.WithString("id", mcp.Description("Timeline ULID.")),
	mcp.WithString("name", mcp.Description("Timeline name (alternative to id).")),
	mcp.WithString("path", mcp.Description("Destination path (default ~/.pktvis/exports/<name>-<timestamp>.json).")),
	mcp.WithBoolean("include_locations", mcp.Description("Include per-function resolution results, bodies included.")),
)

var sourceToolDef = mcp.NewTool("timeline_source",
	mcp.WithDescription("Return the stored definition site and extracted body of one function in a resolved timeline."),
	mcp.WithString("id", mcp.Description("Timeline ULID.")),
	mcp.WithString("name", mcp.Description("Timeline name (alternative to id).")),
	mcp.WithString("function",
		mcp.Required(),
		mcp.Description("Function name exactly as it appears in the timeline."),
	),
)
