package mcp

// ToolDefinition models MCP tool metadata.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "store_memory",
			Description: "Store a memory with a specific category (episodic, semantic, procedural). " +
				"episodic: short-term context (logs, current tasks). " +
				"semantic: facts, preferences, user identity. " +
				"procedural: code patterns, logic, workflows.",
			InputSchema: jsonSchema(map[string]any{
				"content":  propString("Memory content to store."),
				"category": propStringEnum("Memory category. Defaults to episodic.", []string{"episodic", "semantic", "procedural"}),
			}, []string{"content"}),
		},
		{
			Name: "recall_memory",
			Description: "Retrieve memories by semantic relevance gated by decay strength. " +
				"Successfully recalled memories receive a Hebbian boost, refreshing their strength.",
			InputSchema: jsonSchema(map[string]any{
				"query": propString("Search query."),
			}, []string{"query"}),
		},
		{
			Name: "verify_history",
			Description: "Bypass decay and search the immutable archive journal. " +
				"Use for audit or when recall fails.",
			InputSchema: jsonSchema(map[string]any{
				"keyword": propString("Case-insensitive keyword to match against journal entries."),
				"from":    propString("Optional inclusive start date, YYYY-MM-DD."),
				"to":      propString("Optional inclusive end date, YYYY-MM-DD."),
			}, []string{"keyword"}),
		},
	}
}

func jsonSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func propString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func propStringEnum(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}
