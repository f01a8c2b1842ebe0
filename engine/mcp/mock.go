package mcp

// mockTool is one canned tool/resource output registered on a mock Client.
type mockTool struct {
	result any
}

// NewMockClient builds an already-Connected Client whose CallTool/
// ReadResource calls are satisfied from canned results keyed by tool or
// resource name, bypassing the real transport entirely. The public API is
// identical to a real Client.
func NewMockClient(name string, results map[string]any) *Client {
	tools := make(map[string]mockTool, len(results))
	for k, v := range results {
		tools[k] = mockTool{result: v}
	}
	return &Client{
		cfg:       Config{Name: name},
		state:     Connected,
		schemas:   make(map[string]*schemaEntry),
		mock:      true,
		mockTools: tools,
	}
}
