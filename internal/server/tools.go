package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "view_select_file",
			Description: "Select a local png/jpg/jpeg image for edge detection. Replaces any previous selection and clears the previous result.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "view_detect",
			Description: "Send the selected image to the edge-detection service. Does nothing when no image is selected or a request is already running.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"wait": map[string]interface{}{
						"type":        "boolean",
						"description": "Answer once the service has replied. Other calls, including view_cancel, are still handled while waiting. Default true",
						"default":     true,
					},
				},
			},
		},
		{
			Name:        "view_cancel",
			Description: "Cancel the edge-detection request in flight, if any.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "view_status",
			Description: "Report the current state: selected image, loading flag, result and elapsed time.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "view_save_result",
			Description: "Write the processed image returned by the service to a file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the output file",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}
