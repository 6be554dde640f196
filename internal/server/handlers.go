package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/edgeview/internal/imagefile"
	"github.com/ironsheep/edgeview/internal/view"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "view_select_file").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if d, ok := result.(deferredResult); ok && err == nil {
		id := req.ID
		if s.later != nil {
			s.later(func() *MCPResponse {
				result, err := d()
				return s.toolResponse(id, result, err)
			})
			return nil
		}
		result, err = d()
	}
	return s.toolResponse(req.ID, result, err)
}

// deferredResult is returned by tools whose outcome arrives after the call.
type deferredResult func() (interface{}, error)

// toolResponse wraps a tool outcome in an MCP response.
func (s *Server) toolResponse(id interface{}, result interface{}, err error) *MCPResponse {
	if err != nil {
		return s.errorResponse(id, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "view_select_file":
		return s.handleSelectFile(args)
	case "view_detect":
		return s.handleDetect(args)
	case "view_cancel":
		return s.handleCancel()
	case "view_status":
		return s.view.Snapshot(), nil
	case "view_save_result":
		return s.handleSaveResult(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs tolerates a missing arguments object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleSelectFile(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	f, err := imagefile.Open(a.Path)
	if err != nil {
		return nil, err
	}
	return s.view.SelectFile(f)
}

type detectArgs struct {
	Wait *bool `json:"wait"`
}

// DetectResult reports whether a request was started and the state after it.
type DetectResult struct {
	Started bool          `json:"started"`
	State   view.Snapshot `json:"state"`
}

func (s *Server) handleDetect(args json.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	wait := a.Wait == nil || *a.Wait

	task := s.view.RequestDetection(context.Background())
	if task == nil {
		return &DetectResult{Started: false, State: s.view.Snapshot()}, nil
	}
	if !wait {
		return &DetectResult{Started: true, State: s.view.Snapshot()}, nil
	}
	return deferredResult(func() (interface{}, error) {
		return &DetectResult{Started: true, State: task.Wait()}, nil
	}), nil
}

func (s *Server) handleCancel() (interface{}, error) {
	canceled := s.view.Cancel()
	return map[string]interface{}{
		"canceled": canceled,
		"state":    s.view.Snapshot(),
	}, nil
}

// SaveResult describes a written output image.
type SaveResult struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

func (s *Server) handleSaveResult(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}

	data, contentType, ok := s.view.ResultData()
	if !ok {
		return nil, errors.New("no result to save")
	}
	if err := os.WriteFile(a.Path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write result: %w", err)
	}
	return &SaveResult{Path: a.Path, ContentType: contentType, Size: len(data)}, nil
}
