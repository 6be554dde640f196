// Package server exposes the upload-and-detect view over MCP (Model Context
// Protocol).
//
// The server drives a single view, the same component the web page uses, so
// an MCP client can select an image, run edge detection and fetch the
// result without a browser.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - view_select_file: Select an image from disk
//   - view_detect: Send it to the edge service (waits by default; the
//     answer is written when the request ends and view_cancel still works)
//   - view_cancel: Abort the request in flight
//   - view_status: Current view state
//   - view_save_result: Write the returned image to disk
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A failed edge request is not a tool error: view_detect succeeds and the
// returned state carries phase "failed" with the reason.
package server
