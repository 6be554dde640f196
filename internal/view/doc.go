// Package view implements the upload-and-detect component.
//
// A View owns the state of one session: the selected file with its preview
// handle, the detection result with its handle, and a single tagged phase:
//
//	Idle -> Selecting -> InFlight -> Succeeded | Failed
//	                       ^              |
//	                       +--------------+   (RequestDetection again)
//
// SelectFile may be called in any phase and always lands in Selecting.
//
// # Requests
//
// RequestDetection starts at most one request at a time and returns a Task.
// Every exit path of the request leaves InFlight: success publishes the
// result and the elapsed wall-clock time, failure and cancellation record
// the reason. Nothing is retried.
//
// # Display Handles
//
// Preview and result handles are scoped: selecting a new file revokes the
// old preview and result, a new result revokes the old one, and Close
// revokes both.
package view
