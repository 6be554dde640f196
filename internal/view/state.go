package view

import (
	"fmt"

	"github.com/ironsheep/edgeview/internal/handle"
	"github.com/ironsheep/edgeview/internal/imagefile"
)

// Phase is the tag of the view's state.
type Phase int

const (
	// PhaseIdle: no file selected.
	PhaseIdle Phase = iota

	// PhaseSelecting: a file is selected and previewed, no request made yet.
	PhaseSelecting

	// PhaseInFlight: a detection request is running.
	PhaseInFlight

	// PhaseSucceeded: the last request returned an image.
	PhaseSucceeded

	// PhaseFailed: the last request failed or was cancelled.
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:      "idle",
	PhaseSelecting: "selecting",
	PhaseInFlight:  "in_flight",
	PhaseSucceeded: "succeeded",
	PhaseFailed:    "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Input describes the selected file for rendering.
type Input struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
	PreviewURL  string `json:"preview_url"`
}

// Output describes the returned image for rendering.
type Output struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Snapshot is an immutable copy of the view state.
//
// Loading is true exactly when Phase is PhaseInFlight; Output is nil unless
// Phase is PhaseSucceeded.
type Snapshot struct {
	Phase     Phase   `json:"phase"`
	Loading   bool    `json:"loading"`
	Input     *Input  `json:"input,omitempty"`
	Output    *Output `json:"output,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Error     string  `json:"error,omitempty"`
	Canceled  bool    `json:"canceled,omitempty"`
	Closed    bool    `json:"closed,omitempty"`

	// Version increases on every state change.
	Version uint64 `json:"version"`
}

func inputFrom(f *imagefile.File, preview handle.Handle) *Input {
	return &Input{
		Name:        f.Name,
		Format:      f.Format,
		ContentType: f.ContentType,
		Width:       f.Width,
		Height:      f.Height,
		Size:        f.Size(),
		PreviewURL:  preview.URL,
	}
}
