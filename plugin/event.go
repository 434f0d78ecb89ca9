package plugin

import (
	"fmt"
	"time"

	"github.com/pithecene-io/framewire/types"
)

// FrameEvent is the JSON body outbound plugins send for one frame.
type FrameEvent struct {
	Plugin    string `json:"plugin"`
	Timestamp string `json:"timestamp"` // RFC 3339, UTC
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Payload   any    `json:"payload"`
}

// NewFrameEvent describes frame for plugin name with a script payload.
func NewFrameEvent(name string, frame types.NativeFrame, payload any) *FrameEvent {
	return &FrameEvent{
		Plugin:    name,
		Timestamp: frame.Timestamp().UTC().Format(time.RFC3339Nano),
		Width:     frame.Width(),
		Height:    frame.Height(),
		Format:    frame.Format(),
		Payload:   payload,
	}
}

// StringArg returns args[i] as a string. ok is false when args is too
// short; err is set when the argument exists but is not a string.
func StringArg(args []any, i int, param string) (s string, ok bool, err error) {
	if i >= len(args) || args[i] == nil {
		return "", false, nil
	}
	s, isString := args[i].(string)
	if !isString {
		return "", false, fmt.Errorf("%s must be a string, got %T", param, args[i])
	}
	return s, true, nil
}
