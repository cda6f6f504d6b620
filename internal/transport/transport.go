// Package transport defines the surface between the survey flow and
// whatever chat adapter delivers it: prompt/keyboard specs, callback
// data encoding, and the Sender interface an adapter implements.
package transport

import "context"

// Button is one inline keyboard button: a visible label and the opaque
// callback data sent back when pressed.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Keyboard is an ordered option list, one button per row.
type Keyboard struct {
	Buttons []Button `json:"buttons"`
}

// Prompt is one outbound question bubble. Image is a resolved file
// path; empty means text only.
type Prompt struct {
	Text     string    `json:"text"`
	Image    string    `json:"image,omitempty"`
	Keyboard *Keyboard `json:"keyboard,omitempty"`
}

// Sender is implemented by the chat adapter. DeleteMessage is
// best-effort; callers ignore its error.
type Sender interface {
	// SendPrompt renders a question or level and returns the outbound
	// message id for later cleanup.
	SendPrompt(ctx context.Context, chatID int64, p Prompt) (int64, error)
	// EditKeyboard re-renders the keyboard of an already sent prompt
	// (multi-select toggle feedback).
	EditKeyboard(ctx context.Context, chatID, messageID int64, kb *Keyboard) error
	// SendText delivers a plain message (warnings, the final thank-you).
	SendText(ctx context.Context, chatID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}
