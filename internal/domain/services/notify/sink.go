// Package notify is the boundary to the chat transport. The financial
// services treat it as best-effort: a delivery failure is logged by the
// caller and never fails the underlying transition.
package notify

import "context"

// Sink sends and edits chat messages. The core supplies only text and a
// message identifier; keyboards and menus belong to the bot front-end.
type Sink interface {
	// SendMessage sends an HTML-formatted message to the given chat
	SendMessage(ctx context.Context, chatID string, text string) error

	// EditCaption replaces the caption of a previously sent media
	// message and strips its inline buttons
	EditCaption(ctx context.Context, chatID string, messageID int, caption string) error
}
