// Package whatsapp wraps the whatsmeow chat-client library behind a narrow
// interface. The wire protocol, session persistence and media crypto all live
// in whatsmeow; this package only translates between its types and the
// gateway's domain types.
package whatsapp

import "context"

// Client is the chat-client capability consumed by the rest of the gateway.
type Client interface {
	// Ready reports whether the client has completed its initial connection.
	Ready() bool

	// SelfID returns the client's own serialized identifier.
	SelfID() string

	// Chats returns a fresh snapshot of all known chats: joined groups
	// followed by stored contacts. Order beyond that is not guaranteed.
	Chats(ctx context.Context) ([]Chat, error)

	// GroupParticipants returns the live membership snapshot of a group.
	GroupParticipants(ctx context.Context, groupID string) ([]Participant, error)

	// SendText dispatches a text-only message.
	SendText(ctx context.Context, chatID, body string) error

	// SendMedia uploads and dispatches a captioned media message.
	SendMedia(ctx context.Context, chatID string, media Media) error

	// RemoveParticipants removes the given members from a group.
	RemoveParticipants(ctx context.Context, groupID string, participantIDs []string) error

	// OnMessage registers a handler for incoming message events. Handlers
	// run sequentially on the event goroutine.
	OnMessage(handler MessageHandler)
}
