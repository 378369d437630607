package whatsapp

import "context"

// Chat is an addressable conversation, direct or group, as reported by the
// chat client. The ID is the serialized JID and is stable per conversation.
type Chat struct {
	ID      string
	Name    string
	IsGroup bool
	// Phone is the numeric user portion of the JID. Empty for groups.
	Phone string
}

// Participant is a member of a group chat. It only exists inside a live
// membership snapshot and is never cached across requests.
type Participant struct {
	ID           string
	Name         string
	IsAdmin      bool
	IsSuperAdmin bool
}

// Media is a validated, send-ready payload for a captioned media message.
type Media struct {
	Data       []byte
	MIME       string
	FileName   string
	Caption    string
	AsDocument bool
}

// Document describes a document attachment on an incoming message. Download
// fetches and decrypts the payload from the transport.
type Document struct {
	FileName string
	MIME     string
	Size     uint64
	Download func(ctx context.Context) ([]byte, error)
}

// IncomingMessage is the subset of an incoming chat message the gateway
// reacts to.
type IncomingMessage struct {
	ChatID   string
	SenderID string
	IsGroup  bool
	PushName string
	Text     string
	Document *Document
}

// MessageHandler receives every incoming message event.
type MessageHandler func(ctx context.Context, msg IncomingMessage)
