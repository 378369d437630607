package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// MeowClient implements Client on top of whatsmeow with a SQLite-backed
// session store.
type MeowClient struct {
	cli       *whatsmeow.Client
	container *sqlstore.Container
	logger    *slog.Logger
	readiness *Readiness

	mu       sync.Mutex
	handlers []MessageHandler
}

// NewMeowClient opens (or creates) the session store at sessionDB and builds
// a disconnected client. Call Connect to go online.
func NewMeowClient(ctx context.Context, sessionDB string, logger *slog.Logger) (*MeowClient, error) {
	if dir := filepath.Dir(sessionDB); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	dbLog := waLog.Stdout("whatsmeow-db", "ERROR", true)
	container, err := sqlstore.New(ctx, "sqlite", "file:"+sessionDB+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}

	m := &MeowClient{
		cli:       whatsmeow.NewClient(device, waLog.Stdout("whatsmeow", "ERROR", true)),
		container: container,
		logger:    logger.With("component", "whatsapp_client"),
		readiness: NewReadiness(),
	}
	m.cli.AddEventHandler(m.handleEvent)

	return m, nil
}

// Connect brings the client online. With no stored session it starts QR
// pairing and prints the code to the terminal; the readiness signal fires
// once the connection is fully established.
func (m *MeowClient) Connect(ctx context.Context) error {
	if m.cli.Store.ID == nil {
		m.logger.Info("No stored session, starting QR pairing")

		// GetQRChannel must be called before Connect on an unpaired client.
		qrChan, err := m.cli.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to open QR channel: %w", err)
		}
		if err := m.cli.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		go func() {
			for evt := range qrChan {
				switch evt.Event {
				case "code":
					m.logger.Info("Scan the QR code to pair")
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
				case "success":
					m.logger.Info("Pairing successful")
					return
				default:
					m.logger.Warn("QR pairing event", "event", evt.Event)
				}
			}
		}()

		return nil
	}

	m.logger.Info("Stored session found, connecting", "self", m.SelfID())
	if err := m.cli.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Close disconnects from the transport. The session store stays on disk.
func (m *MeowClient) Close() {
	m.cli.Disconnect()
	m.logger.Info("WhatsApp client disconnected")
}

// Ready implements Client.
func (m *MeowClient) Ready() bool {
	return m.readiness.Ready()
}

// SelfID implements Client. It returns the own JID without the device part
// so it compares equal to participant identifiers.
func (m *MeowClient) SelfID() string {
	if m.cli.Store.ID == nil {
		return ""
	}
	return m.cli.Store.ID.ToNonAD().String()
}

// OnMessage implements Client.
func (m *MeowClient) OnMessage(handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Chats implements Client: joined groups first, then stored contacts. The
// snapshot is fetched fresh on every call.
func (m *MeowClient) Chats(ctx context.Context) ([]Chat, error) {
	groups, err := m.cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	contacts, err := m.cli.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	chats := make([]Chat, 0, len(groups)+len(contacts))
	for _, g := range groups {
		chats = append(chats, Chat{
			ID:      g.JID.String(),
			Name:    g.Name,
			IsGroup: true,
		})
	}
	for jid, info := range contacts {
		if jid.Server != types.DefaultUserServer {
			continue
		}
		chats = append(chats, Chat{
			ID:    jid.String(),
			Name:  contactName(info),
			Phone: jid.User,
		})
	}

	return chats, nil
}

// GroupParticipants implements Client. Display names come from the contact
// store when available.
func (m *MeowClient) GroupParticipants(ctx context.Context, groupID string) ([]Participant, error) {
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return nil, fmt.Errorf("invalid group id %q: %w", groupID, err)
	}

	info, err := m.cli.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("failed to get group info: %w", err)
	}

	participants := make([]Participant, 0, len(info.Participants))
	for _, p := range info.Participants {
		name := ""
		if contact, err := m.cli.Store.Contacts.GetContact(ctx, p.JID); err == nil {
			name = contactName(contact)
		}
		participants = append(participants, Participant{
			ID:           p.JID.ToNonAD().String(),
			Name:         name,
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}

	return participants, nil
}

// SendText implements Client.
func (m *MeowClient) SendText(ctx context.Context, chatID, body string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	_, err = m.cli.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)})
	if err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}
	return nil
}

// SendMedia implements Client. The payload is uploaded to the media servers
// and referenced from a typed message: video and audio inline, documents as
// file attachments.
func (m *MeowClient) SendMedia(ctx context.Context, chatID string, media Media) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	var msg *waE2E.Message
	switch {
	case media.AsDocument || media.MIME == "application/pdf":
		uploaded, err := m.cli.Upload(ctx, media.Data, whatsmeow.MediaDocument)
		if err != nil {
			return fmt.Errorf("document upload failed: %w", err)
		}
		docMsg := &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(media.Data))),
			Mimetype:      proto.String(media.MIME),
			FileName:      proto.String(media.FileName),
		}
		if media.Caption != "" {
			docMsg.Caption = proto.String(media.Caption)
		}
		msg = &waE2E.Message{DocumentMessage: docMsg}

	case strings.HasPrefix(media.MIME, "video/"):
		uploaded, err := m.cli.Upload(ctx, media.Data, whatsmeow.MediaVideo)
		if err != nil {
			return fmt.Errorf("video upload failed: %w", err)
		}
		videoMsg := &waE2E.VideoMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(media.Data))),
			Mimetype:      proto.String(media.MIME),
		}
		if media.Caption != "" {
			videoMsg.Caption = proto.String(media.Caption)
		}
		msg = &waE2E.Message{VideoMessage: videoMsg}

	case strings.HasPrefix(media.MIME, "audio/"):
		uploaded, err := m.cli.Upload(ctx, media.Data, whatsmeow.MediaAudio)
		if err != nil {
			return fmt.Errorf("audio upload failed: %w", err)
		}
		// Audio messages have no caption on the wire.
		msg = &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(media.Data))),
			Mimetype:      proto.String(media.MIME),
		}}

	default:
		return fmt.Errorf("no message type for MIME %q", media.MIME)
	}

	if _, err := m.cli.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("failed to send media message: %w", err)
	}
	return nil
}

// RemoveParticipants implements Client.
func (m *MeowClient) RemoveParticipants(ctx context.Context, groupID string, participantIDs []string) error {
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return fmt.Errorf("invalid group id %q: %w", groupID, err)
	}

	members := make([]types.JID, 0, len(participantIDs))
	for _, id := range participantIDs {
		member, err := types.ParseJID(id)
		if err != nil {
			return fmt.Errorf("invalid participant id %q: %w", id, err)
		}
		members = append(members, member)
	}

	if _, err := m.cli.UpdateGroupParticipants(ctx, jid, members, whatsmeow.ParticipantChangeRemove); err != nil {
		return fmt.Errorf("failed to remove participants: %w", err)
	}
	return nil
}

func (m *MeowClient) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		m.logger.Info("WhatsApp connection established", "self", m.SelfID())
		m.readiness.Signal()

	case *events.LoggedOut:
		m.logger.Warn("Device logged out, re-pairing required", "reason", v.Reason)

	case *events.Message:
		m.dispatchMessage(v)
	}
}

func (m *MeowClient) dispatchMessage(v *events.Message) {
	msg := IncomingMessage{
		ChatID:   v.Info.Chat.String(),
		SenderID: v.Info.Sender.ToNonAD().String(),
		IsGroup:  v.Info.IsGroup,
		PushName: v.Info.PushName,
		Text:     v.Message.GetConversation(),
	}
	if msg.Text == "" {
		msg.Text = v.Message.GetExtendedTextMessage().GetText()
	}

	if doc := v.Message.GetDocumentMessage(); doc != nil {
		msg.Document = &Document{
			FileName: doc.GetFileName(),
			MIME:     doc.GetMimetype(),
			Size:     doc.GetFileLength(),
			Download: func(ctx context.Context) ([]byte, error) {
				return m.cli.Download(ctx, doc)
			},
		}
	}

	m.mu.Lock()
	handlers := make([]MessageHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	ctx := context.Background()
	for _, handler := range handlers {
		handler(ctx, msg)
	}
}

func contactName(info types.ContactInfo) string {
	if info.FullName != "" {
		return info.FullName
	}
	return info.PushName
}
