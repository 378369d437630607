// Package messenger composes chat resolution, media sanitization and the chat
// client into the send and group-membership operations exposed over HTTP.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/edgard/wagate/internal/database"
	apperrors "github.com/edgard/wagate/internal/errors"
	"github.com/edgard/wagate/internal/media"
	"github.com/edgard/wagate/internal/resolver"
	"github.com/edgard/wagate/internal/whatsapp"
)

// ParticipantInfo is a group member as reported to API callers. IsAdmin folds
// the client library's admin and super-admin flags into one.
type ParticipantInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// Messenger is the messaging façade.
type Messenger struct {
	client    whatsapp.Client
	sanitizer *media.Sanitizer
	store     database.Store
	logger    *slog.Logger
}

// New creates a Messenger. store may be nil to disable send history.
func New(client whatsapp.Client, sanitizer *media.Sanitizer, store database.Store, logger *slog.Logger) *Messenger {
	return &Messenger{
		client:    client,
		sanitizer: sanitizer,
		store:     store,
		logger:    logger.With("component", "messenger"),
	}
}

// FindChat resolves a free-form chat query against a fresh chat snapshot.
func (m *Messenger) FindChat(ctx context.Context, query string) (whatsapp.Chat, error) {
	chat, found, err := resolver.Resolve(ctx, m.client, query)
	if err != nil {
		return whatsapp.Chat{}, fmt.Errorf("failed to resolve chat: %w", err)
	}
	if !found {
		return whatsapp.Chat{}, apperrors.NotFound("Chat not found")
	}
	return chat, nil
}

// Send resolves target and dispatches text, optionally with the media file at
// filePath. A file that is missing or rejected by sanitization degrades to a
// text-only send so the message body is never dropped; a dispatch failure is
// surfaced to the caller. Temp files produced by sanitization are reclaimed on
// every exit path.
func (m *Messenger) Send(ctx context.Context, target, text, filePath string) (whatsapp.Chat, error) {
	chat, err := m.FindChat(ctx, target)
	if err != nil {
		return whatsapp.Chat{}, err
	}
	return chat, m.SendToChat(ctx, chat, text, filePath)
}

// SendToChat dispatches to an already-resolved chat. The watcher uses this
// directly to avoid re-resolving its configured forward target.
func (m *Messenger) SendToChat(ctx context.Context, chat whatsapp.Chat, text, filePath string) error {
	if filePath != "" {
		if _, err := os.Stat(filePath); err != nil {
			m.logger.WarnContext(ctx, "Attached file not accessible, sending text only",
				"chat_id", chat.ID, "file", filePath, "error", err)
		} else {
			return m.sendMedia(ctx, chat, text, filePath)
		}
	}

	if err := m.sendText(ctx, chat, text); err != nil {
		return err
	}
	m.record(ctx, chat, text, "", "")
	return nil
}

func (m *Messenger) sendMedia(ctx context.Context, chat whatsapp.Chat, caption, filePath string) error {
	artifact, err := m.sanitizer.Sanitize(ctx, filePath)
	if err != nil {
		if caption == "" {
			return err
		}
		m.logger.WarnContext(ctx, "Media rejected, falling back to text send",
			"chat_id", chat.ID, "file", filePath, "error", err)
		if sendErr := m.sendText(ctx, chat, caption); sendErr != nil {
			return sendErr
		}
		m.record(ctx, chat, caption, "", "")
		return nil
	}
	defer artifact.Release()

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		return apperrors.DispatchFailed("failed to read media file", err)
	}

	payload := whatsapp.Media{
		Data:       data,
		MIME:       artifact.MIME,
		FileName:   filepath.Base(artifact.Path),
		Caption:    caption,
		AsDocument: artifact.MIME == "application/pdf",
	}
	if err := m.client.SendMedia(ctx, chat.ID, payload); err != nil {
		return apperrors.DispatchFailed("failed to send media message", err)
	}

	m.logger.InfoContext(ctx, "Media message sent",
		"chat_id", chat.ID, "mime", artifact.MIME, "size_bytes", len(data))
	m.record(ctx, chat, caption, artifact.MIME, payload.FileName)
	return nil
}

func (m *Messenger) sendText(ctx context.Context, chat whatsapp.Chat, body string) error {
	if err := m.client.SendText(ctx, chat.ID, body); err != nil {
		return apperrors.DispatchFailed("failed to send message", err)
	}
	m.logger.InfoContext(ctx, "Text message sent", "chat_id", chat.ID)
	return nil
}

// record persists a send-history row. History failures never fail the send.
func (m *Messenger) record(ctx context.Context, chat whatsapp.Chat, body, mime, fileName string) {
	if m.store == nil {
		return
	}
	msg := &database.SentMessage{
		ChatID:    chat.ID,
		ChatName:  chat.Name,
		Body:      body,
		MediaMIME: mime,
		MediaName: fileName,
	}
	if err := m.store.RecordSentMessage(ctx, msg); err != nil {
		m.logger.WarnContext(ctx, "Failed to record sent message", "chat_id", chat.ID, "error", err)
	}
}

// ListParticipants resolves groupQuery and returns the group's live
// membership. A chat that resolves to a direct conversation is treated as
// not found.
func (m *Messenger) ListParticipants(ctx context.Context, groupQuery string) ([]ParticipantInfo, error) {
	participants, _, err := m.groupMembers(ctx, groupQuery)
	if err != nil {
		return nil, err
	}

	infos := make([]ParticipantInfo, 0, len(participants))
	for _, p := range participants {
		infos = append(infos, ParticipantInfo{
			ID:      p.ID,
			Name:    p.Name,
			IsAdmin: p.IsAdmin || p.IsSuperAdmin,
		})
	}
	return infos, nil
}

// RemoveParticipant removes one member from a group. The caller's own
// membership must carry the admin or super-admin flag.
func (m *Messenger) RemoveParticipant(ctx context.Context, groupQuery, participantID string) ([]string, error) {
	participants, chat, err := m.groupMembers(ctx, groupQuery)
	if err != nil {
		return nil, err
	}
	if err := m.requireAdmin(participants); err != nil {
		return nil, err
	}

	if err := m.client.RemoveParticipants(ctx, chat.ID, []string{participantID}); err != nil {
		return nil, apperrors.DispatchFailed("failed to remove participant", err)
	}
	m.logger.InfoContext(ctx, "Participant removed", "group_id", chat.ID, "participant_id", participantID)
	return []string{participantID}, nil
}

// RemoveAllParticipants removes every member of a group except the caller.
func (m *Messenger) RemoveAllParticipants(ctx context.Context, groupQuery string) ([]string, error) {
	participants, chat, err := m.groupMembers(ctx, groupQuery)
	if err != nil {
		return nil, err
	}
	if err := m.requireAdmin(participants); err != nil {
		return nil, err
	}

	selfID := m.client.SelfID()
	targets := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.ID == selfID {
			continue
		}
		targets = append(targets, p.ID)
	}
	if len(targets) == 0 {
		return []string{}, nil
	}

	if err := m.client.RemoveParticipants(ctx, chat.ID, targets); err != nil {
		return nil, apperrors.DispatchFailed("failed to remove participants", err)
	}
	m.logger.InfoContext(ctx, "All participants removed", "group_id", chat.ID, "count", len(targets))
	return targets, nil
}

func (m *Messenger) groupMembers(ctx context.Context, groupQuery string) ([]whatsapp.Participant, whatsapp.Chat, error) {
	chat, err := m.FindChat(ctx, groupQuery)
	if err != nil {
		return nil, whatsapp.Chat{}, err
	}
	if !chat.IsGroup {
		return nil, whatsapp.Chat{}, apperrors.NotFound("Chat is not a group")
	}

	participants, err := m.client.GroupParticipants(ctx, chat.ID)
	if err != nil {
		return nil, whatsapp.Chat{}, apperrors.DispatchFailed("failed to fetch group participants", err)
	}
	return participants, chat, nil
}

// requireAdmin checks the caller's own membership record for admin rights.
func (m *Messenger) requireAdmin(participants []whatsapp.Participant) error {
	selfID := m.client.SelfID()
	for _, p := range participants {
		if p.ID == selfID {
			if p.IsAdmin || p.IsSuperAdmin {
				return nil
			}
			break
		}
	}
	return apperrors.PermissionDenied("Not a group admin")
}
