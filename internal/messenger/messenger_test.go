package messenger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/edgard/wagate/internal/database"
	apperrors "github.com/edgard/wagate/internal/errors"
	"github.com/edgard/wagate/internal/media"
	"github.com/edgard/wagate/internal/messenger"
	"github.com/edgard/wagate/internal/whatsapp"
)

type sentText struct {
	chatID string
	body   string
}

type sentMedia struct {
	chatID string
	media  whatsapp.Media
}

type fakeClient struct {
	selfID       string
	chats        []whatsapp.Chat
	participants map[string][]whatsapp.Participant

	texts       []sentText
	medias      []sentMedia
	removals    [][]string
	sendTextErr error
	mediaErr    error
	removeErr   error
}

func (f *fakeClient) Ready() bool    { return true }
func (f *fakeClient) SelfID() string { return f.selfID }

func (f *fakeClient) Chats(context.Context) ([]whatsapp.Chat, error) {
	return f.chats, nil
}

func (f *fakeClient) GroupParticipants(_ context.Context, groupID string) ([]whatsapp.Participant, error) {
	return f.participants[groupID], nil
}

func (f *fakeClient) SendText(_ context.Context, chatID, body string) error {
	if f.sendTextErr != nil {
		return f.sendTextErr
	}
	f.texts = append(f.texts, sentText{chatID: chatID, body: body})
	return nil
}

func (f *fakeClient) SendMedia(_ context.Context, chatID string, m whatsapp.Media) error {
	if f.mediaErr != nil {
		return f.mediaErr
	}
	f.medias = append(f.medias, sentMedia{chatID: chatID, media: m})
	return nil
}

func (f *fakeClient) RemoveParticipants(_ context.Context, _ string, ids []string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removals = append(f.removals, ids)
	return nil
}

func (f *fakeClient) OnMessage(whatsapp.MessageHandler) {}

type fakeStore struct {
	recorded []database.SentMessage
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) RecordSentMessage(_ context.Context, msg *database.SentMessage) error {
	f.recorded = append(f.recorded, *msg)
	return nil
}

func (f *fakeStore) RecentMessages(context.Context, string, int) ([]database.SentMessage, error) {
	return f.recorded, nil
}

type transcodeFunc func(ctx context.Context, inputPath, outputPath string, spec media.ConvertSpec) error

func (f transcodeFunc) Transcode(ctx context.Context, inputPath, outputPath string, spec media.ConvertSpec) error {
	return f(ctx, inputPath, outputPath, spec)
}

func copyTranscoder(t *testing.T) media.Transcoder {
	t.Helper()
	return transcodeFunc(func(_ context.Context, _, outputPath string, _ media.ConvertSpec) error {
		return os.WriteFile(outputPath, []byte("converted"), 0o644)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newMessenger(t *testing.T, client *fakeClient, store database.Store) *messenger.Messenger {
	t.Helper()
	logger := discardLogger()
	sanitizer := media.NewSanitizer(copyTranscoder(t), media.NewLedger(logger), logger)
	return messenger.New(client, sanitizer, store, logger)
}

func groupClient(selfAdmin bool) *fakeClient {
	self := whatsapp.Participant{ID: "me@s.whatsapp.net", Name: "Gateway", IsAdmin: selfAdmin}
	return &fakeClient{
		selfID: "me@s.whatsapp.net",
		chats: []whatsapp.Chat{
			{ID: "123@g.us", Name: "Ops", IsGroup: true},
			{ID: "555@s.whatsapp.net", Name: "Alice", Phone: "555"},
		},
		participants: map[string][]whatsapp.Participant{
			"123@g.us": {
				self,
				{ID: "1@s.whatsapp.net", Name: "Alice", IsAdmin: true},
				{ID: "2@s.whatsapp.net", Name: "Bob", IsSuperAdmin: true},
				{ID: "3@s.whatsapp.net", Name: "Carol"},
			},
		},
	}
}

func TestSendTextOnly(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	store := &fakeStore{}
	m := newMessenger(t, client, store)

	chat, err := m.Send(context.Background(), "Ops", "hello", "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if chat.ID != "123@g.us" {
		t.Fatalf("resolved chat = %q, want 123@g.us", chat.ID)
	}
	if len(client.texts) != 1 || client.texts[0].body != "hello" {
		t.Fatalf("sent texts = %+v", client.texts)
	}
	if len(store.recorded) != 1 || store.recorded[0].ChatID != "123@g.us" {
		t.Fatalf("recorded = %+v", store.recorded)
	}
}

func TestSendUnknownTargetNotFound(t *testing.T) {
	t.Parallel()

	m := newMessenger(t, groupClient(false), nil)

	_, err := m.Send(context.Background(), "nobody", "hi", "")
	if apperrors.Code(err) != apperrors.CodeNotFound {
		t.Fatalf("error code = %q, want NOT_FOUND", apperrors.Code(err))
	}
}

func TestSendVideoConvertedAndReclaimed(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	m := newMessenger(t, client, nil)
	dir := t.TempDir()
	input := writeFile(t, dir, "clip.webm", []byte("webm"))

	_, err := m.Send(context.Background(), "Ops", "hi", input)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(client.medias) != 1 {
		t.Fatalf("media sends = %d, want 1", len(client.medias))
	}
	sent := client.medias[0].media
	if sent.MIME != "video/mp4" || sent.Caption != "hi" || sent.AsDocument {
		t.Fatalf("sent media = %+v", sent)
	}

	converted := filepath.Join(dir, "clip.mp4")
	if _, err := os.Stat(converted); !os.IsNotExist(err) {
		t.Fatalf("converted temp file survived the send: %v", err)
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("original input was deleted: %v", err)
	}
}

func TestSendPDFAsDocument(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	m := newMessenger(t, client, nil)
	input := writeFile(t, t.TempDir(), "report.pdf", []byte("%PDF-1.4"))

	if _, err := m.Send(context.Background(), "Ops", "weekly report", input); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.medias) != 1 {
		t.Fatalf("media sends = %d, want 1", len(client.medias))
	}
	sent := client.medias[0].media
	if !sent.AsDocument || sent.MIME != "application/pdf" || sent.FileName != "report.pdf" {
		t.Fatalf("sent media = %+v", sent)
	}
}

func TestSendRejectedFileFallsBackToText(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	m := newMessenger(t, client, nil)
	input := writeFile(t, t.TempDir(), "notes.txt", []byte("plain text"))

	if _, err := m.Send(context.Background(), "Ops", "see attached", input); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.medias) != 0 {
		t.Fatalf("media sends = %d, want 0", len(client.medias))
	}
	if len(client.texts) != 1 || client.texts[0].body != "see attached" {
		t.Fatalf("sent texts = %+v", client.texts)
	}
}

func TestSendRejectedFileWithoutTextSurfacesError(t *testing.T) {
	t.Parallel()

	m := newMessenger(t, groupClient(false), nil)
	input := writeFile(t, t.TempDir(), "notes.txt", []byte("plain text"))

	_, err := m.Send(context.Background(), "Ops", "", input)
	if apperrors.Code(err) != apperrors.CodeUnsupportedMedia {
		t.Fatalf("error code = %q, want UNSUPPORTED_MEDIA", apperrors.Code(err))
	}
}

func TestSendMediaDispatchFailureStillReclaimsTemp(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	client.mediaErr = errors.New("upload refused")
	m := newMessenger(t, client, nil)
	dir := t.TempDir()
	input := writeFile(t, dir, "clip.webm", []byte("webm"))

	_, err := m.Send(context.Background(), "Ops", "hi", input)
	if apperrors.Code(err) != apperrors.CodeDispatchFailed {
		t.Fatalf("error code = %q, want DISPATCH_FAILED", apperrors.Code(err))
	}
	if _, statErr := os.Stat(filepath.Join(dir, "clip.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("converted temp file survived the failed send: %v", statErr)
	}
}

func TestSendMissingFileFallsBackToText(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	m := newMessenger(t, client, nil)

	if _, err := m.Send(context.Background(), "Ops", "hi", "/nonexistent/file.mp4"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.texts) != 1 {
		t.Fatalf("sent texts = %+v", client.texts)
	}
}

func TestListParticipants(t *testing.T) {
	t.Parallel()

	m := newMessenger(t, groupClient(true), nil)

	infos, err := m.ListParticipants(context.Background(), "Ops")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(infos) != 4 {
		t.Fatalf("participants = %d, want 4", len(infos))
	}

	byID := make(map[string]messenger.ParticipantInfo, len(infos))
	for _, p := range infos {
		byID[p.ID] = p
	}
	if !byID["1@s.whatsapp.net"].IsAdmin {
		t.Error("admin participant not flagged as admin")
	}
	if !byID["2@s.whatsapp.net"].IsAdmin {
		t.Error("super-admin participant not flagged as admin")
	}
	if byID["3@s.whatsapp.net"].IsAdmin {
		t.Error("plain participant flagged as admin")
	}
}

func TestListParticipantsOnDirectChatNotFound(t *testing.T) {
	t.Parallel()

	m := newMessenger(t, groupClient(true), nil)

	_, err := m.ListParticipants(context.Background(), "Alice")
	if apperrors.Code(err) != apperrors.CodeNotFound {
		t.Fatalf("error code = %q, want NOT_FOUND", apperrors.Code(err))
	}
}

func TestRemoveParticipantRequiresAdmin(t *testing.T) {
	t.Parallel()

	client := groupClient(false)
	m := newMessenger(t, client, nil)

	_, err := m.RemoveParticipant(context.Background(), "Ops", "3@s.whatsapp.net")
	if apperrors.Code(err) != apperrors.CodePermissionDenied {
		t.Fatalf("error code = %q, want PERMISSION_DENIED", apperrors.Code(err))
	}
	if len(client.removals) != 0 {
		t.Fatalf("removal calls = %d, want 0", len(client.removals))
	}
}

func TestRemoveParticipant(t *testing.T) {
	t.Parallel()

	client := groupClient(true)
	m := newMessenger(t, client, nil)

	removed, err := m.RemoveParticipant(context.Background(), "Ops", "3@s.whatsapp.net")
	if err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if len(removed) != 1 || removed[0] != "3@s.whatsapp.net" {
		t.Fatalf("removed = %v", removed)
	}
}

func TestRemoveAllParticipantsExcludesSelf(t *testing.T) {
	t.Parallel()

	client := groupClient(true)
	m := newMessenger(t, client, nil)

	removed, err := m.RemoveAllParticipants(context.Background(), "Ops")
	if err != nil {
		t.Fatalf("RemoveAllParticipants: %v", err)
	}
	if len(removed) != 3 {
		t.Fatalf("removed = %v, want 3 entries", removed)
	}
	for _, id := range removed {
		if id == client.selfID {
			t.Fatal("caller's own ID present in removal list")
		}
	}
	if len(client.removals) != 1 {
		t.Fatalf("removal calls = %d, want 1", len(client.removals))
	}
}
