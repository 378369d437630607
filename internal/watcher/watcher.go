// Package watcher implements the incoming-PDF hook: documents posted to a
// watched group are downloaded, verified, run through the external PDF
// processor and forwarded to a configured chat.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/edgard/wagate/internal/errors"
	"github.com/edgard/wagate/internal/media"
	"github.com/edgard/wagate/internal/messenger"
	"github.com/edgard/wagate/internal/pdf"
	"github.com/edgard/wagate/internal/whatsapp"
)

// Summarizer produces the forward caption from the original document.
type Summarizer interface {
	SummarizeDocument(ctx context.Context, fileName string, data []byte) (string, error)
}

// watchConfig is the active watch target pair. Replaced wholesale on every
// Configure call; nil means no watching.
type watchConfig struct {
	group     whatsapp.Chat
	forwardTo whatsapp.Chat
}

// Watcher holds the singleton watch configuration and reacts to incoming
// messages. Configure and HandleMessage may run on different goroutines.
type Watcher struct {
	messenger    *messenger.Messenger
	processor    *pdf.Processor
	summarizer   Summarizer
	ledger       *media.Ledger
	downloadsDir string
	logger       *slog.Logger

	mu  sync.Mutex
	cfg *watchConfig
}

// New creates a Watcher. summarizer may be nil; forwarded files then carry a
// plain caption instead of an AI summary.
func New(m *messenger.Messenger, processor *pdf.Processor, summarizer Summarizer, ledger *media.Ledger, downloadsDir string, logger *slog.Logger) *Watcher {
	return &Watcher{
		messenger:    m,
		processor:    processor,
		summarizer:   summarizer,
		ledger:       ledger,
		downloadsDir: downloadsDir,
		logger:       logger.With("component", "watcher"),
	}
}

// Configure resolves both chat queries and replaces the watch configuration.
// The watched chat must resolve to a group.
func (w *Watcher) Configure(ctx context.Context, groupQuery, forwardToQuery string) error {
	group, err := w.messenger.FindChat(ctx, groupQuery)
	if err != nil {
		return err
	}
	if !group.IsGroup {
		return apperrors.NotFound("Watched chat is not a group")
	}

	forwardTo, err := w.messenger.FindChat(ctx, forwardToQuery)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.cfg = &watchConfig{group: group, forwardTo: forwardTo}
	w.mu.Unlock()

	w.logger.Info("PDF watch configured",
		"group_id", group.ID, "group_name", group.Name,
		"forward_to_id", forwardTo.ID, "forward_to_name", forwardTo.Name)
	return nil
}

// Active reports whether a watch configuration is in place.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg != nil
}

func (w *Watcher) current() *watchConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// HandleMessage is the incoming-message hook registered with the chat client.
// Non-matching messages return immediately.
func (w *Watcher) HandleMessage(ctx context.Context, msg whatsapp.IncomingMessage) {
	cfg := w.current()
	if cfg == nil || msg.ChatID != cfg.group.ID || msg.Document == nil {
		return
	}

	if err := w.processDocument(ctx, cfg, msg); err != nil {
		w.logger.ErrorContext(ctx, "Failed to process watched document",
			"group_id", cfg.group.ID, "file", msg.Document.FileName, "error", err)
	}
}

func (w *Watcher) processDocument(ctx context.Context, cfg *watchConfig, msg whatsapp.IncomingMessage) error {
	doc := msg.Document
	if !looksLikePDF(doc) {
		w.logger.DebugContext(ctx, "Ignoring non-PDF document",
			"file", doc.FileName, "mime", doc.MIME)
		return nil
	}

	data, err := doc.Download(ctx)
	if err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}
	if !pdf.IsPDF(data) {
		w.logger.WarnContext(ctx, "Document content is not a PDF, skipping",
			"file", doc.FileName, "mime", doc.MIME)
		return nil
	}

	inputPath, err := w.saveDownload(doc.FileName, data)
	if err != nil {
		return err
	}
	defer w.cleanup(inputPath)

	outputPath, err := w.processor.Process(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("pdf processing failed: %w", err)
	}
	if outputPath != inputPath {
		w.ledger.Add(outputPath)
		defer w.cleanup(outputPath)
	}

	caption := w.caption(ctx, doc.FileName, data, msg.PushName)
	if err := w.messenger.SendToChat(ctx, cfg.forwardTo, caption, outputPath); err != nil {
		return fmt.Errorf("failed to forward processed document: %w", err)
	}

	w.logger.InfoContext(ctx, "Processed document forwarded",
		"file", doc.FileName, "forward_to_id", cfg.forwardTo.ID)
	return nil
}

// caption builds the forward caption, preferring an AI summary of the
// original document when a summarizer is configured.
func (w *Watcher) caption(ctx context.Context, fileName string, data []byte, sender string) string {
	fallback := fmt.Sprintf("Processed %s", fileName)
	if sender != "" {
		fallback = fmt.Sprintf("Processed %s from %s", fileName, sender)
	}

	if w.summarizer == nil {
		return fallback
	}
	text, err := w.summarizer.SummarizeDocument(ctx, fileName, data)
	if err != nil {
		w.logger.WarnContext(ctx, "Document summarization failed, using fallback caption",
			"file", fileName, "error", err)
		return fallback
	}
	return text
}

// saveDownload writes the document into the downloads directory under a
// collision-safe name and registers it with the ledger.
func (w *Watcher) saveDownload(fileName string, data []byte) (string, error) {
	if err := os.MkdirAll(w.downloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create downloads directory: %w", err)
	}

	base := filepath.Base(fileName)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document.pdf"
	}
	path := filepath.Join(w.downloadsDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), base))

	w.ledger.Add(path)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.ledger.Remove(path)
		return "", fmt.Errorf("failed to write download: %w", err)
	}
	return path, nil
}

func (w *Watcher) cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("Failed to delete processed file", "path", path, "error", err)
		return
	}
	w.ledger.Remove(path)
}

func looksLikePDF(doc *whatsapp.Document) bool {
	if strings.EqualFold(doc.MIME, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}
