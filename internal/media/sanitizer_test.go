package media_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/edgard/wagate/internal/errors"
	"github.com/edgard/wagate/internal/media"
)

type fakeTranscoder struct {
	fail   bool
	calls  int
	output []byte
}

func (f *fakeTranscoder) Transcode(_ context.Context, _, outputPath string, _ media.ConvertSpec) error {
	f.calls++
	if f.fail {
		return errors.New("encoder exploded")
	}
	return os.WriteFile(outputPath, f.output, 0o644)
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

func newSanitizer(transcoder media.Transcoder) (*media.Sanitizer, *media.Ledger) {
	log := discardLogger()
	ledger := media.NewLedger(log)
	return media.NewSanitizer(transcoder, ledger, log), ledger
}

func TestSanitizeUnknownTypeRejected(t *testing.T) {
	t.Parallel()

	transcoder := &fakeTranscoder{}
	sanitizer, _ := newSanitizer(transcoder)

	path := writeFile(t, t.TempDir(), "mystery.xyz123", []byte("data"))

	_, err := sanitizer.Sanitize(context.Background(), path)
	if err == nil {
		t.Fatal("expected rejection for unknown type")
	}
	if code := apperrors.Code(err); code != apperrors.CodeUnsupportedMedia {
		t.Errorf("code = %s, want %s", code, apperrors.CodeUnsupportedMedia)
	}
	if transcoder.calls != 0 {
		t.Errorf("transcoder ran %d times for an unknown type", transcoder.calls)
	}
}

func TestSanitizeWebMConvertsToMP4(t *testing.T) {
	t.Parallel()

	transcoder := &fakeTranscoder{output: []byte("converted video")}
	sanitizer, _ := newSanitizer(transcoder)

	dir := t.TempDir()
	input := writeFile(t, dir, "clip.webm", []byte("webm bits"))

	artifact, err := sanitizer.Sanitize(context.Background(), input)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	defer artifact.Release()

	wantPath := filepath.Join(dir, "clip.mp4")
	if artifact.Path != wantPath {
		t.Errorf("artifact path = %s, want %s", artifact.Path, wantPath)
	}
	if artifact.MIME != "video/mp4" {
		t.Errorf("artifact MIME = %s, want video/mp4", artifact.MIME)
	}
	if len(artifact.TempFiles()) != 1 || artifact.TempFiles()[0] != wantPath {
		t.Errorf("temp files = %v, want [%s]", artifact.TempFiles(), wantPath)
	}
	if _, err := os.Stat(input); err != nil {
		t.Errorf("original input was deleted: %v", err)
	}
}

func TestSanitizeWAVConvertsToMP3(t *testing.T) {
	t.Parallel()

	transcoder := &fakeTranscoder{output: []byte("mp3 bits")}
	sanitizer, _ := newSanitizer(transcoder)

	dir := t.TempDir()
	input := writeFile(t, dir, "memo.wav", []byte("pcm bits"))

	artifact, err := sanitizer.Sanitize(context.Background(), input)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	defer artifact.Release()

	if artifact.MIME != "audio/mpeg" {
		t.Errorf("artifact MIME = %s, want audio/mpeg", artifact.MIME)
	}
	if filepath.Ext(artifact.Path) != ".mp3" {
		t.Errorf("artifact path = %s, want .mp3 extension", artifact.Path)
	}
	if _, err := os.Stat(input); err != nil {
		t.Errorf("original input was deleted: %v", err)
	}
}

func TestSanitizeConversionFailure(t *testing.T) {
	t.Parallel()

	transcoder := &fakeTranscoder{fail: true}
	sanitizer, _ := newSanitizer(transcoder)

	input := writeFile(t, t.TempDir(), "clip.webm", []byte("webm bits"))

	_, err := sanitizer.Sanitize(context.Background(), input)
	if err == nil {
		t.Fatal("expected conversion failure")
	}
	if code := apperrors.Code(err); code != apperrors.CodeConversionFailed {
		t.Errorf("code = %s, want %s", code, apperrors.CodeConversionFailed)
	}
}

func TestSanitizePassThroughMP4(t *testing.T) {
	t.Parallel()

	transcoder := &fakeTranscoder{}
	sanitizer, _ := newSanitizer(transcoder)

	input := writeFile(t, t.TempDir(), "clip.mp4", []byte("mp4 bits"))

	artifact, err := sanitizer.Sanitize(context.Background(), input)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	defer artifact.Release()

	if artifact.Path != input {
		t.Errorf("artifact path = %s, want the input path", artifact.Path)
	}
	if transcoder.calls != 0 {
		t.Errorf("transcoder ran %d times for a compatible container", transcoder.calls)
	}
	if len(artifact.TempFiles()) != 0 {
		t.Errorf("temp files = %v, want none", artifact.TempFiles())
	}
}

func TestSanitizeDisallowedTypeRejected(t *testing.T) {
	t.Parallel()

	sanitizer, _ := newSanitizer(&fakeTranscoder{})

	input := writeFile(t, t.TempDir(), "notes.txt", []byte("text"))

	_, err := sanitizer.Sanitize(context.Background(), input)
	if err == nil {
		t.Fatal("expected rejection for text/plain")
	}
	if code := apperrors.Code(err); code != apperrors.CodeUnsupportedMedia {
		t.Errorf("code = %s, want %s", code, apperrors.CodeUnsupportedMedia)
	}
}

func TestSanitizeOversizeRejected(t *testing.T) {
	t.Parallel()

	sanitizer, _ := newSanitizer(&fakeTranscoder{})

	dir := t.TempDir()
	path := filepath.Join(dir, "big.mp4")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	// Sparse file just over the ceiling.
	if err := f.Truncate(media.MaxFileSize + 1); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = sanitizer.Sanitize(context.Background(), path)
	if err == nil {
		t.Fatal("expected rejection for oversize file")
	}
	if code := apperrors.Code(err); code != apperrors.CodeUnsupportedMedia {
		t.Errorf("code = %s, want %s", code, apperrors.CodeUnsupportedMedia)
	}
}

func TestSanitizeOversizeAfterConversionCleansTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := writeFile(t, dir, "clip.webm", []byte("webm bits"))
	converted := filepath.Join(dir, "clip.mp4")

	// Transcoder that produces an oversize (sparse) output.
	oversizeTranscoder := transcodeFunc(func(_ context.Context, _, outputPath string, _ media.ConvertSpec) error {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		if err := f.Truncate(media.MaxFileSize + 1); err != nil {
			return err
		}
		return f.Close()
	})
	sanitizer, _ := newSanitizer(oversizeTranscoder)

	_, err := sanitizer.Sanitize(context.Background(), input)
	if err == nil {
		t.Fatal("expected rejection for oversize converted file")
	}
	if code := apperrors.Code(err); code != apperrors.CodeUnsupportedMedia {
		t.Errorf("code = %s, want %s", code, apperrors.CodeUnsupportedMedia)
	}
	if _, err := os.Stat(converted); !os.IsNotExist(err) {
		t.Errorf("oversize conversion output %s was not reclaimed", converted)
	}
}

type transcodeFunc func(ctx context.Context, inputPath, outputPath string, spec media.ConvertSpec) error

func (f transcodeFunc) Transcode(ctx context.Context, inputPath, outputPath string, spec media.ConvertSpec) error {
	return f(ctx, inputPath, outputPath, spec)
}

func TestArtifactReleaseDeletesOnce(t *testing.T) {
	t.Parallel()

	transcoder := &fakeTranscoder{output: []byte("converted")}
	sanitizer, _ := newSanitizer(transcoder)

	dir := t.TempDir()
	input := writeFile(t, dir, "clip.webm", []byte("webm bits"))

	artifact, err := sanitizer.Sanitize(context.Background(), input)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	artifact.Release()
	for _, tmp := range artifact.TempFiles() {
		if _, err := os.Stat(tmp); !os.IsNotExist(err) {
			t.Errorf("temp file %s still exists after release", tmp)
		}
	}

	// Second release is a no-op, not a crash.
	artifact.Release()
}
