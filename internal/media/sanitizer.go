// Package media implements the outbound media pipeline: MIME detection from
// the file name, conversion of incompatible containers via an external
// ffmpeg subprocess, allow-list validation, and the 64 MiB transport ceiling.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/edgard/wagate/internal/errors"
)

// MaxFileSize is the transport's media payload ceiling.
const MaxFileSize = 64 * 1024 * 1024

// Allow-lists checked by exact match after conversion and normalization.
var (
	allowedVideo = map[string]bool{
		"video/mp4":       true,
		"application/mp4": true,
		"video/3gp":       true,
		"video/3gpp":      true,
	}
	allowedAudio = map[string]bool{
		"audio/mpeg":  true,
		"audio/mp3":   true,
		"audio/aac":   true,
		"audio/x-aac": true,
		"audio/mp4":   true,
		"audio/3gpp":  true,
		"audio/3gpp2": true,
		"audio/ogg":   true,
		"audio/opus":  true,
	}
	allowedDoc = map[string]bool{
		"application/pdf": true,
	}
)

// Extensions the transport cares about that the platform MIME database does
// not always know.
var extensionMIME = map[string]string{
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".3gp":  "video/3gpp",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".pdf":  "application/pdf",
}

// wavVariants are the raw waveform MIME types that get re-encoded to mp3.
var wavVariants = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
}

// Artifact is a validated, send-ready media file plus its cleanup
// obligations. Release deletes the temp files exactly once.
type Artifact struct {
	Path string
	MIME string

	tempFiles []string
	ledger    *Ledger
	logger    *slog.Logger
	release   sync.Once
}

// TempFiles returns the intermediate files created while producing the
// artifact.
func (a *Artifact) TempFiles() []string {
	return a.tempFiles
}

// Release deletes every temp file that still exists and unregisters it from
// the ledger. Deletion errors are logged, never raised. Safe to call more
// than once; only the first call does work.
func (a *Artifact) Release() {
	a.release.Do(func() {
		removeTempFiles(a.logger, a.ledger, a.tempFiles)
	})
}

func removeTempFiles(logger *slog.Logger, ledger *Ledger, paths []string) {
	for _, path := range paths {
		if ledger != nil {
			ledger.Remove(path)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Error("Failed to delete temp file", "path", path, "error", err)
			continue
		}
		logger.Debug("Deleted temp file", "path", path)
	}
}

// Sanitizer inspects, converts and validates outbound media files.
type Sanitizer struct {
	transcoder Transcoder
	ledger     *Ledger
	logger     *slog.Logger
}

// NewSanitizer creates a Sanitizer using the given transcoder for the
// conversion steps and registering conversion outputs with the ledger.
func NewSanitizer(transcoder Transcoder, ledger *Ledger, logger *slog.Logger) *Sanitizer {
	return &Sanitizer{
		transcoder: transcoder,
		ledger:     ledger,
		logger:     logger.With("component", "sanitizer"),
	}
}

// Sanitize validates filePath and returns a send-ready artifact, converting
// web-native video to mp4 and raw waveform audio to mp3 on the way. The
// original input file is never deleted; every intermediate the pipeline
// creates is owned by the returned artifact. Rejections carry an application
// error code; any intermediates already produced are reclaimed before the
// error is returned.
func (s *Sanitizer) Sanitize(ctx context.Context, filePath string) (*Artifact, error) {
	mimeType := MIMEFromPath(filePath)
	if mimeType == "" {
		return nil, errors.UnsupportedMedia(fmt.Sprintf("unknown media type for %q", filepath.Base(filePath)))
	}

	file := filePath
	var tempFiles []string

	fail := func(err error) (*Artifact, error) {
		removeTempFiles(s.logger, s.ledger, tempFiles)
		return nil, err
	}

	if mimeType == "video/webm" {
		converted, err := s.convert(ctx, file, ".mp4", ConvertSpec{
			VideoCodec: "libx264",
			AudioCodec: "aac",
			Format:     "mp4",
			ExtraArgs:  []string{"-movflags", "+faststart", "-pix_fmt", "yuv420p"},
		})
		if err != nil {
			s.logger.Error("WebM to MP4 conversion failed", "path", file, "error", err)
			return fail(errors.ConversionFailed("video conversion failed", err))
		}
		tempFiles = append(tempFiles, converted)
		file = converted
		mimeType = "video/mp4"
	}

	if wavVariants[mimeType] {
		converted, err := s.convert(ctx, file, ".mp3", ConvertSpec{
			AudioCodec: "libmp3lame",
			Format:     "mp3",
		})
		if err != nil {
			s.logger.Error("WAV to MP3 conversion failed", "path", file, "error", err)
			return fail(errors.ConversionFailed("audio conversion failed", err))
		}
		tempFiles = append(tempFiles, converted)
		file = converted
		mimeType = "audio/mpeg"
	}

	if mimeType == "application/mp4" {
		mimeType = "video/mp4"
	}

	if !allowed(mimeType) {
		return fail(errors.UnsupportedMedia(fmt.Sprintf("media type %s is not allowed", mimeType)))
	}

	info, err := os.Stat(file)
	if err != nil {
		return fail(errors.UnsupportedMedia(fmt.Sprintf("cannot stat media file %q", filepath.Base(file))))
	}
	if info.Size() > MaxFileSize {
		s.logger.Warn("File too large for transport",
			"path", file,
			"size_bytes", info.Size(),
			"limit_bytes", int64(MaxFileSize))
		return fail(errors.UnsupportedMedia(fmt.Sprintf("file exceeds %d MB limit", MaxFileSize/(1024*1024))))
	}

	return &Artifact{
		Path:      file,
		MIME:      mimeType,
		tempFiles: tempFiles,
		ledger:    s.ledger,
		logger:    s.logger,
	}, nil
}

// convert writes the converted file next to the input, keeping the base name
// and swapping the extension. The output path is registered with the ledger
// before the subprocess starts so a crash mid-conversion still gets swept.
func (s *Sanitizer) convert(ctx context.Context, inputPath, newExt string, spec ConvertSpec) (string, error) {
	outputPath := swapExtension(inputPath, newExt)
	s.ledger.Add(outputPath)

	if err := s.transcoder.Transcode(ctx, inputPath, outputPath, spec); err != nil {
		return "", err
	}
	return outputPath, nil
}

// MIMEFromPath resolves a MIME type from the file name alone. Returns ""
// when the extension is unknown.
func MIMEFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	if mt, ok := extensionMIME[ext]; ok {
		return mt
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return ""
	}
	// Strip parameters like "; charset=utf-8".
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

func allowed(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return allowedVideo[mimeType]
	case strings.HasPrefix(mimeType, "audio/"):
		return allowedAudio[mimeType]
	default:
		return allowedDoc[mimeType]
	}
}

func swapExtension(path, newExt string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}
