package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ConvertSpec is a codec/format configuration for one conversion step.
type ConvertSpec struct {
	VideoCodec string
	AudioCodec string
	Format     string
	ExtraArgs  []string
}

// Transcoder runs a single media conversion, producing outputPath from
// inputPath. Implementations must not leave a partial output behind on
// failure.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, spec ConvertSpec) error
}

// FFmpeg invokes the ffmpeg binary as a subprocess. Every run carries a
// timeout so a wedged encoder cannot stall the calling request forever.
type FFmpeg struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpeg creates a Transcoder backed by the ffmpeg binary at path.
func NewFFmpeg(path string, timeout time.Duration, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		path:    path,
		timeout: timeout,
		logger:  logger.With("component", "ffmpeg"),
	}
}

// Transcode implements Transcoder.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputPath string, spec ConvertSpec) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", inputPath}
	if spec.VideoCodec != "" {
		args = append(args, "-c:v", spec.VideoCodec)
	}
	if spec.AudioCodec != "" {
		args = append(args, "-c:a", spec.AudioCodec)
	}
	args = append(args, spec.ExtraArgs...)
	args = append(args, "-f", spec.Format, outputPath)

	f.logger.Debug("Running ffmpeg", "input", inputPath, "output", outputPath, "format", spec.Format)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, args...)
	cmd.Stderr = &stderr

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		// Discard whatever ffmpeg managed to write before failing.
		if rmErr := os.Remove(outputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			f.logger.Error("Failed to remove partial conversion output", "path", outputPath, "error", rmErr)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out after %s: %w", f.timeout, ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	f.logger.Info("Conversion finished", "input", inputPath, "output", outputPath, "duration", time.Since(startTime))
	return nil
}
