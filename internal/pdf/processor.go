// Package pdf wraps the external PDF-processing command. The command is an
// opaque collaborator: it receives an input path as its last argument,
// prints the result path on stdout, and signals failure with a non-zero
// exit code.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Processor invokes the configured external command with a timeout.
type Processor struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProcessor creates a Processor for the given command line. The command
// string is split on whitespace so an interpreter prefix like
// "python3 process_pdf.py" works.
func NewProcessor(command string, timeout time.Duration, logger *slog.Logger) (*Processor, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("pdf processor command is empty")
	}
	return &Processor{
		command: parts,
		timeout: timeout,
		logger:  logger.With("component", "pdf_processor"),
	}, nil
}

// Process runs the external command on inputPath and returns the result path
// it printed. The subprocess is killed when the timeout elapses.
func (p *Processor) Process(ctx context.Context, inputPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string{}, p.command[1:]...), inputPath)
	cmd := exec.CommandContext(ctx, p.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("pdf processor timed out after %s: %w", p.timeout, ctx.Err())
		}
		return "", fmt.Errorf("pdf processor failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	outputPath := lastLine(stdout.String())
	if outputPath == "" {
		return "", fmt.Errorf("pdf processor printed no result path")
	}

	p.logger.Info("PDF processed", "input", inputPath, "output", outputPath, "duration", time.Since(startTime))
	return outputPath, nil
}

// IsPDF reports whether data actually is a PDF, regardless of the declared
// attachment type. Incoming attachments lie about their MIME type often
// enough that content sniffing is worth the read.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
