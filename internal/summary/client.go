// Package summary implements document summarization through Google's Gemini
// API. Summaries caption forwarded PDFs; the feature is optional and the
// gateway runs without it when no API key is configured.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

const summaryPrompt = "Summarize the attached document in two or three plain sentences. " +
	"Mention the document type and its key points. Do not use markdown."

// Client defines the interface for document summarization.
type Client interface {
	SummarizeDocument(ctx context.Context, fileName string, data []byte) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	modelName   string
	timeout     time.Duration
}

// NewClient creates a new summarization client. The API key is required; the
// caller decides whether to run without summaries when none is configured.
func NewClient(ctx context.Context, apiKey, modelName string, timeout time.Duration, log *slog.Logger) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("summary API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("summary model name is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "summary_client")
	logger.Info("Summary client initialized", "model", modelName)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		modelName:   modelName,
		timeout:     timeout,
	}, nil
}

// SummarizeDocument generates a short plain-text summary of a PDF document.
func (c *sdkClient) SummarizeDocument(ctx context.Context, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("document data is required for summarization")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fmt.Sprintf("%s\n\nFile name: %s", summaryPrompt, fileName)),
			genai.NewPartFromBytes(data, "application/pdf"),
		}, genai.RoleUser),
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		c.log.ErrorContext(ctx, "Summary API call failed", "file", fileName, "error", err)
		return "", fmt.Errorf("document summarization failed: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Summary request blocked", "file", fileName, "reason", reasonMsg)
		return "", fmt.Errorf("summarization blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("summarization returned empty content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("summarization returned empty text")
	}
	return text, nil
}
