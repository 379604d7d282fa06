package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const compressionRatio = 0.7 // Compress first 70% by byte size

// conversation keeps the remote multi-turn context of one language
type conversation struct {
	advisor *Advisor
	system  *genai.Content

	mutex   sync.Mutex
	history []*genai.Content
}

func (a *Advisor) NewConversation(ctx context.Context, lang model.Language) (interfaces.Conversation, error) {
	system, err := renderPrompt("chat", map[string]any{"Language": lang.Name()})
	if err != nil {
		return nil, err
	}

	return &conversation{
		advisor: a,
		system:  genai.NewContentFromText(system, ""),
	}, nil
}

func (c *conversation) snapshot() []*genai.Content {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]*genai.Content{}, c.history...)
}

func (c *conversation) Stream(ctx context.Context, message string, onChunk func(text string)) error {
	ctx, cancel := context.WithTimeout(ctx, c.advisor.timeout)
	defer cancel()

	userContent := genai.NewContentFromText(message, genai.RoleUser)
	config := &genai.GenerateContentConfig{
		SystemInstruction: c.system,
	}

	compressed := false
	for {
		contents := append(c.snapshot(), userContent)

		var reply strings.Builder
		var streamErr error
		for resp, err := range c.advisor.gemini.GenerateContentStream(ctx, c.advisor.models.Chat, contents, config) {
			if err != nil {
				streamErr = err
				break
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			reply.WriteString(text)
			onChunk(text)
		}

		if streamErr != nil {
			// Retry once with a summarized history if the context overflowed before any output.
			if !compressed && reply.Len() == 0 && isTokenLimitError(streamErr) {
				logging.From(ctx).Info("conversation exceeds token limit, compressing history")
				if err := c.compress(ctx); err != nil {
					return model.Service(model.CodeAgriBotFailed, err, "failed to compress conversation")
				}
				compressed = true
				continue
			}
			return model.Service(model.CodeAgriBotFailed, streamErr, "chat stream failed")
		}

		c.mutex.Lock()
		c.history = append(c.history, userContent, genai.NewContentFromText(reply.String(), genai.RoleModel))
		c.mutex.Unlock()
		return nil
	}
}

func (c *conversation) compress(ctx context.Context) error {
	contents := c.snapshot()
	newContents, err := compressHistory(ctx, c.advisor, contents)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	// Turns completed while summarizing are kept after the summary.
	if len(c.history) >= len(contents) {
		newContents = append(newContents, c.history[len(contents):]...)
	}
	c.history = newContents
	return nil
}

// isTokenLimitError checks if the error is due to token limit exceeded
func isTokenLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	// Example: "The input token count (2500030) exceeds the maximum number of tokens allowed (1048576)."
	return apiErr.Code == 400 &&
		apiErr.Status == "INVALID_ARGUMENT" &&
		strings.HasPrefix(apiErr.Message, "The input token count (") &&
		strings.Contains(apiErr.Message, ") exceeds the maximum number of tokens allowed (")
}

// contentSize calculates the byte size of a content by JSON marshaling
func contentSize(content *genai.Content) int {
	data, err := json.Marshal(content)
	if err != nil {
		return 0
	}
	return len(data)
}

// compressHistory replaces the oldest 70% (by bytes) of contents with a summary
func compressHistory(ctx context.Context, a *Advisor, contents []*genai.Content) ([]*genai.Content, error) {
	if len(contents) == 0 {
		return nil, goerr.New("history is empty")
	}

	totalBytes := 0
	byteSizes := make([]int, len(contents))
	for i, content := range contents {
		byteSizes[i] = contentSize(content)
		totalBytes += byteSizes[i]
	}
	compressThreshold := int(float64(totalBytes) * compressionRatio)

	cumulativeBytes := 0
	compressIndex := 0
	for i, size := range byteSizes {
		cumulativeBytes += size
		if cumulativeBytes >= compressThreshold {
			compressIndex = i + 1
			break
		}
	}

	if compressIndex == 0 || compressIndex >= len(contents) {
		return nil, goerr.New("insufficient content to compress", goerr.V("contents", len(contents)))
	}

	summary, err := summarizeContents(ctx, a, contents[:compressIndex])
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize contents")
	}

	summaryContent := genai.NewContentFromText("=== Previous Conversation Summary ===\n\n"+summary, genai.RoleUser)
	return append([]*genai.Content{summaryContent}, contents[compressIndex:]...), nil
}

// summarizeContents generates a summary of the given conversation contents
func summarizeContents(ctx context.Context, a *Advisor, contents []*genai.Content) (string, error) {
	prompt, err := renderPrompt("summarize", nil)
	if err != nil {
		return "", err
	}
	contentsWithPrompt := append(append([]*genai.Content{}, contents...), genai.NewContentFromText(prompt, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("You are an assistant for agricultural conversations.", ""),
		ThinkingConfig:    noThinking(),
	}

	resp, err := a.gemini.GenerateContent(ctx, a.models.Fast, contentsWithPrompt, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}

	summary := responseText(resp)
	if summary == "" {
		return "", goerr.New("empty summary generated")
	}
	return summary, nil
}
