package language

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type geminiClient struct {
	endpoint        string
	apiKey          string
	model           string
	maxOutputTokens int
	temperature     float64
	httpClient      *http.Client
}

// GeminiOptions configures the generative-language REST backend.
type GeminiOptions struct {
	Endpoint        string
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
}

func NewGeminiClient(opts GeminiOptions) Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &geminiClient{
		endpoint:        strings.TrimRight(opts.Endpoint, "/"),
		apiKey:          opts.APIKey,
		model:           opts.Model,
		maxOutputTokens: opts.MaxOutputTokens,
		temperature:     opts.Temperature,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *geminiClient) Transcribe(ctx context.Context, audio Audio) (string, error) {
	parts := []geminiPart{
		{Text: transcribeInstruction},
		{InlineData: &geminiInlineData{
			MIMEType: audio.MIME,
			Data:     base64.StdEncoding.EncodeToString(audio.Data),
		}},
	}
	text, err := g.generate(ctx, parts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	return text, nil
}

func (g *geminiClient) Summarize(ctx context.Context, texts []string) (string, error) {
	text, err := g.generate(ctx, []geminiPart{{Text: summarizePrompt(texts)}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	return text, nil
}

func (g *geminiClient) Answer(ctx context.Context, contextText, question string) (string, error) {
	text, err := g.generate(ctx, []geminiPart{{Text: answerPrompt(contextText, question)}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnswerFailed, err)
	}
	return text, nil
}

func (g *geminiClient) generate(ctx context.Context, parts []geminiPart) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxOutputTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return "", fmt.Errorf("service returned status %s: %s", resp.Status, decoded.Error.Message)
		}
		return "", fmt.Errorf("service returned status %s", resp.Status)
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("empty response")
	}

	var b strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}
