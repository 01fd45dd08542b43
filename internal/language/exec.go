package language

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execClient struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Op          string   `json:"op"`
	MIME        string   `json:"mime,omitempty"`
	AudioBase64 string   `json:"audio_base64,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	Texts       []string `json:"texts,omitempty"`
	Context     string   `json:"context,omitempty"`
	Question    string   `json:"question,omitempty"`
}

type execResponse struct {
	Text string `json:"text"`
}

// NewExecClient runs a local command per operation, passing a JSON request on
// stdin and reading a JSON response from stdout.
func NewExecClient(command string) (Client, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse language command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("language command is empty")
	}
	return &execClient{cmd: args}, nil
}

func (e *execClient) Transcribe(ctx context.Context, audio Audio) (string, error) {
	text, err := e.run(ctx, execRequest{
		Op:          "transcribe",
		MIME:        audio.MIME,
		AudioBase64: base64.StdEncoding.EncodeToString(audio.Data),
		Instruction: transcribeInstruction,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	return text, nil
}

func (e *execClient) Summarize(ctx context.Context, texts []string) (string, error) {
	text, err := e.run(ctx, execRequest{Op: "summarize", Texts: texts})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}
	return text, nil
}

func (e *execClient) Answer(ctx context.Context, contextText, question string) (string, error) {
	text, err := e.run(ctx, execRequest{Op: "answer", Context: contextText, Question: question})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnswerFailed, err)
	}
	return text, nil
}

func (e *execClient) run(ctx context.Context, req execRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("language command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode language response: %w", err)
	}
	if resp.Text == "" {
		return "", fmt.Errorf("empty response")
	}
	return resp.Text, nil
}
