package language

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiTestServer(t *testing.T, handler func(w http.ResponseWriter, req geminiRequest)) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Path; got != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", got)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	client := NewGeminiClient(GeminiOptions{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Model:    "gemini-2.0-flash",
	})
	return srv, client
}

func textResponse(w http.ResponseWriter, text string) {
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
}

func TestGeminiTranscribeSendsInlineAudio(t *testing.T) {
	audio := Audio{MIME: "audio/webm;codecs=opus", Data: []byte{0x01, 0x02, 0x03}}
	var got geminiRequest
	_, client := geminiTestServer(t, func(w http.ResponseWriter, req geminiRequest) {
		got = req
		textResponse(w, "سلام دنیا")
	})

	text, err := client.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "سلام دنیا" {
		t.Fatalf("text = %q", text)
	}

	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("request shape = %+v", got)
	}
	if !strings.Contains(got.Contents[0].Parts[0].Text, "Urdu script") {
		t.Fatal("transcription instruction missing")
	}
	inline := got.Contents[0].Parts[1].InlineData
	if inline == nil {
		t.Fatal("inline audio missing")
	}
	if inline.MIMEType != audio.MIME {
		t.Fatalf("mime = %q, want %q", inline.MIMEType, audio.MIME)
	}
	if inline.Data != base64.StdEncoding.EncodeToString(audio.Data) {
		t.Fatal("audio payload not base64 of the clip")
	}
}

func TestGeminiSummarizeJoinsSegments(t *testing.T) {
	var got geminiRequest
	_, client := geminiTestServer(t, func(w http.ResponseWriter, req geminiRequest) {
		got = req
		textResponse(w, "خلاصہ")
	})

	text, err := client.Summarize(context.Background(), []string{"پہلا", "دوسرا"})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if text != "خلاصہ" {
		t.Fatalf("text = %q", text)
	}
	prompt := got.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "پہلا"+segmentSeparator+"دوسرا") {
		t.Fatalf("prompt missing joined segments: %q", prompt)
	}
}

func TestGeminiAnswerCarriesContextAndQuestion(t *testing.T) {
	var got geminiRequest
	_, client := geminiTestServer(t, func(w http.ResponseWriter, req geminiRequest) {
		got = req
		textResponse(w, "جی ہاں")
	})

	if _, err := client.Answer(context.Background(), "نوٹس کا متن", "کیا یہ سچ ہے؟"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	prompt := got.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "نوٹس کا متن") || !strings.Contains(prompt, "کیا یہ سچ ہے؟") {
		t.Fatalf("prompt missing context or question: %q", prompt)
	}
}

func TestGeminiErrorStatusWrapsSentinel(t *testing.T) {
	_, client := geminiTestServer(t, func(w http.ResponseWriter, _ geminiRequest) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded"},
		})
	})

	_, err := client.Transcribe(context.Background(), Audio{MIME: "audio/wav"})
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("got %v, want ErrTranscriptionFailed", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error does not carry the service message: %v", err)
	}

	_, err = client.Summarize(context.Background(), []string{"متن"})
	if !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("got %v, want ErrSummarizationFailed", err)
	}

	_, err = client.Answer(context.Background(), "متن", "سوال؟")
	if !errors.Is(err, ErrAnswerFailed) {
		t.Fatalf("got %v, want ErrAnswerFailed", err)
	}
}

func TestGeminiEmptyCandidatesIsError(t *testing.T) {
	_, client := geminiTestServer(t, func(w http.ResponseWriter, _ geminiRequest) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	if _, err := client.Transcribe(context.Background(), Audio{MIME: "audio/wav"}); !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("got %v, want ErrTranscriptionFailed", err)
	}
}

func TestGeminiConcatenatesMultipleParts(t *testing.T) {
	_, client := geminiTestServer(t, func(w http.ResponseWriter, _ geminiRequest) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "پہلا حصہ "},
					{"text": "دوسرا حصہ"},
				}}},
			},
		})
	})

	text, err := client.Transcribe(context.Background(), Audio{MIME: "audio/wav"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "پہلا حصہ دوسرا حصہ" {
		t.Fatalf("text = %q", text)
	}
}
