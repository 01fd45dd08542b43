package runtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Najmul343/talk2write/internal/chat"
	"github.com/Najmul343/talk2write/internal/language"
	"github.com/Najmul343/talk2write/internal/session"
	"github.com/Najmul343/talk2write/internal/share"
)

func (r *Runtime) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !r.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("POST /v1/record/start", r.handleRecordStart)
	mux.HandleFunc("POST /v1/record/pause", r.handleRecordPause)
	mux.HandleFunc("POST /v1/record/resume", r.handleRecordResume)
	mux.HandleFunc("POST /v1/record/cancel", r.handleRecordCancel)
	mux.HandleFunc("POST /v1/record/restart", r.handleRecordRestart)
	mux.HandleFunc("POST /v1/record/finalize", r.handleRecordFinalize)
	mux.HandleFunc("POST /v1/upload", r.handleUpload)
	mux.HandleFunc("GET /v1/state", r.handleState)

	mux.HandleFunc("GET /v1/notebook", r.handleNotebook)
	mux.HandleFunc("DELETE /v1/segments/{id}", r.handleDeleteSegment)
	mux.HandleFunc("POST /v1/clear", r.handleClear)
	mux.HandleFunc("POST /v1/summary", r.handleSummarize)
	mux.HandleFunc("DELETE /v1/summary", r.handleDismissSummary)

	mux.HandleFunc("POST /v1/chat/ask", r.handleChatAsk)
	mux.HandleFunc("GET /v1/chat", r.handleChatLog)
	mux.HandleFunc("POST /v1/chat/reset", r.handleChatReset)

	mux.HandleFunc("POST /v1/export", r.handleExport)

	return r.withLogging(mux)
}

func (r *Runtime) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		next.ServeHTTP(w, req)
		r.logger.Debug("http request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path))
	})
}

type segmentView struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (r *Runtime) handleRecordStart(w http.ResponseWriter, req *http.Request) {
	if err := r.controller.Start(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleRecordPause(w http.ResponseWriter, req *http.Request) {
	if err := r.controller.Pause(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleRecordResume(w http.ResponseWriter, req *http.Request) {
	if err := r.controller.Resume(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleRecordCancel(w http.ResponseWriter, req *http.Request) {
	if err := r.controller.Cancel(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleRecordRestart(w http.ResponseWriter, req *http.Request) {
	if err := r.controller.Restart(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleRecordFinalize(w http.ResponseWriter, req *http.Request) {
	seg, err := r.controller.Finalize(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segmentView{
		ID:        seg.ID,
		Text:      seg.Text,
		Source:    seg.Source,
		CreatedAt: seg.CreatedAt.Format(timeLayout),
	})
}

// handleUpload accepts an audio or video clip, raw or as a multipart file
// field. The size limit is enforced twice: against the declared Content-Length
// before reading, and via MaxBytesReader while reading, so a chunked oversized
// body still fails.
func (r *Runtime) handleUpload(w http.ResponseWriter, req *http.Request) {
	maxBytes := r.cfg.Upload.MaxBytes
	if req.ContentLength > maxBytes {
		r.writeError(w, session.ErrPayloadTooLarge)
		return
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxBytes)

	mime := req.Header.Get("Content-Type")
	var data []byte
	var err error
	if strings.HasPrefix(mime, "multipart/form-data") {
		data, mime, err = readMultipartClip(req)
	} else {
		data, err = io.ReadAll(req.Body)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.writeError(w, session.ErrPayloadTooLarge)
			return
		}
		r.writeError(w, err)
		return
	}
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = "audio/webm"
	}

	seg, err := r.controller.SubmitClip(req.Context(), mime, data)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segmentView{
		ID:        seg.ID,
		Text:      seg.Text,
		Source:    seg.Source,
		CreatedAt: seg.CreatedAt.Format(timeLayout),
	})
}

func (r *Runtime) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleNotebook(w http.ResponseWriter, req *http.Request) {
	segments, err := r.store.ListSegments(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	summary, hasSummary, err := r.store.Summary(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	views := make([]segmentView, 0, len(segments))
	for _, seg := range segments {
		views = append(views, segmentView{
			ID:        seg.ID,
			Text:      seg.Text,
			Source:    seg.Source,
			CreatedAt: seg.CreatedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segments":    views,
		"summary":     summary,
		"has_summary": hasSummary,
	})
}

func (r *Runtime) handleDeleteSegment(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.store.DeleteByID(req.Context(), id); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClear wipes the notebook and the chat log together: a conversation
// about segments that no longer exist is not worth keeping.
func (r *Runtime) handleClear(w http.ResponseWriter, req *http.Request) {
	if err := r.store.ClearAll(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	r.chatSession.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleSummarize generates a fresh summary over all live segments. With an
// empty notebook the remote service is never invoked.
func (r *Runtime) handleSummarize(w http.ResponseWriter, req *http.Request) {
	segments, err := r.store.ListSegments(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	if len(segments) == 0 {
		writeJSONError(w, http.StatusUnprocessableEntity, "no segments to summarize")
		return
	}

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	summary, err := r.client.Summarize(req.Context(), texts)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if err := r.store.SetSummary(req.Context(), summary); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (r *Runtime) handleDismissSummary(w http.ResponseWriter, req *http.Request) {
	if err := r.store.ClearSummary(req.Context()); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleChatAsk(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := r.chatSession.Ask(req.Context(), body.Question)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (r *Runtime) handleChatLog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":    r.chatSession.Messages(),
		"outstanding": r.chatSession.Outstanding(),
	})
}

func (r *Runtime) handleChatReset(w http.ResponseWriter, _ *http.Request) {
	r.chatSession.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// handleExport composes the notebook into a text blob. With ?share=true it is
// handed to the native share path; otherwise the blob is returned directly.
func (r *Runtime) handleExport(w http.ResponseWriter, req *http.Request) {
	segments, err := r.store.ListSegments(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	summary, _, err := r.store.Summary(req.Context())
	if err != nil {
		r.writeError(w, err)
		return
	}
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	blob := share.Compose(summary, texts)

	if req.URL.Query().Get("share") == "true" {
		method, err := r.sharer.Share(req.Context(), blob)
		if err != nil {
			r.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"method": string(method)})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, blob)
}

// readMultipartClip pulls the first file field out of a multipart upload and
// reports its declared content type.
func readMultipartClip(req *http.Request) ([]byte, string, error) {
	reader, err := req.MultipartReader()
	if err != nil {
		return nil, "", err
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", errors.New("multipart upload has no file part")
		}
		if err != nil {
			return nil, "", err
		}
		if part.FileName() == "" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, "", err
		}
		return data, part.Header.Get("Content-Type"), nil
	}
}

const timeLayout = time.RFC3339Nano

func (r *Runtime) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrQuestionOutstanding):
		status = http.StatusTooManyRequests
	case errors.Is(err, chat.ErrSessionReset):
		status = http.StatusConflict
	case errors.Is(err, chat.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(err, language.ErrTranscriptionFailed),
		errors.Is(err, language.ErrSummarizationFailed),
		errors.Is(err, language.ErrAnswerFailed):
		status = http.StatusBadGateway
	case errors.Is(err, share.ErrShareUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
