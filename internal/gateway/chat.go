// ABOUTME: Streaming chat endpoint speaking the AI SDK data-stream text protocol
// ABOUTME: One frame per delta, a finish frame with usage, and a metadata annotation frame

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2389/strand-gateway/internal/thread"
)

// Data-stream frame prefixes, as consumed by the AI SDK useChat client:
// text part, finish message, message annotation, error.
const (
	frameText       = "0"
	frameFinish     = "d"
	frameAnnotation = "8"
	frameError      = "3"
)

// handleChat handles POST /api/chat. Each delta is flushed as soon as it
// is produced; buffering would defeat the point of streaming.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SearchRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" {
		g.sendJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	threadID := ""
	messageID := ""
	failed := false

	for ev := range g.threads.Stream(r.Context(), req.Query, req.ThreadID, req.MessageID) {
		switch ev.Type {
		case thread.EventMeta:
			threadID = ev.ThreadID
			messageID = ev.CheckpointID

		case thread.EventDelta:
			writeFrame(w, frameText, ev.Text)
			flusher.Flush()

		case thread.EventFinal:
			threadID = ev.ThreadID
			messageID = ev.CheckpointID

		case thread.EventError:
			// The error frame replaces the finish and annotation frames.
			writeFrame(w, frameError, ev.Err)
			flusher.Flush()
			failed = true
		}
	}
	if failed {
		return
	}

	writeFrame(w, frameFinish, map[string]any{
		"finishReason": "stop",
		"usage":        map[string]int{"promptTokens": 0, "completionTokens": 0},
	})
	if threadID != "" {
		writeFrame(w, frameAnnotation, []map[string]string{{
			"thread_id":  threadID,
			"message_id": messageID,
		}})
	}
	flusher.Flush()
}

// writeFrame writes one data-stream frame: "<prefix>:<json>\n".
func writeFrame(w http.ResponseWriter, prefix string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`""`)
	}
	fmt.Fprintf(w, "%s:%s\n", prefix, data)
}
