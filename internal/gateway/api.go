// ABOUTME: HTTP API handlers for thread listing, inspection, rename, delete and buffered search
// ABOUTME: Request/response shapes mirror what the web frontend consumes

package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// SearchRequest is the JSON request body for POST /api/search and /api/chat.
// MessageID names the checkpoint to resume from (time travel); on the wire
// checkpoints are called messages, matching what clients display.
type SearchRequest struct {
	Query     string `json:"query"`
	ThreadID  string `json:"thread_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Response  string `json:"response"`
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id,omitempty"`
}

// ThreadInfo is one entry of GET /api/threads.
type ThreadInfo struct {
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ThreadListResponse is the JSON response for GET /api/threads.
type ThreadListResponse struct {
	Threads []ThreadInfo `json:"threads"`
}

// MessageInfo is one message of GET /api/thread/{id}.
type MessageInfo struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// ThreadResponse is the JSON response for GET /api/thread/{id}.
type ThreadResponse struct {
	Messages []MessageInfo `json:"messages"`
}

// HistoryEntry is one checkpoint summary of GET /api/thread/{id}/history.
type HistoryEntry struct {
	MessageID    string `json:"message_id"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
	LastRole     string `json:"last_message_type,omitempty"`
	LastPreview  string `json:"last_message_content,omitempty"`
}

// RenameThreadRequest is the JSON request body for PUT /api/thread/{id}.
type RenameThreadRequest struct {
	Title string `json:"title"`
}

// MutationResponse is the JSON response for rename and delete.
type MutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// handleListThreads handles GET /api/threads.
func (g *Gateway) handleListThreads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	threads, err := g.threads.ListThreads(r.Context())
	if err != nil {
		g.logger.Error("failed to list threads", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ThreadListResponse{Threads: make([]ThreadInfo, 0, len(threads))}
	for _, th := range threads {
		resp.Threads = append(resp.Threads, ThreadInfo{
			ThreadID:  th.ThreadID,
			Title:     th.Title,
			CreatedAt: th.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: th.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleThreadRoutes dispatches /api/thread/{id} and /api/thread/{id}/history.
func (g *Gateway) handleThreadRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/thread/")
	threadID, sub, _ := strings.Cut(rest, "/")
	if threadID == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		g.handleGetThread(w, r, threadID)
	case sub == "" && r.Method == http.MethodPut:
		g.handleRenameThread(w, r, threadID)
	case sub == "" && r.Method == http.MethodDelete:
		g.handleDeleteThread(w, r, threadID)
	case sub == "history" && r.Method == http.MethodGet:
		g.handleThreadHistory(w, r, threadID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleGetThread returns the messages of the thread's head checkpoint.
// An absent thread yields an empty message list.
func (g *Gateway) handleGetThread(w http.ResponseWriter, r *http.Request, threadID string) {
	msgs, err := g.threads.Messages(r.Context(), threadID)
	if err != nil {
		g.logger.Error("failed to get thread messages", "thread_id", threadID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ThreadResponse{Messages: make([]MessageInfo, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageInfo{
			Type:    string(m.Role),
			Content: m.Content.Text(),
			ID:      m.ID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleThreadHistory returns checkpoint summaries, newest first.
func (g *Gateway) handleThreadHistory(w http.ResponseWriter, r *http.Request, threadID string) {
	entries := make([]HistoryEntry, 0, 8)
	for summary, err := range g.threads.History(r.Context(), threadID) {
		if err != nil {
			g.logger.Error("failed to read history", "thread_id", threadID, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		entries = append(entries, HistoryEntry{
			MessageID:    summary.ID,
			CreatedAt:    summary.CreatedAt.UTC().Format(time.RFC3339),
			MessageCount: summary.MessageCount,
			LastRole:     string(summary.LastRole),
			LastPreview:  summary.LastPreview,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]HistoryEntry{"history": entries})
}

// handleRenameThread handles PUT /api/thread/{id}.
func (g *Gateway) handleRenameThread(w http.ResponseWriter, r *http.Request, threadID string) {
	var req RenameThreadRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := g.threads.Rename(r.Context(), threadID, req.Title)
	if err != nil {
		g.logger.Error("rename failed", "thread_id", threadID, "error", err)
		ok = false
	}
	if !ok {
		writeJSON(w, http.StatusOK, MutationResponse{Success: false, Message: "Thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true})
}

// handleDeleteThread handles DELETE /api/thread/{id}.
func (g *Gateway) handleDeleteThread(w http.ResponseWriter, r *http.Request, threadID string) {
	ok, err := g.threads.Delete(r.Context(), threadID)
	if err != nil {
		g.logger.Error("delete failed", "thread_id", threadID, "error", err)
		ok = false
	}
	if !ok {
		writeJSON(w, http.StatusOK, MutationResponse{Success: false, Message: "Thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Success: true})
}

// handleSearch handles POST /api/search, the buffered send path.
func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
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

	result, err := g.threads.Send(r.Context(), req.Query, req.ThreadID, req.MessageID)
	if err != nil {
		g.logger.Error("send failed", "thread_id", req.ThreadID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Response:  result.Response,
		ThreadID:  result.ThreadID,
		MessageID: result.CheckpointID,
	})
}

// decodeJSON decodes a JSON request body, rejecting malformed input.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	return dec.Decode(v)
}
