// Package gateway exposes the thread lifecycle manager over HTTP.
//
// Routes:
//
//   - GET    /                        liveness probe
//   - GET    /api/threads             list threads (id, title, timestamps)
//   - GET    /api/thread/{id}         messages of the head checkpoint
//   - GET    /api/thread/{id}/history checkpoint summaries, newest first
//   - PUT    /api/thread/{id}         rename ({title} -> {success, message?})
//   - DELETE /api/thread/{id}         delete (same response shape)
//   - POST   /api/search              buffered send
//   - POST   /api/chat                streaming send (AI SDK data stream)
//
// The chat endpoint speaks the AI SDK data-stream text protocol: a
// `0:"...WORD"` frame per text delta, a `d:{...}` finish frame with a
// finish reason and usage counters, and an `8:[{thread_id, message_id}]`
// annotation frame carrying the conversation coordinates. Failures emit
// a `3:"..."` error frame in place of the finish and annotation frames.
//
// All responses are JSON; CORS is wide open because the browser frontend
// is served from a different origin. Lookup misses surface as empty
// lists or {success: false}, never as 5xx.
package gateway
