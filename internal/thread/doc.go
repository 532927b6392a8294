// Package thread implements the thread lifecycle manager.
//
// # Overview
//
// The Service sits between the HTTP gateway and the persistence/engine
// layers. It owns every cross-store decision: when a thread exists
// (when its checkpoint log is non-empty), when metadata is written
// (lazily, on rename), and how the two stores are kept consistent on
// delete (checkpoints first, metadata best-effort second).
//
// Key operations:
//
//   - Send(ctx, query, threadID, checkpointID): buffered exchange;
//     empty threadID starts a fresh thread, checkpointID time-travels
//   - Stream(...): same resolution, but events (meta/delta/final/error)
//   - ListThreads(ctx): union of known threads with stored or derived titles
//   - Messages(ctx, id): the head checkpoint's message list
//   - History(ctx, id): checkpoint summaries, newest first
//   - Rename(ctx, id, title) / Delete(ctx, id): total boolean results
//
// # Concurrency
//
// One logical goroutine serves each request; the service itself holds
// no mutable state. Concurrent sends on the same thread both resume
// from the head as read at call time; writes are not serialized per
// thread, so the later append wins the new head.
package thread
