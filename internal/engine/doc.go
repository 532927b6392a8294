// Package engine defines the boundary to the conversational execution
// engine and provides the Anthropic-backed implementation.
//
// The thread lifecycle manager depends only on the Engine interface:
// invoke a context+query, stream cumulative-text chunks, resolve the
// checkpoint the call settled on. Everything about models, prompting,
// and tool use (including web search) stays behind this boundary.
//
// Adapters write checkpoints: a completed call appends the exchanged
// messages to the checkpoint log as a new snapshot descending from the
// checkpoint it resumed from. The thread manager never writes the log
// directly.
package engine
