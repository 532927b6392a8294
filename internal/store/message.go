// ABOUTME: Message and content-block types shared by the checkpoint log and the engine
// ABOUTME: Content is a tagged variant (plain text or typed blocks) with total text extraction

package store

import "strings"

// Role identifies who produced a message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType identifies the kind of a content block.
const (
	BlockTypeText    = "text"
	BlockTypeToolUse = "tool_use"
)

// Block is one typed element of multi-part message content. Only text
// blocks are surfaced to clients; other kinds ride along untouched.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data string `json:"data,omitempty"` // raw payload for non-text blocks
}

// Content holds message content as either a single text string or a
// sequence of typed blocks. Exactly one of the two forms is set.
type Content struct {
	Plain  string  `json:"plain,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
}

// TextContent wraps a plain string as message content.
func TextContent(s string) Content {
	return Content{Plain: s}
}

// BlockContent wraps a block sequence as message content.
func BlockContent(blocks ...Block) Content {
	return Content{Blocks: blocks}
}

// Text extracts the textual content. Plain content is returned as-is;
// block content concatenates text blocks and ignores everything else.
// Total: never fails, empty content yields "".
func (c Content) Text() string {
	if c.Blocks == nil {
		return c.Plain
	}
	var sb strings.Builder
	for _, b := range c.Blocks {
		if b.Type == BlockTypeText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Message is one entry in a checkpoint's conversation snapshot.
type Message struct {
	ID      string  `json:"id,omitempty"`
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// Preview returns the message text truncated to max runes, for history summaries.
func (m Message) Preview(max int) string {
	text := m.Content.Text()
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
