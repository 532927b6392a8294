// ABOUTME: Anthropic-backed Engine implementation over the Messages API
// ABOUTME: Replays the resumed checkpoint into each call and appends the new snapshot afterwards

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/2389/strand-gateway/internal/store"
)

const defaultSystemPrompt = `You are a helpful search assistant.
Search the web when a question needs current information, then synthesize
the results into a clear answer. Cite sources as markdown links. If the
available information is uncertain or conflicting, say so.`

const defaultMaxTokens = 4096

// persistTimeout bounds checkpoint writes that outlive the request context.
const persistTimeout = 5 * time.Second

// AnthropicConfig configures the Anthropic engine adapter.
type AnthropicConfig struct {
	APIKey        string
	BaseURL       string // optional override, useful for tests
	Model         string
	MaxTokens     int64
	SystemPrompt  string
	WebSearch     bool // enable the server-side web search tool
	MaxSearchUses int64
}

// Anthropic implements Engine over the Anthropic Messages API. Each call
// replays the resolved checkpoint's messages, and the resulting exchange
// is appended to the checkpoint log as a new snapshot descending from
// the resumed checkpoint.
type Anthropic struct {
	client anthropic.Client
	log    store.CheckpointLog
	cfg    AnthropicConfig
	logger *slog.Logger
}

// NewAnthropic creates the adapter. The checkpoint log is where engine
// calls persist their snapshots; the thread manager only reads it.
func NewAnthropic(cfg AnthropicConfig, log store.CheckpointLog, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxSearchUses <= 0 {
		cfg.MaxSearchUses = 5
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		log:    log,
		cfg:    cfg,
		logger: logger.With("component", "engine"),
	}
}

// Invoke runs one buffered exchange.
func (a *Anthropic) Invoke(ctx context.Context, ec Context, query string) (string, string, error) {
	snapshot, parentID, err := a.resolveSnapshot(ctx, ec)
	if err != nil {
		return "", "", err
	}

	msg, err := a.client.Messages.New(ctx, a.buildParams(snapshot, query))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	text := sb.String()

	checkpointID, err := a.appendExchange(ctx, ec.ThreadID, parentID, snapshot, query, text)
	if err != nil {
		return "", "", err
	}
	return text, checkpointID, nil
}

// Stream runs one exchange, emitting cumulative assistant text chunks.
// The new checkpoint is appended after the model stream completes, so
// ResolveCheckpoint observes it once the returned channel has closed.
func (a *Anthropic) Stream(ctx context.Context, ec Context, query string) (<-chan Chunk, error) {
	snapshot, parentID, err := a.resolveSnapshot(ctx, ec)
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk, 16)
	go func() {
		defer close(out)

		stream := a.client.Messages.NewStreaming(ctx, a.buildParams(snapshot, query))
		var sb strings.Builder
		for stream.Next() {
			event := stream.Current()
			variant, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			td, ok := variant.Delta.AsAny().(anthropic.TextDelta)
			if !ok {
				continue
			}
			sb.WriteString(td.Text)
			select {
			case out <- Chunk{Role: store.RoleAssistant, Text: sb.String()}:
			case <-ctx.Done():
				// Client went away mid-stream. Persist what the model
				// already produced; the partial checkpoint stays valid.
				a.persistPartial(ec.ThreadID, parentID, snapshot, query, sb.String())
				return
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Err: fmt.Errorf("%w: %v", ErrEngineFailure, err)}
			return
		}

		if _, err := a.appendExchange(ctx, ec.ThreadID, parentID, snapshot, query, sb.String()); err != nil {
			out <- Chunk{Err: err}
		}
	}()
	return out, nil
}

// ResolveCheckpoint returns the thread's current head checkpoint id.
func (a *Anthropic) ResolveCheckpoint(ctx context.Context, ec Context) (string, error) {
	cp, err := a.log.GetCheckpoint(ctx, ec.ThreadID, "")
	if err != nil {
		return "", err
	}
	return cp.ID, nil
}

// resolveSnapshot loads the messages the call should resume from and the
// checkpoint id they came from. A fresh thread resolves to an empty
// snapshot; an explicit resume target that does not exist is an error.
func (a *Anthropic) resolveSnapshot(ctx context.Context, ec Context) ([]store.Message, string, error) {
	cp, err := a.log.GetCheckpoint(ctx, ec.ThreadID, ec.CheckpointID)
	if errors.Is(err, store.ErrNotFound) {
		if ec.CheckpointID != "" {
			return nil, "", fmt.Errorf("resume checkpoint %s: %w", ec.CheckpointID, err)
		}
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return cp.Messages, cp.ID, nil
}

func (a *Anthropic) buildParams(snapshot []store.Message, query string) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(snapshot)+1)
	for _, m := range snapshot {
		text := m.Content.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case store.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		case store.RoleHuman:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(query)))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: a.cfg.MaxTokens,
		Messages:  messages,
		System:    []anthropic.TextBlockParam{{Text: a.cfg.SystemPrompt}},
	}
	if a.cfg.WebSearch {
		params.Tools = []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
				MaxUses: anthropic.Int(a.cfg.MaxSearchUses),
			},
		}}
	}
	return params
}

// appendExchange persists the completed exchange as a new checkpoint
// descending from parentID.
func (a *Anthropic) appendExchange(ctx context.Context, threadID, parentID string, snapshot []store.Message, query, reply string) (string, error) {
	messages := make([]store.Message, 0, len(snapshot)+2)
	messages = append(messages, snapshot...)
	messages = append(messages,
		store.Message{ID: uuid.New().String(), Role: store.RoleHuman, Content: store.TextContent(query)},
		store.Message{ID: uuid.New().String(), Role: store.RoleAssistant, Content: store.BlockContent(
			store.Block{Type: store.BlockTypeText, Text: reply},
		)},
	)

	id, err := a.log.AppendCheckpoint(ctx, threadID, parentID, messages)
	if err != nil {
		return "", fmt.Errorf("appending checkpoint: %w", err)
	}
	a.logger.Debug("exchange persisted", "thread_id", threadID, "checkpoint_id", id, "parent_id", parentID)
	return id, nil
}

// persistPartial records a cancelled exchange with its own timeout so the
// write survives the request context going away.
func (a *Anthropic) persistPartial(threadID, parentID string, snapshot []store.Message, query, partial string) {
	if partial == "" {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := a.appendExchange(saveCtx, threadID, parentID, snapshot, query, partial); err != nil {
		a.logger.Error("failed to persist partial exchange", "error", err, "thread_id", threadID)
	}
}
