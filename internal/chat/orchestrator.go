// Package chat is the request orchestrator: it authenticates the caller,
// persists the inbound message, rebuilds the conversation for the
// reasoner, and records the reply. All state lives in the store; the
// orchestrator itself can be restarted between any two requests.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/reasoner"
	"github.com/dohr-michael/quill/internal/store"
)

const maxMessageLen = 5000

const (
	defaultReplyTimeout = 30 * time.Second
	defaultListLimit    = 50
)

// SendRequest is one inbound user turn. An empty ConversationID starts a
// new conversation.
type SendRequest struct {
	ConversationID string
	Content        string
}

// TranscriptEntry is a stored message plus the tool calls recorded
// against it.
type TranscriptEntry struct {
	Message   *store.Message
	ToolCalls []*store.ToolCall
}

// SendResult is the full transcript after the turn, newest message last.
type SendResult struct {
	Conversation *store.Conversation
	Transcript   []TranscriptEntry
}

// Orchestrator coordinates one chat turn end to end.
type Orchestrator struct {
	conversations *store.ConversationStore
	reasoner      reasoner.Reasoner
	replyTimeout  time.Duration
	listLimit     int
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReplyTimeout bounds the reasoner's time budget per turn.
func WithReplyTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.replyTimeout = d
		}
	}
}

// WithListLimit sets the page size for conversation listings.
func WithListLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.listLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an orchestrator over a conversation store and a
// reasoner.
func NewOrchestrator(conversations *store.ConversationStore, r reasoner.Reasoner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		conversations: conversations,
		reasoner:      r,
		replyTimeout:  defaultReplyTimeout,
		listLimit:     defaultListLimit,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Send runs one user turn. The user message is made durable before the
// reasoner is invoked: if the reasoner fails, the message survives and
// the turn can be retried against the same conversation.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.OwnerID == "" {
		return nil, newError(CodeAuthFailed, "no verified identity", false, nil)
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, newError(CodeValidationFailed, "message must not be empty", false, nil)
	}
	// The limit counts characters, not bytes.
	if utf8.RuneCountInString(content) > maxMessageLen {
		return nil, newError(CodeValidationFailed, "message too long", false, nil)
	}

	conv, err := o.resolveConversation(ctx, identity.OwnerID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	if _, err := o.conversations.AppendMessage(ctx, conv.ID, store.RoleUser, content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(CodeNotFound, "conversation not found", false, err)
		}
		return nil, newError(CodeStoreUnavailable, "persist message", true, err)
	}

	msgs, err := o.conversations.Messages(ctx, conv.ID)
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "load history", true, err)
	}

	replyCtx, cancel := context.WithTimeout(ctx, o.replyTimeout)
	defer cancel()

	started := time.Now()
	reply, err := o.reasoner.Reply(replyCtx, buildHistory(msgs))
	if err != nil {
		// The user message stays persisted; a retry resumes from here.
		// Tool effects that landed before the failure keep their audit
		// records too.
		if reply != nil && len(reply.ToolCalls) > 0 {
			o.persistToolAudit(ctx, conv.ID, reply.ToolCalls)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(replyCtx.Err(), context.DeadlineExceeded) {
			o.logger.Warn("reasoner timed out", "conversation", conv.ID, "elapsed", time.Since(started))
			return nil, newError(CodeReasonerTimeout, "assistant did not answer in time", true, err)
		}
		o.logger.Error("reasoner failed", "conversation", conv.ID, "error", err)
		return nil, newError(CodeReasonerFailed, "assistant failed to answer", true, err)
	}

	assistantMsg, err := o.conversations.AppendMessage(ctx, conv.ID, store.RoleAssistant, reply.Content)
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "persist reply", true, err)
	}
	for _, tc := range reply.ToolCalls {
		if _, err := o.conversations.AppendToolCall(ctx, assistantMsg.ID, tc.Name, tc.Arguments, tc.Result); err != nil {
			return nil, newError(CodeStoreUnavailable, "persist tool call", true, err)
		}
	}

	o.logger.Info("turn completed",
		"conversation", conv.ID,
		"tool_calls", len(reply.ToolCalls),
		"elapsed", time.Since(started))

	return o.result(ctx, conv.ID, identity.OwnerID)
}

// persistToolAudit records tool calls executed during a turn that never
// produced a reply, attached to an empty assistant message. Best effort:
// the turn is already failing, so store errors are logged, not returned.
func (o *Orchestrator) persistToolAudit(ctx context.Context, conversationID string, calls []reasoner.ToolCall) {
	msg, err := o.conversations.AppendMessage(ctx, conversationID, store.RoleAssistant, "")
	if err != nil {
		o.logger.Error("persist tool audit", "conversation", conversationID, "error", err)
		return
	}
	for _, tc := range calls {
		if _, err := o.conversations.AppendToolCall(ctx, msg.ID, tc.Name, tc.Arguments, tc.Result); err != nil {
			o.logger.Error("persist tool audit", "conversation", conversationID, "error", err)
			return
		}
	}
}

// History returns the full transcript of a conversation owned by the
// caller.
func (o *Orchestrator) History(ctx context.Context, conversationID string) (*SendResult, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.OwnerID == "" {
		return nil, newError(CodeAuthFailed, "no verified identity", false, nil)
	}
	return o.result(ctx, conversationID, identity.OwnerID)
}

// Conversations lists the caller's conversations, most recently active
// first.
func (o *Orchestrator) Conversations(ctx context.Context) ([]*store.Conversation, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.OwnerID == "" {
		return nil, newError(CodeAuthFailed, "no verified identity", false, nil)
	}
	convs, err := o.conversations.List(ctx, identity.OwnerID, o.listLimit)
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "list conversations", true, err)
	}
	return convs, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, ownerID, id string) (*store.Conversation, error) {
	if id == "" {
		conv, err := o.conversations.Create(ctx, ownerID)
		if err != nil {
			return nil, newError(CodeStoreUnavailable, "create conversation", true, err)
		}
		return conv, nil
	}
	conv, err := o.conversations.Get(ctx, id, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(CodeNotFound, "conversation not found", false, err)
	}
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "load conversation", true, err)
	}
	return conv, nil
}

func (o *Orchestrator) result(ctx context.Context, conversationID, ownerID string) (*SendResult, error) {
	conv, err := o.conversations.Get(ctx, conversationID, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(CodeNotFound, "conversation not found", false, err)
	}
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "load conversation", true, err)
	}

	msgs, err := o.conversations.Messages(ctx, conv.ID)
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "load history", true, err)
	}

	transcript := make([]TranscriptEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := TranscriptEntry{Message: m}
		if m.Role == store.RoleAssistant {
			calls, err := o.conversations.ToolCalls(ctx, m.ID)
			if err != nil {
				return nil, newError(CodeStoreUnavailable, "load tool calls", true, err)
			}
			entry.ToolCalls = calls
		}
		transcript = append(transcript, entry)
	}

	return &SendResult{Conversation: conv, Transcript: transcript}, nil
}
