package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a multi-turn exchange owned by exactly one user.
// owner_id is immutable after creation; messages inherit it through
// the conversation.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one immutable turn in a conversation. Seq is a
// per-conversation monotonic counter assigned at append time; it is the
// ordering authority, not the wall clock.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToolCall is the audit record of a single tool invocation: the
// parameters actually sent and the result actually received.
type ToolCall struct {
	ID         string          `json:"id"`
	MessageID  string          `json:"message_id"`
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
	Result     json.RawMessage `json:"result"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// ConversationStore persists conversations, their append-only message
// log, and tool-call audit records.
type ConversationStore struct {
	db *sql.DB
}

func newConversationID() string {
	u := uuid.New().String()
	return "conv_" + strings.ReplaceAll(u[:13], "-", "")
}

func newMessageID() string {
	u := uuid.New().String()
	return "msg_" + strings.ReplaceAll(u[:13], "-", "")
}

func newToolCallID() string {
	u := uuid.New().String()
	return "tc_" + strings.ReplaceAll(u[:13], "-", "")
}

// Create starts a new conversation for the owner.
func (s *ConversationStore) Create(ctx context.Context, ownerID string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        newConversationID(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_id, title, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, ?)`,
		c.ID, c.OwnerID, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Get returns the conversation if it exists and belongs to ownerID.
// An ownership mismatch is reported as ErrNotFound, never as a
// distinct "forbidden".
func (s *ConversationStore) Get(ctx context.Context, id, ownerID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, COALESCE(title, ''), created_at, updated_at
		 FROM conversations WHERE id = ? AND owner_id = ?`, id, ownerID)

	var c Conversation
	var created, updated string
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// List returns the owner's conversations, most recently active first.
func (s *ConversationStore) List(ctx context.Context, ownerID string, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, COALESCE(title, ''), created_at, updated_at
		 FROM conversations WHERE owner_id = ?
		 ORDER BY updated_at DESC, id LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		var c Conversation
		var created, updated string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		var err error
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if c.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// AppendMessage appends one turn to the conversation's log. The next
// sequence number is assigned and the conversation's updated_at bumped
// inside the same transaction, so concurrent appends always yield one
// total order.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append message: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("append message: next seq: %w", err)
	}

	m := &Message{
		ID:             newMessageID(),
		ConversationID: conversationID,
		Seq:            seq,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Seq, m.Role, m.Content, formatTime(m.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("append message: insert: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(m.CreatedAt), conversationID)
	if err != nil {
		return nil, fmt.Errorf("append message: touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append message: commit: %w", err)
	}
	return m, nil
}

// Messages returns the conversation's messages in append order. Repeated
// calls against unchanged data return identical sequences.
func (s *ConversationStore) Messages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, seq, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		var err error
		if m.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// AppendToolCall records one executed tool invocation against the
// assistant message that triggered it.
func (s *ConversationStore) AppendToolCall(ctx context.Context, messageID, toolName string, parameters, result json.RawMessage) (*ToolCall, error) {
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{}`)
	}
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}

	tc := &ToolCall{
		ID:         newToolCallID(),
		MessageID:  messageID,
		ToolName:   toolName,
		Parameters: parameters,
		Result:     result,
		ExecutedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (id, message_id, tool_name, parameters, result, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tc.ID, tc.MessageID, tc.ToolName, string(tc.Parameters), string(tc.Result),
		formatTime(tc.ExecutedAt))
	if err != nil {
		return nil, fmt.Errorf("append tool call: %w", err)
	}
	return tc, nil
}

// ToolCalls returns the tool-call records for a message in execution order.
func (s *ConversationStore) ToolCalls(ctx context.Context, messageID string) ([]*ToolCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, tool_name, parameters, result, executed_at
		 FROM tool_calls WHERE message_id = ? ORDER BY executed_at, id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("load tool calls: %w", err)
	}
	defer rows.Close()

	var calls []*ToolCall
	for rows.Next() {
		var tc ToolCall
		var params, result, executed string
		if err := rows.Scan(&tc.ID, &tc.MessageID, &tc.ToolName, &params, &result, &executed); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		tc.Parameters = json.RawMessage(params)
		tc.Result = json.RawMessage(result)
		var err error
		if tc.ExecutedAt, err = parseTime(executed); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		calls = append(calls, &tc)
	}
	return calls, rows.Err()
}
