package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dohr-michael/quill/internal/chat"
	"github.com/dohr-michael/quill/internal/store"
)

type conversationJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type messageJSON struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	CreatedAt string         `json:"created_at"`
	ToolCalls []toolCallJSON `json:"tool_calls,omitempty"`
}

type toolCallJSON struct {
	ID         string          `json:"id"`
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
	Result     json.RawMessage `json:"result"`
	ExecutedAt string          `json:"executed_at"`
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	Conversation conversationJSON `json:"conversation"`
	Messages     []messageJSON    `json:"messages"`
}

func conversationView(c *store.Conversation) conversationJSON {
	return conversationJSON{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func transcriptView(result *chat.SendResult) chatResponse {
	resp := chatResponse{
		Conversation: conversationView(result.Conversation),
		Messages:     make([]messageJSON, 0, len(result.Transcript)),
	}
	for _, entry := range result.Transcript {
		m := messageJSON{
			ID:        entry.Message.ID,
			Seq:       entry.Message.Seq,
			Role:      string(entry.Message.Role),
			Content:   entry.Message.Content,
			CreatedAt: entry.Message.CreatedAt.Format(time.RFC3339),
		}
		for _, tc := range entry.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, toolCallJSON{
				ID:         tc.ID,
				ToolName:   tc.ToolName,
				Parameters: tc.Parameters,
				Result:     tc.Result,
				ExecutedAt: tc.ExecutedAt.Format(time.RFC3339),
			})
		}
		resp.Messages = append(resp.Messages, m)
	}
	return resp
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "invalid request body", false)
		return
	}

	result, err := s.orchestrator.Send(r.Context(), chat.SendRequest{
		ConversationID: req.ConversationID,
		Content:        req.Message,
	})
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transcriptView(result))
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.orchestrator.Conversations(r.Context())
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	views := make([]conversationJSON, 0, len(convs))
	for _, c := range convs {
		views = append(views, conversationView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": views})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	result, err := s.orchestrator.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptView(result))
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	identity, _ := authIdentity(r)

	var filter store.TaskFilter
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case string(store.TaskPending):
		filter.Status = store.TaskPending
	case string(store.TaskCompleted):
		filter.Status = store.TaskCompleted
	default:
		writeErrorBody(w, http.StatusBadRequest, "validation_failed", "unknown status "+status, false)
		return
	}

	tasks, err := s.tasks.List(r.Context(), identity.OwnerID, filter)
	if err != nil {
		writeErrorBody(w, http.StatusServiceUnavailable, "store_unavailable", "list tasks", true)
		return
	}

	type taskJSON struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Status      string `json:"status"`
		CreatedAt   string `json:"created_at"`
		UpdatedAt   string `json:"updated_at"`
	}
	views := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskJSON{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      string(t.Status),
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": views})
}

// writeChatError maps orchestrator error codes onto HTTP statuses.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	var cerr *chat.Error
	if !errors.As(err, &cerr) {
		s.logger.Error("unexpected gateway error", "error", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal", "internal error", false)
		return
	}

	status := http.StatusInternalServerError
	switch cerr.Code {
	case chat.CodeAuthFailed:
		status = http.StatusUnauthorized
	case chat.CodeNotFound:
		status = http.StatusNotFound
	case chat.CodeValidationFailed:
		status = http.StatusBadRequest
	case chat.CodeReasonerTimeout:
		status = http.StatusRequestTimeout
	case chat.CodeReasonerFailed:
		status = http.StatusBadGateway
	case chat.CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeErrorBody(w, status, cerr.Code, cerr.Message, cerr.Retryable)
}
