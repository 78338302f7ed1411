package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/chat"
	"github.com/dohr-michael/quill/internal/reasoner"
	"github.com/dohr-michael/quill/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// echoReasoner replies with a fixed transformation of the last message.
type echoReasoner struct{}

func (echoReasoner) Reply(_ context.Context, history []*schema.Message) (*reasoner.Reply, error) {
	last := history[len(history)-1]
	return &reasoner.Reply{Content: "echo: " + last.Content}, nil
}

func newTestServer(t *testing.T) (*Server, *store.DB, *auth.Verifier) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	verifier, err := auth.NewVerifier(testSecret, "quill")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	orch := chat.NewOrchestrator(db.Conversations(), echoReasoner{})
	return NewServer(orch, db.Tasks(), verifier, "localhost", 0, nil), db, verifier
}

func bearer(t *testing.T, v *auth.Verifier, owner string) string {
	t.Helper()
	token, err := v.Mint(owner, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return "Bearer " + token
}

func do(t *testing.T, srv *Server, method, path, authHeader, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %q", "ok", body["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		w := do(t, srv, http.MethodGet, "/api/tasks", header, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestChatRoundTrip(t *testing.T) {
	srv, _, verifier := newTestServer(t)
	authz := bearer(t, verifier, "user_alice")

	w := do(t, srv, http.MethodPost, "/api/chat", authz, `{"message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Seq     int64  `json:"seq"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Conversation.ID == "" {
		t.Fatal("no conversation id")
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(resp.Messages))
	}
	if resp.Messages[1].Content != "echo: hello" {
		t.Errorf("reply = %q", resp.Messages[1].Content)
	}

	// Continue the conversation.
	w = do(t, srv, http.MethodPost, "/api/chat", authz,
		`{"conversation_id":"`+resp.Conversation.ID+`","message":"again"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("second turn status = %d", w.Code)
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 4 {
		t.Errorf("messages = %d, want 4", len(resp.Messages))
	}
	for i, m := range resp.Messages {
		if m.Seq != int64(i+1) {
			t.Errorf("message %d seq = %d", i, m.Seq)
		}
	}
}

func TestChatValidation(t *testing.T) {
	srv, _, verifier := newTestServer(t)
	authz := bearer(t, verifier, "user_alice")

	w := do(t, srv, http.MethodPost, "/api/chat", authz, `{"message":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank message status = %d, want 400", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/chat", authz, `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", w.Code)
	}
}

func TestChatForeignConversation(t *testing.T) {
	srv, _, verifier := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/chat", bearer(t, verifier, "user_alice"), `{"message":"mine"}`)
	var resp struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
	}
	json.NewDecoder(w.Body).Decode(&resp)

	w = do(t, srv, http.MethodPost, "/api/chat", bearer(t, verifier, "user_bob"),
		`{"conversation_id":"`+resp.Conversation.ID+`","message":"mine too"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestConversationsAndHistory(t *testing.T) {
	srv, _, verifier := newTestServer(t)
	authz := bearer(t, verifier, "user_alice")

	w := do(t, srv, http.MethodPost, "/api/chat", authz, `{"message":"hello"}`)
	var chatResp struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
	}
	json.NewDecoder(w.Body).Decode(&chatResp)

	w = do(t, srv, http.MethodGet, "/api/conversations", authz, "")
	if w.Code != http.StatusOK {
		t.Fatalf("conversations status = %d", w.Code)
	}
	var listResp struct {
		Conversations []struct {
			ID string `json:"id"`
		} `json:"conversations"`
	}
	json.NewDecoder(w.Body).Decode(&listResp)
	if len(listResp.Conversations) != 1 || listResp.Conversations[0].ID != chatResp.Conversation.ID {
		t.Errorf("conversations = %+v", listResp.Conversations)
	}

	w = do(t, srv, http.MethodGet, "/api/conversations/"+chatResp.Conversation.ID+"/history", authz, "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/conversations/conv_missing/history", authz, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing history status = %d, want 404", w.Code)
	}
}

func TestHandleTasks(t *testing.T) {
	srv, db, verifier := newTestServer(t)
	authz := bearer(t, verifier, "user_alice")
	ctx := auth.WithIdentity(context.Background(), auth.Identity{OwnerID: "user_alice"})

	if _, err := db.Tasks().Create(ctx, "user_alice", "write report", ""); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := db.Tasks().Create(ctx, "user_bob", "not visible", ""); err != nil {
		t.Fatalf("create task: %v", err)
	}

	w := do(t, srv, http.MethodGet, "/api/tasks", authz, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Tasks []struct {
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"tasks"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "write report" {
		t.Errorf("tasks = %+v", resp.Tasks)
	}

	w = do(t, srv, http.MethodGet, "/api/tasks?status=completed", authz, "")
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Tasks) != 0 {
		t.Errorf("completed tasks = %+v, want none", resp.Tasks)
	}

	w = do(t, srv, http.MethodGet, "/api/tasks?status=bogus", authz, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus status = %d, want 400", w.Code)
	}
}
