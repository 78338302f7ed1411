package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRegistry(db.Tasks())
}

func ownerCtx(owner string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{
		OwnerID:   owner,
		ExpiresAt: time.Now().Add(time.Hour),
	})
}

func run(t *testing.T, r *Registry, ctx context.Context, name, args string) map[string]any {
	t.Helper()
	tl := r.Tool(name)
	if tl == nil {
		t.Fatalf("tool %q not registered", name)
	}
	out, err := tl.InvokableRun(ctx, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("%s: bad json %q: %v", name, out, err)
	}
	return result
}

func TestRegistryToolSet(t *testing.T) {
	r := newTestRegistry(t)
	want := []string{"add_task", "list_tasks", "update_task", "complete_task", "delete_task"}
	specs := r.Specs()
	if len(specs) != len(want) {
		t.Fatalf("got %d specs, want %d", len(specs), len(want))
	}
	for i, spec := range specs {
		if spec.Name != want[i] {
			t.Errorf("spec[%d] = %q, want %q", i, spec.Name, want[i])
		}
		if r.Tool(spec.Name) == nil {
			t.Errorf("tool %q missing", spec.Name)
		}
	}
}

func TestAddAndListTasks(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	created := run(t, r, ctx, "add_task", `{"title":"  buy milk  ","description":"two liters"}`)
	if created["title"] != "buy milk" {
		t.Errorf("title = %v, want trimmed %q", created["title"], "buy milk")
	}
	if created["status"] != "pending" {
		t.Errorf("status = %v, want pending", created["status"])
	}
	id, _ := created["id"].(string)
	if !strings.HasPrefix(id, "task_") {
		t.Errorf("id = %q, want task_ prefix", id)
	}

	listed := run(t, r, ctx, "list_tasks", `{}`)
	if listed["count"] != float64(1) {
		t.Errorf("count = %v, want 1", listed["count"])
	}
}

func TestAddTaskValidation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	run(t, r, ctx, "add_task", `{"title":"valid"}`)

	for name, args := range map[string]string{
		"empty title":      `{"title":"   "}`,
		"title too long":   `{"title":"` + strings.Repeat("x", 256) + `"}`,
		"description long": `{"title":"ok","description":"` + strings.Repeat("y", 5001) + `"}`,
	} {
		result := run(t, r, ctx, "add_task", args)
		if result["error"] == nil {
			t.Errorf("%s: expected error envelope, got %v", name, result)
		}
	}

	listed := run(t, r, ctx, "list_tasks", `{}`)
	if listed["count"] != float64(1) {
		t.Errorf("count = %v, want 1 (only the valid task)", listed["count"])
	}
}

func TestTaskLimitsCountCharactersNotBytes(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	// 255 two-byte characters: at the limit in characters, over it in
	// bytes.
	title := strings.Repeat("é", 255)
	desc := strings.Repeat("ü", 5000)
	args, _ := json.Marshal(map[string]string{"title": title, "description": desc})
	result := run(t, r, ctx, "add_task", string(args))
	if result["error"] != nil {
		t.Fatalf("multibyte task rejected: %v", result["error"])
	}
	if result["title"] != title {
		t.Errorf("title = %q", result["title"])
	}

	over, _ := json.Marshal(map[string]string{"title": strings.Repeat("é", 256)})
	if result := run(t, r, ctx, "add_task", string(over)); result["error"] == nil {
		t.Error("256-character title accepted")
	}
}

func TestListTasksStatusFilter(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	first := run(t, r, ctx, "add_task", `{"title":"first"}`)
	run(t, r, ctx, "add_task", `{"title":"second"}`)
	run(t, r, ctx, "complete_task", `{"task_id":"`+first["id"].(string)+`"}`)

	pending := run(t, r, ctx, "list_tasks", `{"status":"pending"}`)
	if pending["count"] != float64(1) {
		t.Errorf("pending count = %v, want 1", pending["count"])
	}
	completed := run(t, r, ctx, "list_tasks", `{"status":"completed"}`)
	if completed["count"] != float64(1) {
		t.Errorf("completed count = %v, want 1", completed["count"])
	}
	all := run(t, r, ctx, "list_tasks", `{"status":"all"}`)
	if all["count"] != float64(2) {
		t.Errorf("all count = %v, want 2", all["count"])
	}
	bad := run(t, r, ctx, "list_tasks", `{"status":"archived"}`)
	if bad["error"] == nil {
		t.Errorf("expected error for unknown status, got %v", bad)
	}
}

func TestUpdateTask(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	created := run(t, r, ctx, "add_task", `{"title":"draft","description":"old"}`)
	id := created["id"].(string)

	updated := run(t, r, ctx, "update_task", `{"task_id":"`+id+`","title":"final"}`)
	if updated["title"] != "final" {
		t.Errorf("title = %v, want final", updated["title"])
	}
	if updated["description"] != "old" {
		t.Errorf("description = %v, want old (untouched)", updated["description"])
	}

	noop := run(t, r, ctx, "update_task", `{"task_id":"`+id+`"}`)
	if noop["error"] == nil {
		t.Errorf("expected error for empty update, got %v", noop)
	}
}

func TestCompleteTaskIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	created := run(t, r, ctx, "add_task", `{"title":"once"}`)
	id := created["id"].(string)

	first := run(t, r, ctx, "complete_task", `{"task_id":"`+id+`"}`)
	second := run(t, r, ctx, "complete_task", `{"task_id":"`+id+`"}`)
	if first["status"] != "completed" || second["status"] != "completed" {
		t.Errorf("statuses = %v / %v, want completed twice", first["status"], second["status"])
	}
}

func TestDeleteTaskNotIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := ownerCtx("user_alice")

	created := run(t, r, ctx, "add_task", `{"title":"gone"}`)
	id := created["id"].(string)

	first := run(t, r, ctx, "delete_task", `{"task_id":"`+id+`"}`)
	if first["deleted"] != true {
		t.Errorf("first delete = %v, want deleted", first)
	}
	second := run(t, r, ctx, "delete_task", `{"task_id":"`+id+`"}`)
	if second["error"] == nil {
		t.Errorf("second delete should report an error, got %v", second)
	}
}

func TestOwnerIsolationThroughTools(t *testing.T) {
	r := newTestRegistry(t)
	alice := ownerCtx("user_alice")
	bob := ownerCtx("user_bob")

	created := run(t, r, alice, "add_task", `{"title":"private"}`)
	id := created["id"].(string)

	for name, args := range map[string]string{
		"update_task":   `{"task_id":"` + id + `","title":"stolen"}`,
		"complete_task": `{"task_id":"` + id + `"}`,
		"delete_task":   `{"task_id":"` + id + `"}`,
	} {
		result := run(t, r, bob, name, args)
		if result["error"] == nil {
			t.Errorf("%s as bob: expected not-found error, got %v", name, result)
		}
	}

	listed := run(t, r, bob, "list_tasks", `{}`)
	if listed["count"] != float64(0) {
		t.Errorf("bob sees %v tasks, want 0", listed["count"])
	}
}

func TestMissingIdentityIsHardError(t *testing.T) {
	r := newTestRegistry(t)
	tl := r.Tool("add_task")
	if _, err := tl.InvokableRun(context.Background(), `{"title":"x"}`); err == nil {
		t.Error("expected error when context has no identity")
	}
}
