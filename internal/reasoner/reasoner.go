// Package reasoner turns a conversation history into an assistant reply,
// running model tool calls against the tool registry as it goes.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/quill/internal/models"
	"github.com/dohr-michael/quill/internal/tools"
)

// ToolCall records one executed tool invocation with the arguments the
// model sent and the result it received.
type ToolCall struct {
	Name       string
	Arguments  json.RawMessage
	Result     json.RawMessage
	ExecutedAt time.Time
}

// Reply is the outcome of one reasoning pass.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Reasoner produces an assistant reply from a conversation history.
// The history carries everything the reasoner may know; implementations
// hold no per-conversation state.
type Reasoner interface {
	Reply(ctx context.Context, history []*schema.Message) (*Reply, error)
}

const defaultSystemPrompt = `You are a helpful task assistant. You help the user manage their task list through the tools available to you. Use the tools to create, list, update, complete, and delete tasks when the conversation calls for it. Answer concisely.`

const defaultMaxToolRounds = 8

// LLM is the model-backed Reasoner.
type LLM struct {
	chatModel    model.ToolCallingChatModel
	registry     *tools.Registry
	systemPrompt string
	maxRounds    int
	logger       *slog.Logger
}

// Option configures an LLM reasoner.
type Option func(*LLM)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(l *LLM) {
		if prompt != "" {
			l.systemPrompt = prompt
		}
	}
}

// WithMaxToolRounds bounds the number of model round-trips per reply.
func WithMaxToolRounds(n int) Option {
	return func(l *LLM) {
		if n > 0 {
			l.maxRounds = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *LLM) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLLM creates a Reasoner backed by a tool-calling chat model. The tool
// set is bound once at construction.
func NewLLM(ctx context.Context, chatModel model.ToolCallingChatModel, registry *tools.Registry, opts ...Option) (*LLM, error) {
	l := &LLM{
		registry:     registry,
		systemPrompt: defaultSystemPrompt,
		maxRounds:    defaultMaxToolRounds,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	infos := make([]*schema.ToolInfo, 0)
	for _, t := range registry.Tools() {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}

	bound, err := chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	l.chatModel = bound
	return l, nil
}

// Reply runs the generate/execute loop until the model answers in plain
// text or the round budget is spent. On failure the returned Reply, if
// non-nil, carries the tool calls that already executed so the caller
// can still persist their audit records; those effects are not rolled
// back.
func (l *LLM) Reply(ctx context.Context, history []*schema.Message) (*Reply, error) {
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, schema.SystemMessage(l.systemPrompt))
	msgs = append(msgs, history...)

	var executed []ToolCall

	for round := 0; round < l.maxRounds; round++ {
		out, err := l.chatModel.Generate(ctx, msgs)
		if err != nil {
			return partial(executed), models.HandleError(err)
		}

		if len(out.ToolCalls) == 0 {
			return &Reply{Content: out.Content, ToolCalls: executed}, nil
		}

		msgs = append(msgs, out)

		for _, tc := range out.ToolCalls {
			result, err := l.execute(ctx, tc)
			if err != nil {
				return partial(executed), err
			}
			executed = append(executed, ToolCall{
				Name:       tc.Function.Name,
				Arguments:  json.RawMessage(tc.Function.Arguments),
				Result:     json.RawMessage(result),
				ExecutedAt: time.Now().UTC(),
			})
			msgs = append(msgs, schema.ToolMessage(result, tc.ID, schema.WithToolName(tc.Function.Name)))
		}
	}

	return partial(executed), fmt.Errorf("tool loop did not converge after %d rounds", l.maxRounds)
}

// partial wraps already-executed tool calls for the failure path.
func partial(executed []ToolCall) *Reply {
	if len(executed) == 0 {
		return nil
	}
	return &Reply{ToolCalls: executed}
}

func (l *LLM) execute(ctx context.Context, tc schema.ToolCall) (string, error) {
	name := tc.Function.Name
	t := l.registry.Tool(name)
	if t == nil {
		// The model hallucinated a tool name; feed the mistake back
		// instead of failing the whole reply.
		l.logger.Warn("model requested unknown tool", "tool", name)
		out, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("unknown tool %q", name)})
		return string(out), nil
	}

	l.logger.Debug("executing tool", "tool", name)
	result, err := t.InvokableRun(ctx, tc.Function.Arguments)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return result, nil
}

var _ Reasoner = (*LLM)(nil)
