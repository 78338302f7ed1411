package tools

import (
	"github.com/cloudwego/eino/components/tool"

	"github.com/dohr-michael/quill/internal/store"
)

// Registry holds the fixed set of task tools. The tool set is static;
// there is no dynamic plugin loading.
type Registry struct {
	tools map[string]tool.InvokableTool
	specs map[string]*ToolSpec
	order []string
}

// NewRegistry builds the registry over a task store.
func NewRegistry(tasks *store.TaskStore) *Registry {
	r := &Registry{
		tools: make(map[string]tool.InvokableTool),
		specs: make(map[string]*ToolSpec),
	}
	r.register(AddTaskSpec(), NewAddTaskTool(tasks))
	r.register(ListTasksSpec(), NewListTasksTool(tasks))
	r.register(UpdateTaskSpec(), NewUpdateTaskTool(tasks))
	r.register(CompleteTaskSpec(), NewCompleteTaskTool(tasks))
	r.register(DeleteTaskSpec(), NewDeleteTaskTool(tasks))
	return r
}

func (r *Registry) register(spec *ToolSpec, t tool.InvokableTool) {
	r.tools[spec.Name] = t
	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
}

// Tools returns all tools in registration order, for binding to a model.
func (r *Registry) Tools() []tool.InvokableTool {
	result := make([]tool.InvokableTool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Specs returns all tool specs in registration order.
func (r *Registry) Specs() []*ToolSpec {
	result := make([]*ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.specs[name])
	}
	return result
}

// Tool returns a tool by name, or nil if unknown.
func (r *Registry) Tool(name string) tool.InvokableTool {
	return r.tools[name]
}
