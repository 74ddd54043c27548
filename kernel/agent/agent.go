// Package agent declares the contracts between the runtime host and the
// loop implementation it drives.
package agent

import (
	"context"
	"iter"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/policy"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
	"github.com/andrewrchen05/bounding-box-agent/kernel/tool"
)

// Agent is one runnable loop implementation. Run yields events as they are
// produced; the runtime host persists them.
type Agent interface {
	Name() string
	Run(InvocationContext) iter.Seq2[*session.Event, error]
}

// ReadonlyContext exposes the immutable view of one invocation: the session
// identity plus the event history replayed from the store.
type ReadonlyContext interface {
	context.Context
	Session() *session.Session
	History() []*session.Event
}

// ModelContext adds the connected model and the declared tool surface.
type ModelContext interface {
	ReadonlyContext
	Model() model.LLM
	Tools() []tool.Tool
}

// ToolContext adds name-indexed tool lookup for dispatch.
type ToolContext interface {
	ReadonlyContext
	Tool(string) (tool.Tool, bool)
}

// PolicyContext adds the policy hooks applied around model and tool calls.
type PolicyContext interface {
	ReadonlyContext
	Policies() []policy.Hook
}

// InvocationContext composes everything one run needs.
type InvocationContext interface {
	ModelContext
	ToolContext
	PolicyContext
}
