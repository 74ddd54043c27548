package runtime

import (
	"context"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

type runtimeTestLLM struct {
	name string
}

func newRuntimeTestLLM(name string) model.LLM {
	if name == "" {
		name = "test-model"
	}
	return &runtimeTestLLM{name: name}
}

func (l *runtimeTestLLM) Name() string {
	return l.name
}

func (l *runtimeTestLLM) ContextWindowTokens() int {
	return 64000
}

func (l *runtimeTestLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	_ = ctx
	_ = req
	return &model.Response{
		Text:     "ok",
		Model:    l.name,
		Provider: "test-provider",
	}, nil
}
