package llmagent

import (
	"context"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
)

// testLLM scripts provider replies and counts calls.
type testLLM struct {
	name    string
	calls   int
	handler func(*model.Request) (*model.Response, error)
}

func newTestLLM(name string, handler func(*model.Request) (*model.Response, error)) *testLLM {
	if name == "" {
		name = "test-model"
	}
	return &testLLM{name: name, handler: handler}
}

func (l *testLLM) Name() string {
	return l.name
}

func (l *testLLM) ContextWindowTokens() int {
	return 64000
}

func (l *testLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.calls++
	if l.handler == nil {
		return &model.Response{Text: "ok"}, nil
	}
	return l.handler(req)
}
