package policy

import "context"

// applyChain folds hooks over a value in registration order, stopping at the
// first error. The zero value is returned on failure so partial edits never
// leak to the caller.
func applyChain[T any](ctx context.Context, hooks []Hook, in T, step func(Hook, context.Context, T) (T, error)) (T, error) {
	cur := in
	for _, h := range hooks {
		if h == nil {
			continue
		}
		next, err := step(h, ctx, cur)
		if err != nil {
			var zero T
			return zero, err
		}
		cur = next
	}
	return cur, nil
}

// ApplyBeforeModel runs hooks over the pending model request.
func ApplyBeforeModel(ctx context.Context, hooks []Hook, in ModelInput) (ModelInput, error) {
	return applyChain(ctx, hooks, in, Hook.BeforeModel)
}

// ApplyBeforeTool runs hooks over a pending tool invocation.
func ApplyBeforeTool(ctx context.Context, hooks []Hook, in ToolInput) (ToolInput, error) {
	return applyChain(ctx, hooks, in, Hook.BeforeTool)
}

// ApplyAfterTool runs hooks over a finished tool result.
func ApplyAfterTool(ctx context.Context, hooks []Hook, out ToolOutput) (ToolOutput, error) {
	return applyChain(ctx, hooks, out, Hook.AfterTool)
}

// ApplyBeforeOutput runs hooks over the final answer before emission.
func ApplyBeforeOutput(ctx context.Context, hooks []Hook, out Output) (Output, error) {
	return applyChain(ctx, hooks, out, Hook.BeforeOutput)
}
