package runtime

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

const defaultContextWindowTokens = 65536

// UsageRequest defines one context usage inspection request.
type UsageRequest struct {
	AppName             string
	UserID              string
	SessionID           string
	Model               model.LLM
	ContextWindowTokens int
}

// ContextUsage is the estimated token usage snapshot for one session.
type ContextUsage struct {
	CurrentTokens int
	WindowTokens  int
	Ratio         float64
	EventCount    int
}

// ContextUsage estimates how much of the model context window the session
// history occupies. The estimate is rune-count based, roughly four runes per
// token; it informs status display, nothing gates on it.
func (r *Runtime) ContextUsage(ctx context.Context, req UsageRequest) (ContextUsage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.AppName == "" || req.UserID == "" || req.SessionID == "" {
		return ContextUsage{}, fmt.Errorf("runtime: app_name, user_id and session_id are required")
	}
	sess, err := r.store.GetOrCreate(ctx, &session.Session{AppName: req.AppName, UserID: req.UserID, ID: req.SessionID})
	if err != nil {
		return ContextUsage{}, err
	}
	events, err := r.store.ListEvents(ctx, sess)
	if err != nil {
		return ContextUsage{}, err
	}
	window := agentHistoryEvents(events)
	windowTokens := resolveContextWindowTokens(req.ContextWindowTokens, req.Model)
	current := estimateEventsTokens(window)
	return ContextUsage{
		CurrentTokens: current,
		WindowTokens:  windowTokens,
		Ratio:         float64(current) / float64(windowTokens),
		EventCount:    len(window),
	}, nil
}

func estimateEventsTokens(events []*session.Event) int {
	total := 0
	for _, ev := range events {
		total += estimateEventTokens(ev)
	}
	return total
}

func estimateEventTokens(ev *session.Event) int {
	if ev == nil {
		return 0
	}
	// Per-event overhead for role and framing.
	return estimateTextTokens(ev.Message.Text) + 10
}

func estimateTextTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	tokens := runes / 4
	if runes%4 != 0 {
		tokens++
	}
	if tokens <= 0 {
		tokens = 1
	}
	return tokens
}

func resolveContextWindowTokens(override int, llm model.LLM) int {
	if override > 0 {
		return override
	}
	if c, ok := llm.(model.ContextWindower); ok {
		if tokens := c.ContextWindowTokens(); tokens > 0 {
			return tokens
		}
	}
	return defaultContextWindowTokens
}
