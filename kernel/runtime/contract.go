package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andrewrchen05/bounding-box-agent/kernel/model"
	"github.com/andrewrchen05/bounding-box-agent/kernel/session"
)

const (
	// ContractVersionV1 is the first stable runtime event contract version.
	ContractVersionV1 = "v1"

	// MetaContractVersion marks runtime event contract version in event meta.
	MetaContractVersion = "contract_version"
	// MetaLifecycle is the payload key for lifecycle details.
	MetaLifecycle = "lifecycle"
)

const (
	metaKind          = "kind"
	metaKindLifecycle = "lifecycle"
	metaKindRecovery  = "recovery"
)

// RunLifecycleStatus is a machine-readable runtime run status.
type RunLifecycleStatus string

const (
	RunLifecycleStatusRunning     RunLifecycleStatus = "running"
	RunLifecycleStatusInterrupted RunLifecycleStatus = "interrupted"
	RunLifecycleStatusFailed      RunLifecycleStatus = "failed"
	RunLifecycleStatusCompleted   RunLifecycleStatus = "completed"
)

func lifecycleStatusForError(err error) RunLifecycleStatus {
	if err == nil {
		return RunLifecycleStatusCompleted
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return RunLifecycleStatusInterrupted
	}
	return RunLifecycleStatusFailed
}

func lifecycleEvent(sess *session.Session, requestID string, status RunLifecycleStatus, phase, outcome string, cause error) *session.Event {
	payload := map[string]any{
		"status": string(status),
		"phase":  phase,
	}
	meta := map[string]any{
		metaKind:            metaKindLifecycle,
		MetaContractVersion: ContractVersionV1,
		MetaLifecycle:       payload,
	}
	if outcome != "" {
		payload["outcome"] = outcome
		meta[session.MetaOutcome] = outcome
	}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	return &session.Event{
		ID:        eventID(),
		SessionID: sess.ID,
		RequestID: requestID,
		Time:      time.Now(),
		Message:   model.Message{Role: model.RoleSystem},
		Meta:      meta,
	}
}

func isLifecycleEvent(ev *session.Event) bool {
	if ev == nil || ev.Meta == nil {
		return false
	}
	kind, _ := ev.Meta[metaKind].(string)
	return kind == metaKindLifecycle
}

// agentHistoryEvents filters persisted events down to the conversation the
// agent replays: lifecycle markers never enter model-facing history.
func agentHistoryEvents(events []*session.Event) []*session.Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]*session.Event, 0, len(events))
	for _, ev := range events {
		if ev == nil || isLifecycleEvent(ev) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// LifecycleInfo is parsed lifecycle state from one lifecycle event.
type LifecycleInfo struct {
	Status  RunLifecycleStatus
	Phase   string
	Outcome string
	Error   string
}

// LifecycleFromEvent extracts lifecycle info from one runtime lifecycle event.
func LifecycleFromEvent(ev *session.Event) (LifecycleInfo, bool) {
	if !isLifecycleEvent(ev) {
		return LifecycleInfo{}, false
	}
	payload, ok := ev.Meta[MetaLifecycle].(map[string]any)
	if !ok {
		return LifecycleInfo{}, false
	}
	status := RunLifecycleStatus(strings.TrimSpace(fmt.Sprint(payload["status"])))
	if status == "" {
		return LifecycleInfo{}, false
	}
	info := LifecycleInfo{
		Status: status,
		Phase:  strings.TrimSpace(fmt.Sprint(payload["phase"])),
	}
	if rawOutcome, exists := payload["outcome"]; exists {
		info.Outcome = strings.TrimSpace(fmt.Sprint(rawOutcome))
	}
	if rawErr, exists := payload["error"]; exists {
		info.Error = strings.TrimSpace(fmt.Sprint(rawErr))
	}
	return info, true
}
