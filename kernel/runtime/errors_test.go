package runtime

import (
	"errors"
	"fmt"
	"testing"
)

func TestSessionBusyError_Message(t *testing.T) {
	err := &SessionBusyError{AppName: "boxagent", UserID: "u", SessionID: "s"}
	want := `runtime: session "s" is busy for app="boxagent" user="u"`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !IsSessionBusy(err) {
		t.Fatal("expected IsSessionBusy to detect SessionBusyError")
	}
}

func TestIsSessionBusy_Wrapped(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &SessionBusyError{AppName: "boxagent", UserID: "u", SessionID: "s"})
	if !IsSessionBusy(err) {
		t.Fatal("expected IsSessionBusy to detect wrapped SessionBusyError")
	}
	if IsSessionBusy(errors.New("other")) {
		t.Fatal("expected IsSessionBusy to reject unrelated errors")
	}
	if IsSessionBusy(nil) {
		t.Fatal("expected IsSessionBusy to reject nil")
	}
}
