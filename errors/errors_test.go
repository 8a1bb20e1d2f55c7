package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_ErrorIncludesInner(t *testing.T) {
	err := NewCandidateRejected("weather", errors.New("no module.json"))
	if got := err.Error(); got != "not a valid module: no module.json" {
		t.Errorf("Error() = %q", got)
	}
	if err.Details["candidate"] != "weather" {
		t.Errorf("candidate detail = %v", err.Details["candidate"])
	}
}

func TestIsTypeThroughWrapping(t *testing.T) {
	base := NewLifecycle("initialize", "weather", errors.New("boom"))
	wrapped := fmt.Errorf("startup: %w", base)

	if !IsType(wrapped, ErrorTypeLifecycle) {
		t.Error("IsType should see the lifecycle error through fmt wrapping")
	}
	if IsType(wrapped, ErrorTypeInstall) {
		t.Error("IsType should not match a different type")
	}
	if got := TypeOf(wrapped); got != ErrorTypeLifecycle {
		t.Errorf("TypeOf = %q", got)
	}
	if got := TypeOf(errors.New("plain")); got != ErrorTypeUnknown {
		t.Errorf("TypeOf(plain) = %q", got)
	}
}

func TestFromPanic(t *testing.T) {
	recovered := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = FromPanic(r)
			}
		}()
		panic("constructor exploded")
	}()

	if !IsType(recovered, ErrorTypeInternal) {
		t.Fatalf("panic should become an internal error, got %v", recovered)
	}
	if got := recovered.Error(); got != "panic recovered: constructor exploded" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(NewNotFound("module", "x")); got != http.StatusNotFound {
		t.Errorf("StatusOf(not found) = %d", got)
	}
	if got := StatusOf(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("StatusOf(plain) = %d", got)
	}
}
