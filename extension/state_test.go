package extension

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRegistered, "registered"},
		{StatePreInitialized, "pre-initialized"},
		{StateInitialized, "initialized"},
		{StatePostInitialized, "post-initialized"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	if StateInitialized.IsTerminal() {
		t.Error("Initialized should not be terminal")
	}
	if !StateFailed.IsTerminal() {
		t.Error("Failed should be terminal")
	}
	if !StatePostInitialized.IsTerminal() {
		t.Error("PostInitialized should be terminal")
	}
}

func TestLoadState_String(t *testing.T) {
	if got := LoadDependenciesChecked.String(); got != "dependencies-checked" {
		t.Errorf("LoadDependenciesChecked.String() = %q", got)
	}
	if got := LoadState(42).String(); got != "unknown" {
		t.Errorf("LoadState(42).String() = %q", got)
	}
}
