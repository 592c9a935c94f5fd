package models

import "testing"

func TestFeatureDependencySet(t *testing.T) {
	f := Feature{ID: 3, Dependencies: []int64{1, 2}}
	set := f.DependencySet()

	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(set))
	}
	if _, ok := set[1]; !ok {
		t.Errorf("expected dependency 1 in set")
	}
	if _, ok := set[2]; !ok {
		t.Errorf("expected dependency 2 in set")
	}
	if _, ok := set[99]; ok {
		t.Errorf("unexpected dependency 99 in set")
	}
}

func TestAgentKindString(t *testing.T) {
	cases := map[AgentKind]string{
		AgentKindCoding:      "coding",
		AgentKindTesting:     "testing",
		AgentKindInitializer: "initializer",
		AgentKind(99):        "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("AgentKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestAgentStatusString(t *testing.T) {
	cases := map[AgentStatus]string{
		AgentStatusRunning:   "running",
		AgentStatusCompleted: "completed",
		AgentStatusFailed:    "failed",
		AgentStatus(99):      "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("AgentStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}
