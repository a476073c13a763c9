package forge

import (
	"errors"
	"testing"
)

func TestClassifyGHError_Auth(t *testing.T) {
	err := classifyGHError(errors.New("exit status 1"), []byte("gh: authentication failed"))
	fe, ok := err.(*Error)
	if !ok || fe.Class != StatusAuth {
		t.Fatalf("got %v, want StatusAuth", err)
	}
}

func TestClassifyGHError_NotFound(t *testing.T) {
	err := classifyGHError(errors.New("exit status 1"), []byte("no pull requests found for branch \"x\""))
	fe, ok := err.(*Error)
	if !ok || fe.Class != StatusNotFound {
		t.Fatalf("got %v, want StatusNotFound", err)
	}
}

func TestClassifyGHError_Conflict(t *testing.T) {
	err := classifyGHError(errors.New("exit status 1"), []byte("a pull request for branch \"x\" into \"main\" already exists"))
	fe, ok := err.(*Error)
	if !ok || fe.Class != StatusConflict {
		t.Fatalf("got %v, want StatusConflict", err)
	}
}

func TestClassifyGHError_EmptyOutputIsUnknown(t *testing.T) {
	err := classifyGHError(errors.New("exit status 127"), nil)
	fe, ok := err.(*Error)
	if !ok || fe.Class != StatusUnknown {
		t.Fatalf("got %v, want StatusUnknown", err)
	}
}

func TestClassifyGHError_DefaultsToServer(t *testing.T) {
	err := classifyGHError(errors.New("exit status 1"), []byte("rate limit exceeded"))
	fe, ok := err.(*Error)
	if !ok || fe.Class != StatusServer {
		t.Fatalf("got %v, want StatusServer", err)
	}
}

func TestFromGHFields_MapsStateAndDraft(t *testing.T) {
	pr := fromGHFields(ghPRFields{
		Number: 7, URL: "https://example.com/pr/7", Title: "t", BaseRefName: "main",
		HeadRefName: "feature", State: "OPEN", IsDraft: true,
	})
	if pr.Number != 7 || pr.BaseBranch != "main" || pr.HeadBranch != "feature" || !pr.IsDraft {
		t.Fatalf("unexpected mapping: %+v", pr)
	}
	if pr.State != StateOpen {
		t.Fatalf("State = %v, want StateOpen", pr.State)
	}
}

func TestNormalizeGHState(t *testing.T) {
	cases := map[string]State{
		"OPEN":   StateOpen,
		"MERGED": StateMerged,
		"CLOSED": StateClosed,
		"":       StateOpen,
	}
	for in, want := range cases {
		if got := normalizeGHState(in); got != want {
			t.Errorf("normalizeGHState(%q) = %v, want %v", in, got, want)
		}
	}
}
