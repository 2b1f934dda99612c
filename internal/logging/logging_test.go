package logging

import "testing"

func TestNewReturnsNonNilLogger(t *testing.T) {
	if New(false) == nil {
		t.Fatal("expected non-nil logger")
	}
	if New(true) == nil {
		t.Fatal("expected non-nil logger")
	}
}
