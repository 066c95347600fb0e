package testfixtures

import "testing"

func TestIDGeneratorSequence(t *testing.T) {
	gen := NewIDGenerator("apt")

	if first, second := gen.Next(), gen.Next(); first != "apt-1" || second != "apt-2" {
		t.Fatalf("unexpected sequence: %q, %q", first, second)
	}
}

func TestIDGeneratorEmptyPrefixDefault(t *testing.T) {
	gen := NewIDGenerator("")
	if got := gen.Next(); got != "id-1" {
		t.Fatalf("expected id-1, got %q", got)
	}
}

func TestIDGeneratorResetAndReprefix(t *testing.T) {
	gen := NewIDGenerator("job")
	_ = gen.Next()
	_ = gen.Next()

	gen.SetCounter(0)
	gen.SetPrefix("segment")

	if got := gen.Next(); got != "segment-1" {
		t.Fatalf("expected segment-1 after reset, got %q", got)
	}
}
