package transcripts

import (
	"errors"
	"testing"
)

func TestDeltasPlusFinalConcatenateInOrder(t *testing.T) {
	accumulator := NewAccumulator()

	if err := accumulator.Delta(1, "Hel"); err != nil {
		t.Fatalf("expected first delta to be accepted, got %v", err)
	}
	if err := accumulator.Delta(2, "lo wor"); err != nil {
		t.Fatalf("expected second delta to be accepted, got %v", err)
	}

	utterance, err := accumulator.Final(3, "ld")
	if err != nil {
		t.Fatalf("expected final to be accepted, got %v", err)
	}
	if utterance != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", utterance)
	}
}

func TestOutOfOrderDeltaIsDropped(t *testing.T) {
	accumulator := NewAccumulator()

	if err := accumulator.Delta(2, "world"); err != nil {
		t.Fatalf("expected delta to be accepted, got %v", err)
	}
	if err := accumulator.Delta(2, "duplicate"); !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("expected ordering violation for duplicate sequence, got %v", err)
	}
	if err := accumulator.Delta(1, "stale"); !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("expected ordering violation for stale sequence, got %v", err)
	}

	if got := accumulator.Partial(); got != "world" {
		t.Fatalf("expected partial text to stay %q, got %q", "world", got)
	}
}

func TestOutOfOrderFinalIsDropped(t *testing.T) {
	accumulator := NewAccumulator()

	if err := accumulator.Delta(5, "hello"); err != nil {
		t.Fatalf("expected delta to be accepted, got %v", err)
	}
	if _, err := accumulator.Final(5, "!"); !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("expected ordering violation for stale final, got %v", err)
	}

	if got := accumulator.Partial(); got != "hello" {
		t.Fatalf("expected partial text to survive dropped final, got %q", got)
	}
}

func TestFinalResetsForNextUtterance(t *testing.T) {
	accumulator := NewAccumulator()

	if err := accumulator.Delta(10, "first"); err != nil {
		t.Fatalf("expected delta to be accepted, got %v", err)
	}
	if _, err := accumulator.Final(11, ""); err != nil {
		t.Fatalf("expected final to be accepted, got %v", err)
	}

	// Sequence numbering restarts per utterance.
	if err := accumulator.Delta(1, "second"); err != nil {
		t.Fatalf("expected fresh utterance to accept sequence 1, got %v", err)
	}
	utterance, err := accumulator.Final(2, " utterance")
	if err != nil {
		t.Fatalf("expected final to be accepted, got %v", err)
	}
	if utterance != "second utterance" {
		t.Fatalf("expected %q, got %q", "second utterance", utterance)
	}
}

func TestResetDiscardsPartial(t *testing.T) {
	accumulator := NewAccumulator()

	if err := accumulator.Delta(1, "never forwarded"); err != nil {
		t.Fatalf("expected delta to be accepted, got %v", err)
	}
	accumulator.Reset()

	if got := accumulator.Partial(); got != "" {
		t.Fatalf("expected partial to be discarded, got %q", got)
	}

	utterance, err := accumulator.Final(1, "fresh")
	if err != nil {
		t.Fatalf("expected final after reset to be accepted, got %v", err)
	}
	if utterance != "fresh" {
		t.Fatalf("expected discarded partial to not leak into %q", utterance)
	}
}
