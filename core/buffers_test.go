package orchestration

import (
	"bytes"
	"testing"
	"time"
)

func TestResponseBufferYieldsTokensInOrder(t *testing.T) {
	buffer := newResponseBuffer()
	buffer.AddToken("Hel")
	buffer.AddToken("lo")
	buffer.Complete()

	var tokens []string
	for token := range buffer.Tokens {
		tokens = append(tokens, token)
	}

	if len(tokens) != 2 || tokens[0] != "Hel" || tokens[1] != "lo" {
		t.Fatalf("expected tokens [Hel lo], got %v", tokens)
	}
	if got := buffer.String(); got != "Hello" {
		t.Fatalf("expected accumulated text %q, got %q", "Hello", got)
	}
}

func TestResponseBufferBlocksUntilTokenOrCompletion(t *testing.T) {
	buffer := newResponseBuffer()

	received := make(chan string, 1)
	go func() {
		for token := range buffer.Tokens {
			received <- token
		}
		close(received)
	}()

	select {
	case <-received:
		t.Fatalf("expected consumer to block on an empty buffer")
	case <-time.After(20 * time.Millisecond):
	}

	buffer.AddToken("late")
	select {
	case token := <-received:
		if token != "late" {
			t.Fatalf("expected token %q, got %q", "late", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for late token")
	}

	buffer.Complete()
	select {
	case _, open := <-received:
		if open {
			t.Fatalf("expected consumer to terminate after completion")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for consumer termination")
	}
}

func TestResponseBufferClearTerminatesConsumer(t *testing.T) {
	buffer := newResponseBuffer()
	buffer.AddToken("dropped")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range buffer.Tokens {
			buffer.Clear()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for cleared consumer to terminate")
	}
}

func TestAudioBufferYieldsFramesThenMarks(t *testing.T) {
	buffer := newAudioBuffer()
	buffer.AddAudio([]byte{0x01})
	buffer.AddAudio([]byte{0x02})
	buffer.Mark("Hello.")
	buffer.AllAudioLoaded()

	var frames [][]byte
	var marks []string
	for element := range buffer.Frames {
		switch element.kind {
		case frameKindAudio:
			frames = append(frames, element.audio)
		case frameKindMark:
			marks = append(marks, element.transcript)
		}
	}

	if len(frames) != 2 || !bytes.Equal(frames[0], []byte{0x01}) || !bytes.Equal(frames[1], []byte{0x02}) {
		t.Fatalf("expected two frames in order, got %v", frames)
	}
	if len(marks) != 1 || marks[0] != "Hello." {
		t.Fatalf("expected one mark with transcript, got %v", marks)
	}
}

func TestAudioBufferMarkWaitsForPrecedingFrames(t *testing.T) {
	buffer := newAudioBuffer()
	buffer.AddAudio([]byte{0x01})
	buffer.Mark("after first")
	buffer.AddAudio([]byte{0x02})
	buffer.AllAudioLoaded()

	var order []string
	for element := range buffer.Frames {
		order = append(order, element.kind)
	}

	expected := []string{frameKindAudio, frameKindMark, frameKindAudio}
	if len(order) != len(expected) {
		t.Fatalf("expected %d elements, got %v", len(expected), order)
	}
	for i, kind := range expected {
		if order[i] != kind {
			t.Fatalf("expected element %d to be %s, got %s", i, kind, order[i])
		}
	}
}

func TestAudioBufferStopTerminatesWithoutDraining(t *testing.T) {
	buffer := newAudioBuffer()
	buffer.AddAudio([]byte{0x01})
	buffer.AddAudio([]byte{0x02})

	var consumed int
	for element := range buffer.Frames {
		if element.kind == frameKindAudio {
			consumed++
			buffer.Stop()
		}
	}

	if consumed != 1 {
		t.Fatalf("expected one frame before stop, got %d", consumed)
	}
}
