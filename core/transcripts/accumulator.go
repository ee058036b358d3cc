// Package transcripts assembles ordered partial transcription events into
// stable utterance boundaries.
package transcripts

import (
	"errors"
	"strings"
	"sync"
)

// ErrOrderingViolation reports a delta or final event whose sequence number
// is not strictly greater than the last accepted one. Violations are
// non-fatal: callers drop the event and keep the accumulator state intact.
var ErrOrderingViolation = errors.New("transcripts: event out of order")

// Accumulator collects transcript deltas for one utterance at a time. A
// final event flushes the accumulated text plus the final increment and
// resets the accumulator for the next utterance.
//
// Accumulator is safe for use from a single delivering goroutine; the
// session runtime serializes event delivery.
type Accumulator struct {
	mu           sync.Mutex
	partial      strings.Builder
	lastSequence uint64
	accepted     bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Delta appends one transcription fragment. Events with a sequence number
// not strictly greater than the last accepted one are dropped and reported
// as ErrOrderingViolation without altering state.
func (a *Accumulator) Delta(sequence uint64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accepted && sequence <= a.lastSequence {
		logger.Warn("dropping out-of-order transcript delta",
			"sequence", sequence, "last_sequence", a.lastSequence)
		return ErrOrderingViolation
	}

	a.lastSequence = sequence
	a.accepted = true
	a.partial.WriteString(text)
	return nil
}

// Final closes the utterance. The event's text is the last increment, not a
// replacement: the returned utterance is the concatenation of all accepted
// deltas plus text. The accumulator resets for the next utterance.
func (a *Accumulator) Final(sequence uint64, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accepted && sequence <= a.lastSequence {
		logger.Warn("dropping out-of-order transcript final",
			"sequence", sequence, "last_sequence", a.lastSequence)
		return "", ErrOrderingViolation
	}

	utterance := a.partial.String() + text
	a.resetLocked()
	return utterance, nil
}

// Partial returns the text accumulated so far for the open utterance.
func (a *Accumulator) Partial() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.partial.String()
}

// Reset discards any partial utterance, e.g. on disconnect mid-utterance.
// Discarded text is never forwarded downstream.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetLocked()
}

func (a *Accumulator) resetLocked() {
	a.partial.Reset()
	a.lastSequence = 0
	a.accepted = false
}
