package orchestration

import (
	"strings"
	"sync"
)

// responseBuffer is the hand-off between the generation worker and the text
// processing worker. Tokens are appended as they stream in and consumed in
// order; consumers block until a new token arrives or the buffer completes.
type responseBuffer struct {
	mu             sync.Mutex
	tokens         []string
	tokensConsumed int
	complete       bool
	updateSignal   chan struct{}
	cleared        bool
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *responseBuffer) AddToken(token string) {
	b.mu.Lock()
	b.tokens = append(b.tokens, token)
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *responseBuffer) Complete() {
	b.mu.Lock()
	b.complete = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *responseBuffer) Tokens(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if b.tokensConsumed < len(b.tokens) {
			token := b.tokens[b.tokensConsumed]
			b.tokensConsumed++
			b.mu.Unlock()
			if !yield(token) {
				return
			}
			continue
		}

		if b.complete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

func (b *responseBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.Join(b.tokens, "")
}

func (b *responseBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signalUpdate()
}

func (b *responseBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
