package orchestration

import "sync"

const (
	frameKindAudio = "audio"
	frameKindMark  = "mark"
)

// frameOrMark is one element of the speech stream: either a synthesized
// audio frame or a mark confirming that the text up to this point has been
// turned into audio.
type frameOrMark struct {
	kind       string
	audio      []byte
	transcript string
}

type audioBufferMark struct {
	transcript string
	position   int
}

// audioBuffer is the hand-off between the synthesis callbacks and the speech
// processing worker. Frames arrive from the synthesis backend's callback
// goroutine and are consumed in order by exactly one worker.
type audioBuffer struct {
	mu sync.Mutex

	frames         [][]byte
	framesConsumed int

	marks         []audioBufferMark
	marksConsumed int

	allAudioLoaded bool
	stopped        bool

	updateSignal chan struct{}
}

func newAudioBuffer() *audioBuffer {
	return &audioBuffer{
		updateSignal: make(chan struct{}, 1),
	}
}

func (b *audioBuffer) AddAudio(audio []byte) {
	b.mu.Lock()
	b.frames = append(b.frames, audio)
	b.mu.Unlock()
	b.signalUpdate()
}

// Mark records that all text sent before this point has been synthesized.
// The mark is yielded after the frames that precede it.
func (b *audioBuffer) Mark(transcript string) {
	b.mu.Lock()
	b.marks = append(b.marks, audioBufferMark{
		transcript: transcript,
		position:   len(b.frames),
	})
	b.mu.Unlock()
	b.signalUpdate()
}

// AllAudioLoaded signals that no further frames will arrive. The consumer
// drains what is buffered and then terminates.
func (b *audioBuffer) AllAudioLoaded() {
	b.mu.Lock()
	b.allAudioLoaded = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Stop terminates the consumer without draining. Used on cancellation and on
// synthesis failure.
func (b *audioBuffer) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	b.signalUpdate()
}

// Frames yields buffered frames and marks in order, blocking until new
// elements arrive. It returns after Stop, or after AllAudioLoaded once
// everything buffered has been yielded.
func (b *audioBuffer) Frames(yield func(frameOrMark) bool) {
	for {
		b.mu.Lock()
		if b.stopped {
			b.mu.Unlock()
			return
		}

		if b.marksConsumed < len(b.marks) && b.marks[b.marksConsumed].position <= b.framesConsumed {
			mark := b.marks[b.marksConsumed]
			b.marksConsumed++
			b.mu.Unlock()
			if !yield(frameOrMark{kind: frameKindMark, transcript: mark.transcript}) {
				return
			}
			continue
		}

		if b.framesConsumed < len(b.frames) {
			frame := b.frames[b.framesConsumed]
			b.framesConsumed++
			b.mu.Unlock()
			if !yield(frameOrMark{kind: frameKindAudio, audio: frame}) {
				return
			}
			continue
		}

		if b.allAudioLoaded {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.updateSignal
	}
}

func (b *audioBuffer) signalUpdate() {
	select {
	case b.updateSignal <- struct{}{}:
	default:
	}
}
