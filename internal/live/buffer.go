package live

import (
	"context"
	"sync"
	"sync/atomic"

	"geminilab/internal/audio"
)

// InputQueueSize bounds captured audio waiting to be sent; the oldest chunk
// is dropped when it is full
const InputQueueSize = 5

// AudioChunk is captured audio on its way to the model
type AudioChunk struct {
	Data     []byte
	MIMEType string
}

// AudioBuffer queues audio between a source (file, browser, microphone) and
// the Live session. Input is bounded, output is not; ClearOutput drops
// queued playback when the user barges in.
type AudioBuffer struct {
	in      chan AudioChunk
	dropped atomic.Int64

	mu     sync.Mutex
	out    [][]byte
	signal chan struct{}
}

func NewAudioBuffer() *AudioBuffer {
	return &AudioBuffer{
		in:     make(chan AudioChunk, InputQueueSize),
		signal: make(chan struct{}, 1),
	}
}

// PushInput queues a captured chunk without blocking
func (b *AudioBuffer) PushInput(data []byte) {
	chunk := AudioChunk{Data: data, MIMEType: audio.InputFormat.MIMEType()}
	for {
		select {
		case b.in <- chunk:
			return
		default:
		}
		select {
		case <-b.in:
			b.dropped.Add(1)
		default:
		}
	}
}

// NextInput waits for the next captured chunk
func (b *AudioBuffer) NextInput(ctx context.Context) (AudioChunk, error) {
	select {
	case c := <-b.in:
		return c, nil
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	}
}

// Dropped counts input chunks discarded because the queue was full
func (b *AudioBuffer) Dropped() int64 {
	return b.dropped.Load()
}

// QueueOutput appends model audio for playback
func (b *AudioBuffer) QueueOutput(data []byte) {
	b.mu.Lock()
	b.out = append(b.out, data)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// NextOutput waits for the next chunk of model audio
func (b *AudioBuffer) NextOutput(ctx context.Context) ([]byte, error) {
	for {
		b.mu.Lock()
		if len(b.out) > 0 {
			data := b.out[0]
			b.out = b.out[1:]
			b.mu.Unlock()
			return data, nil
		}
		b.mu.Unlock()

		select {
		case <-b.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// DrainOutput removes and returns everything queued for playback
func (b *AudioBuffer) DrainOutput() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var all []byte
	for _, c := range b.out {
		all = append(all, c...)
	}
	b.out = nil
	return all
}

// ClearOutput discards queued playback and returns how many chunks were dropped
func (b *AudioBuffer) ClearOutput() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.out)
	b.out = nil
	return n
}

// OutputLen is the number of chunks waiting for playback
func (b *AudioBuffer) OutputLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.out)
}
