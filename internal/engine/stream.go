package engine

import (
	"context"
	"io"
)

// chunkStream adapts a callback-driven producer into the pull-based
// Stream contract. The producer goroutine blocks on the channel, so an
// abandoned stream is released by Close canceling its context.
type chunkStream struct {
	ch     chan string
	errc   chan error
	cancel context.CancelFunc
	closed bool
	done   bool
	err    error
}

// newChunkStream starts produce in a goroutine. produce must forward
// chunks through the passed emit function and return when the context
// is canceled or the source is exhausted.
func newChunkStream(ctx context.Context, produce func(ctx context.Context, emit func(string) error) error) *chunkStream {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &chunkStream{
		ch:     make(chan string),
		errc:   make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		defer close(s.ch)
		err := produce(streamCtx, func(chunk string) error {
			select {
			case s.ch <- chunk:
				return nil
			case <-streamCtx.Done():
				return streamCtx.Err()
			}
		})
		s.errc <- err
	}()

	return s
}

func (s *chunkStream) Recv() (string, error) {
	if s.done {
		return "", s.err
	}
	chunk, ok := <-s.ch
	if !ok {
		s.done = true
		s.err = <-s.errc
		if s.err == nil {
			s.err = io.EOF
		}
		return "", s.err
	}
	return chunk, nil
}

func (s *chunkStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	for range s.ch {
		// drain until the producer observes cancellation
	}
	return nil
}
