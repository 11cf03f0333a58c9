package apistate

import "sync"

// Stream publishes the tri-state progression of one logical operation per
// checkout attempt. Emissions follow the invariant
//
//	Loading* (Success | Error)
//
// and nothing may follow the first terminal emission: once an attempt has
// failed it can never report success afterwards. Publish calls after a
// terminal state are dropped.
//
// States are delivered on a buffered channel so a slow or absent subscriber
// never blocks the pipeline; the channel is closed on the terminal emission.
type Stream[T any] struct {
	mu     sync.Mutex
	ch     chan State[T]
	last   State[T]
	closed bool
}

// streamBuffer is sized to hold a full Loading→terminal progression without
// a consumer present.
const streamBuffer = 4

// NewStream returns a Stream whose current state is Loading.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		ch:   make(chan State[T], streamBuffer),
		last: Loading[T](),
	}
}

// States returns the receive side of the stream. The channel is closed
// after the terminal state has been delivered.
func (s *Stream[T]) States() <-chan State[T] {
	return s.ch
}

// Current returns the most recently published state.
func (s *Stream[T]) Current() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Loading publishes the loading state.
func (s *Stream[T]) Loading() {
	s.publish(Loading[T]())
}

// Success publishes the terminal success state and closes the stream.
func (s *Stream[T]) Success(v T) {
	s.publish(Success(v))
}

// Fail publishes the terminal error state and closes the stream.
func (s *Stream[T]) Fail(cause error) {
	s.publish(Failure[T](cause))
}

func (s *Stream[T]) publish(st State[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.last = st

	select {
	case s.ch <- st:
	default:
		// Subscriber is not draining; the latest state stays observable
		// through Current.
	}

	if st.IsTerminal() {
		s.closed = true
		close(s.ch)
	}
}
