package apistate

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](s *Stream[T]) []State[T] {
	var out []State[T]
	for st := range s.States() {
		out = append(out, st)
	}
	return out
}

func TestStream_LoadingThenSuccess(t *testing.T) {
	s := NewStream[int]()
	s.Loading()
	s.Success(42)

	states := drain(s)
	require.Len(t, states, 2)
	assert.Equal(t, KindLoading, states[0].Kind())
	assert.Equal(t, KindSuccess, states[1].Kind())
	assert.Equal(t, 42, states[1].MustValue())
}

func TestStream_LoadingThenError(t *testing.T) {
	s := NewStream[int]()
	s.Loading()
	s.Fail(errors.New("boom"))

	states := drain(s)
	require.Len(t, states, 2)
	assert.Equal(t, KindLoading, states[0].Kind())
	assert.Equal(t, KindError, states[1].Kind())
	assert.EqualError(t, states[1].Err(), "boom")
}

func TestStream_NoSuccessAfterError(t *testing.T) {
	s := NewStream[string]()
	s.Loading()
	s.Fail(errors.New("network"))
	s.Success("late") // must be dropped

	states := drain(s)
	require.Len(t, states, 2)
	assert.Equal(t, KindError, states[1].Kind())
	assert.Equal(t, KindError, s.Current().Kind())
}

func TestStream_CurrentTracksLatest(t *testing.T) {
	s := NewStream[int]()
	assert.True(t, s.Current().IsLoading())

	s.Success(7)
	v, ok := s.Current().Value()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestStream_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStream[int]()
	// Nobody reads; publishing more states than the buffer holds must not
	// deadlock.
	for range 10 {
		s.Loading()
	}
	s.Success(1)
	assert.Equal(t, KindSuccess, s.Current().Kind())
}

func TestState_ZeroValueIsLoading(t *testing.T) {
	var st State[int]
	assert.True(t, st.IsLoading())
	assert.Nil(t, st.Err())
	_, ok := st.Value()
	assert.False(t, ok)
}
