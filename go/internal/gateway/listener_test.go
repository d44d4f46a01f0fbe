package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	name     string
	data     []MatchData
	presence []MatchPresenceEvent
}

func (l *recordingListener) HandleMatchData(data MatchData) {
	l.data = append(l.data, data)
}

func (l *recordingListener) HandleMatchPresence(event MatchPresenceEvent) {
	l.presence = append(l.presence, event)
}

func TestRegistry_RestoresPreviousListener(t *testing.T) {
	r := NewRegistry()
	outer := &recordingListener{name: "outer"}
	inner := &recordingListener{name: "inner"}

	outerReg := r.Register(outer)
	innerReg := r.Register(inner)
	assert.Same(t, inner, r.Active())

	r.dispatchData(MatchData{MatchID: "m1"})
	assert.Len(t, inner.data, 1)
	assert.Len(t, outer.data, 0)

	innerReg.Release()
	assert.Same(t, outer, r.Active())

	r.dispatchPresence(MatchPresenceEvent{MatchID: "m1"})
	assert.Len(t, outer.presence, 1)

	outerReg.Release()
	assert.Nil(t, r.Active())
	assert.False(t, r.dispatchData(MatchData{MatchID: "m1"}))
}

func TestRegistry_OutOfOrderRelease(t *testing.T) {
	r := NewRegistry()
	a := &recordingListener{name: "a"}
	b := &recordingListener{name: "b"}
	c := &recordingListener{name: "c"}

	regA := r.Register(a)
	regB := r.Register(b)
	r.Register(c)

	// Releasing a buried registration must not disturb the active one
	regB.Release()
	assert.Same(t, c, r.Active())
	assert.Equal(t, 2, r.Len())

	regA.Release()
	regA.Release()
	assert.Equal(t, 1, r.Len())
	assert.Same(t, c, r.Active())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	reg := r.Register(&recordingListener{})
	r.Clear()
	assert.Nil(t, r.Active())

	// Releasing after a clear is a no-op
	reg.Release()
	assert.Equal(t, 0, r.Len())

	var nilReg *Registration
	nilReg.Release()
}
