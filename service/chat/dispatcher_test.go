package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PRelay/tools/errs"
)

type funcHandler struct {
	event string
	fn    func(*ChatContext, *Frame, *Session) error
}

func (h funcHandler) Event() string { return h.event }
func (h funcHandler) Handle(c *ChatContext, f *Frame, s *Session) error {
	return h.fn(c, f, s)
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	var seen string
	d.Register(funcHandler{event: "ping", fn: func(_ *ChatContext, f *Frame, _ *Session) error {
		seen = f.Event
		return nil
	}})
	d.Register(funcHandler{event: "boom", fn: func(*ChatContext, *Frame, *Session) error {
		panic("handler bug")
	}})

	s := newBareSession("1")
	require.NoError(t, d.Dispatch(&ChatContext{}, &Frame{Event: "ping"}, s))
	assert.Equal(t, "ping", seen)

	err := d.Dispatch(&ChatContext{}, &Frame{Event: "nope"}, s)
	assert.True(t, errors.Is(err, errs.ErrUnknownEvent))

	err = d.Dispatch(&ChatContext{}, &Frame{Event: "boom"}, s)
	require.Error(t, err, "panic becomes an error")

	assert.ElementsMatch(t, []string{"ping", "boom"}, d.Events())
	assert.Nil(t, d.GetHandler("nope"))
}
