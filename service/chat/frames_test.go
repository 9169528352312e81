package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PRelay/tools/errs"
)

func TestParseFrameJSON(t *testing.T) {
	f, err := ParseFrameJSON([]byte(`{"event":" register ","data":"Bob"}`))
	require.NoError(t, err)
	assert.Equal(t, EventRegister, f.Event)
	assert.JSONEq(t, `"Bob"`, string(f.Data))

	for _, bad := range []string{`not json`, `{"data":1}`, `{"event":""}`, `[]`} {
		_, err := ParseFrameJSON([]byte(bad))
		assert.True(t, errors.Is(err, errs.ErrBadFrame), bad)
	}
}

func TestEncodeFrame(t *testing.T) {
	b, err := EncodeFrame(EventLoadMessages, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"load-messages"}`, string(b))

	b, err = EncodeFrame(EventUpdateUserList, []string{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"update-user-list","data":[]}`, string(b))

	_, err = EncodeFrame(EventMessage, make(chan int))
	assert.Error(t, err)
}

func TestBuildErrorFrame(t *testing.T) {
	var p struct {
		Event string       `json:"event"`
		Data  ErrorPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(BuildErrorFrame(errs.ErrNotRegistered.WrapMsg("x")), &p))
	assert.Equal(t, EventError, p.Event)
	assert.Equal(t, errs.NotRegisteredError, p.Data.Code)

	require.NoError(t, json.Unmarshal(BuildErrorFrame(errors.New("boom")), &p))
	assert.Equal(t, errs.ServerInternalError, p.Data.Code)
	assert.Equal(t, "internal error", p.Data.Msg)
}

func TestReportable(t *testing.T) {
	assert.True(t, Reportable(errs.ErrNotRegistered.Wrap()))
	assert.True(t, Reportable(errs.ErrBadFrame.Wrap()))
	assert.True(t, Reportable(errs.ErrUnknownEvent.Wrap()))
	assert.False(t, Reportable(errs.ErrStore.Wrap()))
	assert.False(t, Reportable(errs.ErrDuplicateRegistration.Wrap()), "answered with register-rejected")
	assert.False(t, Reportable(errors.New("plain")))
}
