package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type privateMessage struct {
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

func TestDecodePayload_Object(t *testing.T) {
	out, err := DecodePayload[privateMessage](json.RawMessage(`{"receiver":" Carol ","text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "Carol", out.Receiver)
	assert.Equal(t, "hi", out.Text)
}

func TestDecodePayload_KeepSpace(t *testing.T) {
	opts := DefaultOptions()
	opts.KeepSpace = true
	out, err := DecodePayload[privateMessage](json.RawMessage(`{"receiver":" Carol ","text":"  indented\n"}`), opts)
	require.NoError(t, err)
	assert.Equal(t, " Carol ", out.Receiver)
	assert.Equal(t, "  indented\n", out.Text)

	out, err = DecodePayload[privateMessage](json.RawMessage(`{"receiver":"Bob","text":"   "}`), opts)
	require.NoError(t, err)
	assert.Equal(t, "   ", out.Text)
}

func TestDecodePayload_StringifiedObject(t *testing.T) {
	out, err := DecodePayload[privateMessage](json.RawMessage(`"{\"receiver\":\"all\",\"text\":\"yo\"}"`))
	require.NoError(t, err)
	assert.Equal(t, "all", out.Receiver)
}

func TestDecodePayload_WeakTypes(t *testing.T) {
	out, err := DecodePayload[privateMessage](json.RawMessage(`{"receiver":"Bob","text":42}`))
	require.NoError(t, err)
	assert.Equal(t, "42", out.Text)
}

func TestDecodePayload_Rejects(t *testing.T) {
	for _, raw := range []string{``, `[1,2]`, `"plain"`, `{bad`} {
		_, err := DecodePayload[privateMessage](json.RawMessage(raw))
		assert.Error(t, err, "payload %q", raw)
	}
}

func TestDecodeString(t *testing.T) {
	cases := map[string]string{
		`"Bob"`:                "Bob",
		`"  Alice "`:           "Alice",
		`7`:                    "7",
		`{"username":"Carol"}`: "Carol",
	}
	for raw, want := range cases {
		got, err := DecodeString(json.RawMessage(raw), "username")
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := DecodeString(json.RawMessage(`{"name":"x"}`), "username")
	assert.Error(t, err)
	_, err = DecodeString(json.RawMessage(`null`), "username")
	assert.Error(t, err)
}
