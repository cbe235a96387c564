package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []interface{}{
		Submit{Value: []byte("payload")},
		PrepareReq{IID: 42, Ballot: 7},
		PrepareAck{AcceptorID: 2, IID: 42, Ballot: 7, ValueBallot: 3, Value: []byte("prior")},
		PrepareAck{AcceptorID: 2, IID: 42, Ballot: 7}, // no prior value
		AcceptReq{IID: 42, Ballot: 7, Value: []byte("v")},
		AcceptAck{AcceptorID: 1, IID: 42, Ballot: 7, Value: []byte("v")},
	}
	for _, in := range cases {
		typ, payload, err := Encode(in)
		require.NoError(t, err)
		out, err := Decode(typ, payload)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, TypeAcceptReq, []byte("hello")))

	typ, payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, TypeAcceptReq, typ)
	assert.Equal(t, []byte("hello"), payload)
}

func TestReadFrameRejectsOversizedDataSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, TypeSubmit, nil))
	// corrupt the data_size field to exceed MaxFrameSize
	raw := buf.Bytes()
	raw[2], raw[3], raw[4], raw[5] = 0xff, 0xff, 0xff, 0xff
	_, _, err := ReadFrame(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}
