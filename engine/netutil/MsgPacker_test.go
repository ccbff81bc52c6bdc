package netutil

import (
	"testing"

	"github.com/bmizerany/assert"
	"github.com/google/uuid"
)

type testMsg struct {
	ID        string
	F1        float64
	F2        int
	ListField []interface{}
	MapField  map[string]interface{}
}

func BenchmarkMessagePackMsgPacker(b *testing.B) {
	packer := MessagePackMsgPacker{}
	msg := testMsg{
		ID:        "abc",
		F1:        0.123124234,
		ListField: []interface{}{1, 2, 3, "abc", "def"},
		MapField:  map[string]interface{}{},
	}
	for i := 0; i < 100; i++ {
		msg.MapField[uuid.NewString()] = uuid.NewString()
	}

	var totalSize int64
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 0, 100)
		buf, _ = packer.PackMsg(msg, buf)
		totalSize += int64(len(buf))

		var restoreMsg map[string]interface{}
		_ = packer.UnpackMsg(buf, &restoreMsg)
	}
	b.Logf("average size: %d", totalSize/int64(b.N))
}

func TestMessagePackMsgPacker_UnpackMsg(t *testing.T) {
	msg := map[string]interface{}{
		"a": 1,
		"b": 2,
		"c": map[string]interface{}{
			"d": 1,
		},
	}
	buf, err := MessagePackMsgPacker{}.PackMsg(msg, nil)
	assert.Equal(t, nil, err)

	var outmsg map[string]interface{}
	assert.Equal(t, nil, MessagePackMsgPacker{}.UnpackMsg(buf, &outmsg))
	if _, ok := outmsg["c"].(map[interface{}]interface{}); ok {
		t.Errorf("should not unpack with type map[interface{}]interface{}")
	}
	assert.Equal(t, 3, len(outmsg))
}

func TestIsConnectionError(t *testing.T) {
	assert.T(t, !IsConnectionError(nil))
	assert.T(t, !IsConnectionError("not an error"))
}
