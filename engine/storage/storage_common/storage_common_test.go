package storagecommon

import (
	"testing"

	"github.com/bmizerany/assert"
	"github.com/xiaonanln/gwscope/engine/entity"
)

func TestJoinKeyDistinct(t *testing.T) {
	assert.NotEqual(t, JoinKey(entity.MultiKey("Pet", "a", "b$c")), JoinKey(entity.MultiKey("Pet", "a$b", "c")))
	assert.NotEqual(t, JoinKey(entity.MultiKey("Pet", "a", "b/c")), JoinKey(entity.MultiKey("Pet", "a/b", "c")))
	assert.NotEqual(t, JoinKey(entity.SingleKey("Pet", "a$b")), JoinKey(entity.MultiKey("Pet", "a", "b")))
}

func TestKeyPartRoundTrip(t *testing.T) {
	for _, s := range []string{"", "U1", "a$b/c*?[]", "玩家"} {
		enc := EncodeKeyPart(s)
		dec, err := DecodeKeyPart(enc)
		assert.Equal(t, nil, err)
		assert.Equal(t, s, dec)
	}
	_, err := DecodeKeyPart("not$base64")
	assert.NotEqual(t, nil, err)
}

func TestOwnerPrefix(t *testing.T) {
	key := JoinKey(entity.MultiKey("Pet", "U1", "p1"))
	assert.Equal(t, OwnerPrefix("Pet", "U1")+EncodeKeyPart("p1"), key)
	assert.Equal(t, "Pet$VTE=$cDE=", key)
}
