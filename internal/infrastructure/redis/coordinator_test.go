package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKeyFormats(t *testing.T) {
	assert.Equal(t, "update:900001", UpdateKey(900001))
	assert.Equal(t, "start:123", StartKey(123))
	assert.Equal(t, "start_process:7:123", StartProcessKey(7, 123))
	assert.Equal(t, "last_start:123", LastStartKey(123))
	assert.Equal(t, "start:bot:7", BotStartKey(7))
	assert.Equal(t, "bot_heartbeat:7", HeartbeatKey(7))
}

func TestMsgKeyEmbedsTextHash(t *testing.T) {
	a := MsgKey(1, 2, "oi")
	b := MsgKey(1, 2, "tchau")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "msg:1:2:")
}

func TestShortHash(t *testing.T) {
	h := ShortHash("hello")
	assert.Len(t, h, 8)
	assert.Equal(t, h, ShortHash("hello"))
	assert.NotEqual(t, h, ShortHash("hello "))
}

func TestContentHash(t *testing.T) {
	base := ContentHash("text", "media", "buttons")
	assert.Len(t, base, 32)
	assert.NotEqual(t, base, ContentHash("text", "media", "other"))

	// The separator keeps field boundaries from colliding.
	assert.NotEqual(t, ContentHash("ab", "", ""), ContentHash("a", "b", ""))
}

func TestSendKeys(t *testing.T) {
	assert.Equal(t, "send_media_and_text:42:abc", SendMediaAndTextKey(42, "abc"))
	assert.Equal(t, "send_text_only:42:def", SendTextOnlyKey(42, "def"))
}
