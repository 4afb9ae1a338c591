package funnel

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDeepLinkCompact(t *testing.T) {
	raw := `{"p":3,"e":"ext-1","s":"fb","m":"cpc","c":"summer","f":"a1b2c3d4","g":"G77"}`
	payload := "t" + base64.RawURLEncoding.EncodeToString([]byte(raw))

	dl, err := DecodeDeepLink(payload)
	require.NoError(t, err)
	assert.Equal(t, uint(3), dl.PoolID)
	assert.Equal(t, "ext-1", dl.ExternalID)
	assert.Equal(t, "fb", dl.UTMSource)
	assert.Equal(t, "cpc", dl.UTMMedium)
	assert.Equal(t, "summer", dl.UTMCampaign)
	assert.Equal(t, "a1b2c3d4", dl.FbclidHash)
	assert.Equal(t, "G77", dl.CampaignCode)
	assert.False(t, dl.Legacy)
}

func TestDecodeDeepLinkCompactPadded(t *testing.T) {
	raw := `{"p":9}`
	payload := "t" + base64.URLEncoding.EncodeToString([]byte(raw))

	dl, err := DecodeDeepLink(payload)
	require.NoError(t, err)
	assert.Equal(t, uint(9), dl.PoolID)
}

func TestDecodeDeepLinkLegacy(t *testing.T) {
	dl, err := DecodeDeepLink("pool_12_BOT12_1700000000_cafebabe")
	require.NoError(t, err)
	assert.Equal(t, uint(12), dl.PoolID)
	assert.Equal(t, "BOT12_1700000000_cafebabe", dl.ExternalID)
	assert.True(t, dl.Legacy)

	dl, err = DecodeDeepLink("pool_5")
	require.NoError(t, err)
	assert.Equal(t, uint(5), dl.PoolID)
	assert.Empty(t, dl.ExternalID)

	dl, err = DecodeDeepLink("p7")
	require.NoError(t, err)
	assert.Equal(t, uint(7), dl.PoolID)
	assert.True(t, dl.Legacy)
}

func TestDecodeDeepLinkEmpty(t *testing.T) {
	dl, err := DecodeDeepLink("")
	assert.NoError(t, err)
	assert.Nil(t, dl)

	dl, err = DecodeDeepLink("   ")
	assert.NoError(t, err)
	assert.Nil(t, dl)
}

func TestDecodeDeepLinkGarbage(t *testing.T) {
	for _, payload := range []string{"t!!!", "tnotb64===x", "pool_abc", "pxyz", "zzz"} {
		_, err := DecodeDeepLink(payload)
		assert.Error(t, err, "payload %q", payload)
	}
}
