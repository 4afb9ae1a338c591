package funnel

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

func TestSynthesizeBrowserIDs(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = time.Now }()

	p := &domain.TrackingPayload{Fbclid: "click123"}
	synthesizeBrowserIDs(p, -987654)

	assert.Equal(t, fmt.Sprintf("fb.1.%d.987654", fixed.UnixMilli()), p.Fbp, "negative chat ids are folded to positive")
	assert.Equal(t, fmt.Sprintf("fb.1.%d.click123", fixed.UnixMilli()), p.Fbc)
}

func TestSynthesizeBrowserIDsKeepsRealCookies(t *testing.T) {
	p := &domain.TrackingPayload{Fbp: "fb.1.1.real", Fbc: "fb.1.1.realc", Fbclid: "x"}
	synthesizeBrowserIDs(p, 1)
	assert.Equal(t, "fb.1.1.real", p.Fbp)
	assert.Equal(t, "fb.1.1.realc", p.Fbc)
}

func TestSynthesizeBrowserIDsNoFbcWithoutFbclid(t *testing.T) {
	p := &domain.TrackingPayload{}
	synthesizeBrowserIDs(p, 5)
	assert.NotEmpty(t, p.Fbp)
	assert.Empty(t, p.Fbc, "fbc without a click id is worse than none")
}

func TestTrackingPayloadMerge(t *testing.T) {
	p := &domain.TrackingPayload{Fbclid: "mine", UTMSource: "fb"}
	p.Merge(&domain.TrackingPayload{Fbclid: "theirs", UTMSource: "ig", UTMMedium: "cpc", PoolID: 4})

	assert.Equal(t, "mine", p.Fbclid, "captured data is never overwritten")
	assert.Equal(t, "fb", p.UTMSource)
	assert.Equal(t, "cpc", p.UTMMedium, "empty fields are filled")
	assert.Equal(t, uint(4), p.PoolID)

	p.Merge(nil) // no-op
	assert.Equal(t, "mine", p.Fbclid)
}

func TestMetaEventID(t *testing.T) {
	a := metaEventID("purchase", "BOT1_1_abc")
	b := metaEventID("purchase", "BOT1_1_abc")
	c := metaEventID("purchase", "BOT1_1_abd")

	assert.Equal(t, a, b, "same parts, same id")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)

	// Separator keeps ("ab","c") and ("a","bc") apart.
	assert.NotEqual(t, metaEventID("ab", "c"), metaEventID("a", "bc"))
}

func TestMintExternalID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := mintExternalID(7, now)

	assert.True(t, strings.HasPrefix(id, "BOT7_1700000000_"), "got %s", id)
	parts := strings.Split(id, "_")
	assert.Len(t, parts, 3)
	assert.Len(t, parts[2], 8)

	assert.NotEqual(t, id, mintExternalID(7, now), "entropy suffix differs per mint")
}

func TestDownsellJobID(t *testing.T) {
	assert.Equal(t, "downsell_3_99_1", downsellJobID(3, 99, 1))
}

func TestRateLimitErrorUnwraps(t *testing.T) {
	err := &RateLimitError{Wait: 30 * time.Second}
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestBumpSessionExpired(t *testing.T) {
	now := time.Now()

	fresh := &domain.BumpSession{CreatedAt: now.Add(-29 * time.Minute)}
	assert.False(t, fresh.Expired(now))

	boundary := &domain.BumpSession{CreatedAt: now.Add(-30 * time.Minute)}
	assert.True(t, boundary.Expired(now), "exactly thirty minutes is expired")
}
