package funnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendabots/fleet-runtime/internal/domain"
)

type fakeSessions struct {
	session *domain.BumpSession
	putted  []*domain.BumpSession
	deleted []int64
}

func (f *fakeSessions) Put(ctx context.Context, s *domain.BumpSession) error {
	f.putted = append(f.putted, s)
	f.session = s
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, chatID int64) (*domain.BumpSession, error) {
	return f.session, nil
}

func (f *fakeSessions) Delete(ctx context.Context, chatID int64) error {
	f.deleted = append(f.deleted, chatID)
	f.session = nil
	return nil
}

func newBumpFixture(t *testing.T, sessions *fakeSessions) *Engine {
	t.Helper()
	return NewEngine(Deps{
		Logger:   testLogger(),
		Metrics:  testFleetMetrics(),
		Sessions: sessions,
		Configs:  &fakeConfigs{cfg: &domain.BotConfig{}},
		Clients:  noClients{},
	})
}

func twoBumpSession() *domain.BumpSession {
	return &domain.BumpSession{
		BotID:         7,
		ChatID:        555,
		OriginalPrice: 19.90,
		Description:   "Produto",
		MainIndex:     0,
		Bumps: []domain.OrderBump{
			{Enabled: true, Text: "Bump A", Price: 9.90},
			{Enabled: true, Text: "Bump B", Price: 4.90},
		},
		CreatedAt: time.Now(),
	}
}

func TestMultiBumpAcceptAdvancesSession(t *testing.T) {
	sessions := &fakeSessions{session: twoBumpSession()}
	engine := newBumpFixture(t, sessions)
	u := &domain.Update{BotID: 7, ChatID: 555}

	// The next prompt cannot go out without a live client, but the session
	// must already hold the accepted value by then.
	err := engine.handleMultiBumpAnswer(context.Background(), u, 0, 990, true)
	assert.Error(t, err)

	require.Len(t, sessions.putted, 1)
	s := sessions.putted[0]
	assert.Equal(t, []int{0}, s.Accepted)
	assert.InDelta(t, 9.90, s.BumpValue, 1e-9)
	assert.Equal(t, 1, s.CurrentIndex)
}

func TestMultiBumpDeclineAdvancesWithoutCharge(t *testing.T) {
	sessions := &fakeSessions{session: twoBumpSession()}
	engine := newBumpFixture(t, sessions)
	u := &domain.Update{BotID: 7, ChatID: 555}

	err := engine.handleMultiBumpAnswer(context.Background(), u, 0, 990, false)
	assert.Error(t, err)

	require.Len(t, sessions.putted, 1)
	s := sessions.putted[0]
	assert.Empty(t, s.Accepted)
	assert.Zero(t, s.BumpValue)
	assert.Equal(t, 1, s.CurrentIndex)
}

func TestMultiBumpOutOfStepAnswerIgnored(t *testing.T) {
	sessions := &fakeSessions{session: twoBumpSession()}
	engine := newBumpFixture(t, sessions)
	u := &domain.Update{BotID: 7, ChatID: 555}

	err := engine.handleMultiBumpAnswer(context.Background(), u, 1, 490, true)
	require.NoError(t, err)
	assert.Empty(t, sessions.putted)
	assert.Equal(t, 0, sessions.session.CurrentIndex)
}

func TestMultiBumpAnswerWithoutSessionIsNoop(t *testing.T) {
	sessions := &fakeSessions{}
	engine := newBumpFixture(t, sessions)
	u := &domain.Update{BotID: 7, ChatID: 555}

	err := engine.handleMultiBumpAnswer(context.Background(), u, 0, 990, true)
	require.NoError(t, err)
	assert.Empty(t, sessions.putted)
}

func TestMultiBumpAnswerForOtherBotIgnored(t *testing.T) {
	sessions := &fakeSessions{session: twoBumpSession()}
	engine := newBumpFixture(t, sessions)
	u := &domain.Update{BotID: 8, ChatID: 555}

	err := engine.handleMultiBumpAnswer(context.Background(), u, 0, 990, true)
	require.NoError(t, err)
	assert.Empty(t, sessions.putted)
}

func TestEnabledBumpsFiltersDisabled(t *testing.T) {
	bumps := []domain.OrderBump{
		{Enabled: true, Text: "A"},
		{Enabled: false, Text: "B"},
		{Enabled: true, Text: "C"},
	}
	got := enabledBumps(bumps)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Text)
	assert.Equal(t, "C", got[1].Text)
}
