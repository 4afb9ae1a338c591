package funnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendabots/fleet-runtime/internal/domain"
	fleetredis "github.com/vendabots/fleet-runtime/internal/infrastructure/redis"
	"github.com/vendabots/fleet-runtime/internal/telegram"
)

// fakeCoord grants every lease except the keys listed in denied, and
// records what was asked for.
type fakeCoord struct {
	denied   map[string]bool
	acquired []string
}

func (f *fakeCoord) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.acquired = append(f.acquired, key)
	return !f.denied[key], nil
}

func (f *fakeCoord) Release(ctx context.Context, key string) error { return nil }
func (f *fakeCoord) Heartbeat(ctx context.Context, botID uint, ttl time.Duration) error {
	return nil
}
func (f *fakeCoord) Alive(ctx context.Context, botID uint) (bool, error) { return true, nil }
func (f *fakeCoord) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 1, nil
}

type fakeMessages struct {
	domain.BotMessageRepository
	inserted []*domain.BotMessage
	lastOut  *time.Time
}

func (f *fakeMessages) Insert(ctx context.Context, m *domain.BotMessage) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeMessages) HasSimilarRecent(ctx context.Context, botID uint, chatID int64, text string, window time.Duration) (bool, error) {
	return false, nil
}

func (f *fakeMessages) LastOutboundAt(ctx context.Context, botID uint, chatID int64) (*time.Time, error) {
	return f.lastOut, nil
}

type fakeUsers struct {
	domain.BotUserRepository
	user *domain.BotUser
}

func (f *fakeUsers) GetOrCreate(ctx context.Context, botID uint, chatID int64, displayName string) (*domain.BotUser, error) {
	return f.user, nil
}

func (f *fakeUsers) ResetWelcome(ctx context.Context, botID uint, chatID int64) error { return nil }

type engineFixture struct {
	engine   *Engine
	coord    *fakeCoord
	sessions *fakeSessions
	messages *fakeMessages
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		coord:    &fakeCoord{denied: map[string]bool{}},
		sessions: &fakeSessions{},
		messages: &fakeMessages{},
	}
	f.engine = NewEngine(Deps{
		Logger:   testLogger(),
		Metrics:  testFleetMetrics(),
		Coord:    f.coord,
		Sessions: f.sessions,
		Messages: f.messages,
		Users:    &fakeUsers{user: &domain.BotUser{BotID: 7, ChatID: 555}},
		Configs:  &fakeConfigs{cfg: &domain.BotConfig{WelcomeText: "oi"}},
		Tracking: &fakeTracking{},
		Producer: &fakeProducer{},
		Sender:   telegram.NewSender(f.coord, f.messages, testFleetMetrics(), testLogger()),
		Clients:  noClients{},
	})
	return f
}

func TestHandleStartThrottledPerChat(t *testing.T) {
	f := newEngineFixture(t)
	f.coord.denied[fleetredis.StartKey(555)] = true

	u := &domain.Update{BotID: 7, ChatID: 555, Kind: domain.UpdateMessage, Text: "/start"}
	err := f.engine.HandleStart(context.Background(), u, "")
	require.NoError(t, err)

	assert.Contains(t, f.coord.acquired, fleetredis.StartKey(555))
	assert.Empty(t, f.sessions.deleted, "a throttled /start must not touch state")
}

func TestHandleStartRunsPipelineWhenLockFree(t *testing.T) {
	f := newEngineFixture(t)

	u := &domain.Update{BotID: 7, ChatID: 555, Kind: domain.UpdateMessage, Text: "/start"}
	// noClients kills the welcome send; the pipeline up to that point must
	// have run.
	err := f.engine.HandleStart(context.Background(), u, "")
	assert.Error(t, err)
	assert.Equal(t, []int64{555}, f.sessions.deleted)
}

func TestInboundTextLockDropsRedelivery(t *testing.T) {
	f := newEngineFixture(t)
	u := &domain.Update{BotID: 7, ChatID: 555, Kind: domain.UpdateMessage, Text: "quero comprar"}
	f.coord.denied[fleetredis.MsgKey(7, 555, u.Text)] = true

	f.engine.handleMessage(context.Background(), u, testLogger())

	assert.Contains(t, f.coord.acquired, fleetredis.MsgKey(7, 555, u.Text))
	assert.Empty(t, f.messages.inserted, "a redelivered text must not be logged twice")
}

func TestInboundTextProceedsWhenLockFree(t *testing.T) {
	f := newEngineFixture(t)
	recent := time.Now()
	f.messages.lastOut = &recent

	u := &domain.Update{BotID: 7, ChatID: 555, Kind: domain.UpdateMessage, Text: "quero comprar"}
	f.engine.handleMessage(context.Background(), u, testLogger())

	require.Len(t, f.messages.inserted, 1)
	assert.Equal(t, domain.DirectionInbound, f.messages.inserted[0].Direction)
}
