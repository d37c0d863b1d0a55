package punishsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"punishment-bridge/cache"
	"punishment-bridge/forum"
	"punishment-bridge/model"
	"punishment-bridge/utils/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMessenger records every Discord call in memory.
type fakeMessenger struct {
	mu          sync.Mutex
	nextID      int
	threads     map[string]string // thread id -> title
	messages    map[string]*discordgo.MessageEmbed
	createCalls int
	createDelay time.Duration
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		threads:  make(map[string]string),
		messages: make(map[string]*discordgo.MessageEmbed),
	}
}

func (f *fakeMessenger) PlayerForumID() string    { return "player-forum" }
func (f *fakeMessenger) ModeratorForumID() string { return "mod-forum" }
func (f *fakeMessenger) LogChannelID() string     { return "log-channel" }

func (f *fakeMessenger) GetThread(threadID string) (*forum.Thread, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	title, ok := f.threads[threadID]
	if !ok {
		return nil, false
	}
	return &forum.Thread{ID: threadID, Name: title}, true
}

func (f *fakeMessenger) CreateThread(forumID, title string, starter *discordgo.MessageEmbed) (string, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	id := fmt.Sprintf("thread-%d", f.nextID)
	f.threads[id] = title
	f.messages[id+"/"+id] = starter // the starter shares the thread id
	return id, nil
}

func (f *fakeMessenger) SendMessage(channelID string, embed *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)
	f.messages[channelID+"/"+id] = embed
	return id, nil
}

func (f *fakeMessenger) EditMessage(channelID, messageID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channelID+"/"+messageID] = embed
	return nil
}

func (f *fakeMessenger) threadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

func (f *fakeMessenger) message(channelID, messageID string) *discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[channelID+"/"+messageID]
}

func (f *fakeMessenger) channelMessageCount(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for key := range f.messages {
		if strings.HasPrefix(key, channelID+"/") {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, cacheClient Cache) (*Service, *database.Store, *fakeMessenger) {
	t.Helper()
	store, err := database.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(false) })

	messenger := newFakeMessenger()
	settings := model.Settings{
		Workers:              4,
		ThreadLockWait:       5 * time.Second,
		StatsLockWait:        5 * time.Second,
		StatsRefreshInterval: time.Minute,
	}
	svc := New(store, cacheClient, messenger, nil, settings, zap.NewNop())
	return svc, store, messenger
}

func redisCache(t *testing.T) *cache.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	c := cache.NewWithClient(client, model.RedisConfig{}, zap.NewNop())
	t.Cleanup(func() {
		c.Close()
		mr.Close()
	})
	return c
}

func testPunishment(pt model.PunishmentType, externalID string, playerID uuid.UUID, duration *int64) *model.Punishment {
	p := model.NewPunishment(pt, playerID, "Steve",
		uuid.NullUUID{UUID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), Valid: true},
		"Alex", "griefing", duration)
	p.ExternalID = externalID
	return p
}

func TestPunishmentWorkflow(t *testing.T) {
	svc, store, messenger := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	duration := int64(3600)
	p := testPunishment(model.PunishmentBan, "lb-1", uuid.New(), &duration)
	svc.processPunishment(ctx, p)

	// The row is persisted with its dispatch state filled in.
	got, err := store.GetActivePunishmentByExternalID("lb-1")
	require.NoError(t, err)
	assert.True(t, got.Active)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, got.CreatedAt.Add(time.Hour), *got.ExpiresAt)
	require.NotNil(t, got.PlayerThreadID)
	require.NotNil(t, got.PlayerMessageID)
	require.NotNil(t, got.ModeratorThreadID)
	require.NotNil(t, got.ModeratorMessageID)
	require.NotNil(t, got.LogMessageID)

	// One thread per identity, player and moderator.
	assert.Equal(t, 2, messenger.threadCount())

	// Stats records were recomputed from the punishments table.
	rec, err := store.GetPlayerByID(p.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalPunishments)
	assert.Equal(t, 1, rec.ActivePunishments)

	mod, err := store.GetModeratorByID(p.ModeratorID.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, mod.TotalIssued)
	assert.Equal(t, 1, mod.ActiveIssued)
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, store, messenger := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	playerID := uuid.New()
	p := testPunishment(model.PunishmentBan, "lb-2", playerID, nil)
	svc.processPunishment(ctx, p)

	revocation := model.Revocation{
		Type:       model.PunishmentBan,
		ExternalID: "lb-2",
		Reason:     "appealed",
		Kind:       model.RevokeManual,
		At:         time.Now().UTC(),
	}
	svc.processRevocation(ctx, revocation)

	got, err := store.GetPunishmentByID(p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	firstRevokedAt := *got.RevokedAt

	// The punishment message was rewritten with the revoke embed.
	embed := messenger.message(*got.PlayerThreadID, *got.PlayerMessageID)
	require.NotNil(t, embed)
	assert.Contains(t, embed.Title, "Revoked")

	// A second revoke for the same external id is a no-op.
	svc.processRevocation(ctx, revocation)
	again, err := store.GetPunishmentByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, firstRevokedAt, *again.RevokedAt)

	rec, err := store.GetPlayerByID(playerID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalPunishments)
	assert.Equal(t, 0, rec.ActivePunishments)
}

func TestRevokePostsLogMessage(t *testing.T) {
	svc, store, messenger := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	p := testPunishment(model.PunishmentBan, "log-1", uuid.New(), nil)
	svc.processPunishment(ctx, p)
	before := messenger.channelMessageCount("log-channel")
	require.Equal(t, 1, before)

	svc.processRevocation(ctx, model.Revocation{
		Type:       model.PunishmentBan,
		ExternalID: "log-1",
		Reason:     "appealed",
		Kind:       model.RevokeManual,
		At:         time.Now().UTC(),
	})

	// The revoke appends its own log entry instead of rewriting the original.
	assert.Equal(t, before+1, messenger.channelMessageCount("log-channel"))

	got, err := store.GetPunishmentByID(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LogMessageID)
	embed := messenger.message("log-channel", *got.LogMessageID)
	require.NotNil(t, embed)
	assert.Contains(t, embed.Description, "lifted")
}

func TestRevokeWithoutTypeMatchesStoredRow(t *testing.T) {
	svc, store, _ := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	p := testPunishment(model.PunishmentBan, "lb-nt", uuid.New(), nil)
	svc.processPunishment(ctx, p)

	// Producers that correlate by id alone omit the type entirely.
	svc.processRevocation(ctx, model.Revocation{
		ExternalID: "lb-nt",
		Reason:     "appealed",
		Kind:       model.RevokeManual,
		At:         time.Now().UTC(),
	})

	got, err := store.GetPunishmentByID(p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// A typeless revoke still honors the stored row's policy.
	kick := testPunishment(model.PunishmentKick, "lb-nt-kick", uuid.New(), nil)
	svc.processPunishment(ctx, kick)
	svc.processRevocation(ctx, model.Revocation{
		ExternalID: "lb-nt-kick",
		Kind:       model.RevokeManual,
		At:         time.Now().UTC(),
	})
	still, err := store.GetActivePunishmentByExternalID("lb-nt-kick")
	require.NoError(t, err)
	assert.True(t, still.Active)
}

func TestRevokeUnknownExternalIDIsNoOp(t *testing.T) {
	svc, _, messenger := newTestService(t, cache.Disabled(zap.NewNop()))

	svc.processRevocation(context.Background(), model.Revocation{
		Type:       model.PunishmentBan,
		ExternalID: "never-seen",
		Kind:       model.RevokeManual,
		At:         time.Now().UTC(),
	})
	assert.Equal(t, 0, messenger.threadCount())
}

func TestKickIsNotRevocable(t *testing.T) {
	svc, store, _ := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	p := testPunishment(model.PunishmentKick, "lb-3", uuid.New(), nil)
	svc.processPunishment(ctx, p)

	// A kick is permanent and instantaneous.
	got, err := store.GetActivePunishmentByExternalID("lb-3")
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.True(t, got.IsPermanent())

	svc.processRevocation(ctx, model.Revocation{
		Type:       model.PunishmentKick,
		ExternalID: "lb-3",
		Kind:       model.RevokeManual,
		At:         time.Now().UTC(),
	})

	// Policy: the revoke is ignored, the row stays active.
	still, err := store.GetActivePunishmentByExternalID("lb-3")
	require.NoError(t, err)
	assert.True(t, still.Active)
}

func TestConcurrentPunishmentsCreateOneThread(t *testing.T) {
	svc, store, messenger := newTestService(t, redisCache(t))
	messenger.createDelay = 50 * time.Millisecond

	playerID := uuid.New()
	const workers = 4
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := testPunishment(model.PunishmentBan, fmt.Sprintf("race-%d", n), playerID, nil)
			svc.processPunishment(context.Background(), p)
		}()
	}
	wg.Wait()

	// One player thread and one moderator thread, regardless of the race.
	assert.Equal(t, 2, messenger.threadCount())

	total, err := store.CountPlayerPunishments(playerID, false)
	require.NoError(t, err)
	assert.Equal(t, workers, total)
}

func TestDuplicateExternalIDUpdatesExistingRow(t *testing.T) {
	svc, store, messenger := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	playerID := uuid.New()
	p1 := testPunishment(model.PunishmentBan, "dup-1", playerID, nil)
	svc.processPunishment(ctx, p1)
	threadsAfterFirst := messenger.threadCount()

	p2 := testPunishment(model.PunishmentBan, "dup-1", playerID, nil)
	p2.Reason = "updated reason"
	svc.processPunishment(ctx, p2)

	// Still one row, updated in place, no new threads or messages.
	got, err := store.GetActivePunishmentByExternalID("dup-1")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, got.ID)
	assert.Equal(t, "updated reason", got.Reason)
	assert.Equal(t, threadsAfterFirst, messenger.threadCount())

	total, err := store.CountPlayerPunishments(playerID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDeadThreadIsRecreated(t *testing.T) {
	svc, store, messenger := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	playerID := uuid.New()
	p1 := testPunishment(model.PunishmentBan, "dead-1", playerID, nil)
	svc.processPunishment(ctx, p1)

	// Simulate the thread being deleted on Discord.
	rec, err := store.GetPlayerByID(playerID)
	require.NoError(t, err)
	require.NotNil(t, rec.DiscordThreadID)
	messenger.mu.Lock()
	delete(messenger.threads, *rec.DiscordThreadID)
	messenger.mu.Unlock()

	p2 := testPunishment(model.PunishmentBan, "dead-2", playerID, nil)
	svc.processPunishment(ctx, p2)

	got, err := store.GetActivePunishmentByExternalID("dead-2")
	require.NoError(t, err)
	require.NotNil(t, got.PlayerThreadID)
	assert.NotEqual(t, *rec.DiscordThreadID, *got.PlayerThreadID)
}

func TestExpirySweepRevokes(t *testing.T) {
	svc, store, _ := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	short := int64(1)
	p := testPunishment(model.PunishmentBan, "exp-1", uuid.New(), &short)
	p.CreatedAt = time.Now().UTC().Add(-time.Hour)
	p.SetDuration(&short)
	require.NoError(t, store.SavePunishment(p))

	svc.SweepExpired(ctx)
	svc.Close() // drain the pool

	got, err := store.GetPunishmentByID(p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.RevokeKind)
	assert.Equal(t, model.RevokeExpired, *got.RevokeKind)
}

func TestRedispatchSkipsRevokedRows(t *testing.T) {
	svc, store, messenger := newTestService(t, cache.Disabled(zap.NewNop()))
	ctx := context.Background()

	// A row that was revoked before its messages ever went out must stay
	// out of the audit channel.
	p := testPunishment(model.PunishmentBan, "stale-1", uuid.New(), nil)
	p.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.SavePunishment(p))
	p.Revoke(model.RevokeManual, "appealed", uuid.NullUUID{}, "", time.Now().UTC())
	require.NoError(t, store.UpdatePunishment(p))

	svc.RedispatchStale(ctx)
	svc.Close()

	assert.Equal(t, 0, messenger.threadCount())
	assert.Equal(t, 0, messenger.channelMessageCount("log-channel"))
}

func TestConcurrentDuplicateEventsCreateOneRow(t *testing.T) {
	svc, store, _ := newTestService(t, redisCache(t))

	playerID := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := testPunishment(model.PunishmentBan, "dup-race", playerID, nil)
			svc.processPunishment(context.Background(), p)
		}()
	}
	wg.Wait()

	// The write lock serializes check and insert per external id.
	total, err := store.CountPlayerPunishments(playerID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSubmitRunsAsync(t *testing.T) {
	svc, store, _ := newTestService(t, cache.Disabled(zap.NewNop()))

	p := testPunishment(model.PunishmentMute, "async-1", uuid.New(), nil)
	svc.SubmitPunishment(p)
	svc.Close()

	got, err := store.GetActivePunishmentByExternalID("async-1")
	require.NoError(t, err)
	assert.Equal(t, model.PunishmentMute, got.Type)
}
