package automod

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/stretchr/testify/require"
)

const (
	modGuildID    = "guild-1"
	modChannelID  = "general"
	modLogChannel = "mod-logs"
)

type timeoutCall struct {
	guildID string
	userID  string
	until   time.Time
}

// fakeModSession records every moderation action the engine takes.
type fakeModSession struct {
	mu sync.Mutex

	// history is the canned channel content returned by ChannelMessages.
	history map[string][]*discordgo.Message

	sent        map[string][]*discordgo.Message
	deleted     []string
	bulkDeleted [][]string
	bulkErr     error
	dms         map[string]string
	timeouts    []timeoutCall
	nextID      int
}

func newFakeModSession() *fakeModSession {
	return &fakeModSession{
		history: make(map[string][]*discordgo.Message),
		sent:    make(map[string][]*discordgo.Message),
		dms:     make(map[string]string),
	}
}

func (f *fakeModSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeModSession) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]*discordgo.Message(nil), msgs...), nil
}

func (f *fakeModSession) ChannelMessagesBulkDelete(channelID string, messages []string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulkDeleted = append(f.bulkDeleted, messages)
	return nil
}

func (f *fakeModSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	m := &discordgo.Message{
		ID:        fmt.Sprintf("sent-%d", f.nextID),
		ChannelID: channelID,
		Content:   data.Content,
	}
	if data.Embed != nil {
		m.Embeds = []*discordgo.MessageEmbed{data.Embed}
	}
	f.sent[channelID] = append(f.sent[channelID], m)
	return m, nil
}

func (f *fakeModSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.dms[recipientID]; ok {
		return &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeDM}, nil
	}
	f.nextID++
	id := fmt.Sprintf("dm-%d", f.nextID)
	f.dms[recipientID] = id
	return &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeModSession) GuildMemberTimeout(guildID, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := timeoutCall{guildID: guildID, userID: userID}
	if until != nil {
		call.until = *until
	}
	f.timeouts = append(f.timeouts, call)
	return nil
}

func (f *fakeModSession) sentTo(channelID string) []*discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.Message(nil), f.sent[channelID]...)
}

func testConfig() Config {
	return Config{
		MessageLimit:     5,
		TimeWindow:       10 * time.Second,
		WarnCooldown:     60 * time.Second,
		MuteDuration:     5 * time.Minute,
		MuteStrikes:      3,
		LogChannelID:     modLogChannel,
		BlacklistedTerms: []string{"badword"},
	}
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeModSession) {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := newFakeModSession()
	e := NewEngine(l, f, NewMemoryStore(), cfg)
	return e, f
}

// burst feeds n messages from one author through the engine at the given
// time, registering each in the fake's channel history first so cleanup can
// find them.
func burst(e *Engine, f *fakeModSession, n int, at time.Time) (acted int) {
	for i := 0; i < n; i++ {
		f.mu.Lock()
		f.nextID++
		m := &discordgo.Message{
			ID:        fmt.Sprintf("burst-%d", f.nextID),
			ChannelID: modChannelID,
			GuildID:   modGuildID,
			Author:    &discordgo.User{ID: "spammer-1", Username: "Spammer"},
			Content:   "hello",
			Timestamp: at,
		}
		f.history[modChannelID] = append(f.history[modChannelID], m)
		f.mu.Unlock()

		if e.HandleMessage(context.Background(), m) {
			acted++
		}
	}
	return acted
}

func TestEngineSpamBurst(t *testing.T) {
	e, f := newTestEngine(t, testConfig())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	acted := burst(e, f, 6, base)
	require.Equal(t, 1, acted)

	// The burst was bulk deleted.
	require.Len(t, f.bulkDeleted, 1)
	require.Len(t, f.bulkDeleted[0], 6)

	// Exactly one warning DM.
	dmID := f.dms["spammer-1"]
	require.NotEmpty(t, dmID)
	require.Len(t, f.sentTo(dmID), 1)

	// One log embed.
	require.Len(t, f.sentTo(modLogChannel), 1)

	// No mute on the first strike.
	require.Empty(t, f.timeouts)
}

func TestEngineWarnCooldownAndLogThrottle(t *testing.T) {
	e, f := newTestEngine(t, testConfig())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	burst(e, f, 8, base)

	// Messages 6 through 8 all breach the limit, but the cooldown keeps it
	// to one DM and the throttle to one log entry.
	dmID := f.dms["spammer-1"]
	require.Len(t, f.sentTo(dmID), 1)
	require.Len(t, f.sentTo(modLogChannel), 1)
}

func TestEngineMuteAfterStrikes(t *testing.T) {
	cfg := testConfig()
	cfg.WarnCooldown = 0
	e, f := newTestEngine(t, cfg)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	// With no cooldown every breach is a strike: messages 6, 7 and 8 are
	// strikes 1 through 3, so the third one mutes.
	burst(e, f, 8, base)

	require.Len(t, f.timeouts, 1)
	require.Equal(t, "spammer-1", f.timeouts[0].userID)
	require.Equal(t, base.Add(cfg.MuteDuration), f.timeouts[0].until)

	// The strike count reset with the mute: the next breach is strike 1
	// again, no second mute.
	burst(e, f, 1, base)
	require.Len(t, f.timeouts, 1)
}

func TestEngineWindowSlides(t *testing.T) {
	e, f := newTestEngine(t, testConfig())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	e.now = func() time.Time { return base }
	require.Zero(t, burst(e, f, 5, base))

	// The earlier messages have aged out of the window, so five more do not
	// trip the limit.
	later := base.Add(11 * time.Second)
	e.now = func() time.Time { return later }
	require.Zero(t, burst(e, f, 5, later))
}

func TestEngineBulkDeleteFallback(t *testing.T) {
	e, f := newTestEngine(t, testConfig())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	f.bulkErr = fmt.Errorf("bulk delete refused")

	burst(e, f, 6, base)

	// Every message in the burst was removed one by one.
	require.Len(t, f.deleted, 6)
}

func TestEngineBlacklistFilter(t *testing.T) {
	e, f := newTestEngine(t, testConfig())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	m := &discordgo.Message{
		ID:        "bad-1",
		ChannelID: modChannelID,
		GuildID:   modGuildID,
		Author:    &discordgo.User{ID: "user-1", Username: "User"},
		Content:   "this contains a BadWord in the middle",
		Timestamp: base,
	}
	require.True(t, e.HandleMessage(context.Background(), m))

	require.Equal(t, []string{"bad-1"}, f.deleted)
	require.Len(t, f.sentTo(f.dms["user-1"]), 1)
	require.Len(t, f.sentTo(modLogChannel), 1)

	// Filter hits do not feed the spam window.
	require.Nil(t, e.store.Get("user-1"))
}

func TestEngineInviteFilter(t *testing.T) {
	e, f := newTestEngine(t, testConfig())

	m := &discordgo.Message{
		ID:        "inv-1",
		ChannelID: modChannelID,
		GuildID:   modGuildID,
		Author:    &discordgo.User{ID: "user-1", Username: "User"},
		Content:   "join us at discord.gg/abc123",
	}
	require.True(t, e.HandleMessage(context.Background(), m))
	require.Equal(t, []string{"inv-1"}, f.deleted)
}

func TestEngineIgnoresBotsAndDMs(t *testing.T) {
	e, f := newTestEngine(t, testConfig())

	bot := &discordgo.Message{
		ID:        "bot-1",
		ChannelID: modChannelID,
		GuildID:   modGuildID,
		Author:    &discordgo.User{ID: "bot", Bot: true},
		Content:   "discord.gg/abc123",
	}
	require.False(t, e.HandleMessage(context.Background(), bot))

	dm := &discordgo.Message{
		ID:        "dm-1",
		ChannelID: "dm-chan",
		Author:    &discordgo.User{ID: "user-1"},
		Content:   "discord.gg/abc123",
	}
	require.False(t, e.HandleMessage(context.Background(), dm))

	require.Empty(t, f.deleted)
}

func TestEngineSweepStore(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	e.store.Put("quiet", &Window{Timestamps: []time.Time{base.Add(-time.Hour)}})
	e.store.Put("active", &Window{Timestamps: []time.Time{base.Add(-time.Second)}})
	e.store.Put("warned", &Window{LastWarnAt: base.Add(-time.Second)})

	e.SweepStore()

	require.Nil(t, e.store.Get("quiet"))
	require.NotNil(t, e.store.Get("active"))
	require.NotNil(t, e.store.Get("warned"))
}
