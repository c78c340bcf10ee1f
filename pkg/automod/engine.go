package automod

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/logging"
	"golang.org/x/time/rate"
)

// MaxBulkDeleteAge is the platform's age cutoff for bulk deletion; older
// messages can only be removed one at a time.
const MaxBulkDeleteAge = 14 * 24 * time.Hour

// storeRetentionFactor scales the time window into the retention period the
// store sweep uses before dropping a user's state.
const storeRetentionFactor = 5

// logThrottleFactor scales the time window into the per-user spam log
// throttle.
const logThrottleFactor = 2

// Discord is the slice of the platform session the moderation subsystem
// uses. *discordgo.Session satisfies it; tests substitute a fake.
type Discord interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
}

// Config holds the moderation thresholds.
type Config struct {
	// MessageLimit is how many messages a user may send inside TimeWindow
	// before the spam response triggers.
	MessageLimit int

	// TimeWindow is the sliding window the limit applies over.
	TimeWindow time.Duration

	// WarnCooldown is the minimum gap between spam warnings to one user.
	WarnCooldown time.Duration

	// MuteDuration is how long a muted user stays timed out.
	MuteDuration time.Duration

	// MuteStrikes is how many warnings escalate into a mute.
	MuteStrikes int

	// LogChannelID receives moderation event embeds. Empty disables logging
	// to a channel.
	LogChannelID string

	// BlacklistedTerms feeds the content blacklist filter.
	BlacklistedTerms []string
}

// Engine applies content filters and the spam rate limit to inbound guild
// messages.
type Engine struct {
	l       *slog.Logger
	s       Discord
	cfg     Config
	store   Store
	filters []Filter

	// limiter paces per-message deletions when bulk deletion is unavailable.
	limiter *rate.Limiter

	// now is the clock, injectable for tests.
	now func() time.Time

	// mu guards read-modify-write cycles on the store.
	mu sync.Mutex
}

// NewEngine creates the moderation engine.
func NewEngine(l *slog.Logger, s Discord, store Store, cfg Config) *Engine {
	return &Engine{
		l:     l,
		s:     s,
		cfg:   cfg,
		store: store,
		filters: []Filter{
			NewBlacklistFilter(cfg.BlacklistedTerms),
			NewInviteFilter(),
		},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
		now:     time.Now,
	}
}

// HandleMessage runs a message through the content filters and then the
// spam rate check. It returns true when the message was acted on, so the
// caller knows not to treat it as ticket activity. Bot and DM messages are
// ignored.
func (e *Engine) HandleMessage(ctx context.Context, m *discordgo.Message) bool {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return false
	}

	for _, f := range e.filters {
		matches := f.Check(m.Content)
		if len(matches) == 0 {
			continue
		}
		e.enforceFilter(ctx, m, f, matches)
		// A removed message does not count towards the spam window.
		return true
	}

	return e.checkRate(ctx, m)
}

// enforceFilter removes the message, tells the author why over DM, and logs
// the removal. Filter hits never escalate towards a mute.
func (e *Engine) enforceFilter(ctx context.Context, m *discordgo.Message, f Filter, matches []string) {
	if err := e.s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		e.l.Error("Error deleting filtered message",
			slog.String("filter", f.Name()),
			slog.String(logging.KeyChannel, m.ChannelID),
			slog.String(logging.KeyError, err.Error()))
	}

	e.dmAuthor(m.Author.ID, fmt.Sprintf("Your message in <#%s> was removed: %s.", m.ChannelID, f.Reason()))

	e.logEvent(&discordgo.MessageEmbed{
		Title: "Message removed",
		Color: 0xff0000,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Filter", Value: f.Name(), Inline: true},
			{Name: "Author", Value: fmt.Sprintf("<@%s>", m.Author.ID), Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", m.ChannelID), Inline: true},
			{Name: "Matched", Value: strings.Join(matches, ", ")},
			{Name: "Content", Value: truncate(m.Content, 1024)},
		},
		Timestamp: e.now().Format(time.RFC3339),
	})
}

// rateDecision is what a single message does to the author's spam state.
type rateDecision struct {
	spam  bool
	warn  bool
	mute  bool
	logIt bool
	count int
}

// checkRate records the message in the author's sliding window and, when
// the limit is breached, deletes the burst, warns on a cooldown and mutes
// after repeated strikes.
func (e *Engine) checkRate(ctx context.Context, m *discordgo.Message) bool {
	d := e.recordMessage(m.Author.ID)
	if !d.spam {
		return false
	}

	e.deleteRecent(ctx, m, d.count)

	if d.warn {
		e.dmAuthor(m.Author.ID, fmt.Sprintf(
			"You are sending messages too quickly in <#%s>. Slow down or you will be temporarily muted.", m.ChannelID))
	}

	if d.mute {
		until := e.now().Add(e.cfg.MuteDuration)
		if err := e.s.GuildMemberTimeout(m.GuildID, m.Author.ID, &until); err != nil {
			e.l.Error("Error muting member",
				slog.String(logging.KeyGuild, m.GuildID),
				slog.String(logging.KeyUser, m.Author.ID),
				slog.String(logging.KeyError, err.Error()))
		} else {
			e.dmAuthor(m.Author.ID, fmt.Sprintf(
				"You have been muted for %s for repeated spam.", e.cfg.MuteDuration))
		}
	}

	if d.logIt {
		title := "Spam detected"
		if d.mute {
			title = "Spammer muted"
		}
		e.logEvent(&discordgo.MessageEmbed{
			Title: title,
			Color: 0xffa500,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Author", Value: fmt.Sprintf("<@%s>", m.Author.ID), Inline: true},
				{Name: "Channel", Value: fmt.Sprintf("<#%s>", m.ChannelID), Inline: true},
				{Name: "Messages in window", Value: fmt.Sprintf("%d", d.count), Inline: true},
			},
			Timestamp: e.now().Format(time.RFC3339),
		})
	}

	return true
}

// recordMessage is the single mutation point for a user's window. The whole
// read-modify-write runs under the engine lock so concurrent gateway events
// cannot lose counts.
func (e *Engine) recordMessage(userID string) rateDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	w := e.store.Get(userID)
	if w == nil {
		w = &Window{}
	}

	w.Timestamps = append(w.Timestamps, now)
	w.prune(now, e.cfg.TimeWindow)

	d := rateDecision{count: len(w.Timestamps)}
	if d.count > e.cfg.MessageLimit {
		d.spam = true

		if now.Sub(w.LastWarnAt) >= e.cfg.WarnCooldown {
			d.warn = true
			w.LastWarnAt = now
			w.StrikeCount++
			if w.StrikeCount >= e.cfg.MuteStrikes {
				d.mute = true
				w.StrikeCount = 0
			}
		}

		if now.Sub(w.LastLogAt) >= logThrottleFactor*e.cfg.TimeWindow {
			d.logIt = true
			w.LastLogAt = now
		}
	}

	e.store.Put(userID, w)
	return d
}

// deleteRecent removes the author's burst from the channel. Bulk deletion
// is tried first; when it fails (or for messages past the bulk age cutoff)
// the fallback deletes one by one behind the pacing limiter.
func (e *Engine) deleteRecent(ctx context.Context, m *discordgo.Message, count int) {
	limit := count + 5
	if limit > 100 {
		limit = 100
	}
	msgs, err := e.s.ChannelMessages(m.ChannelID, limit, "", "", "")
	if err != nil {
		e.l.Error("Error fetching messages for spam cleanup",
			slog.String(logging.KeyChannel, m.ChannelID),
			slog.String(logging.KeyError, err.Error()))
		return
	}

	now := e.now()
	cutoff := now.Add(-e.cfg.TimeWindow)
	var bulk []string
	var individual []string
	for _, msg := range msgs {
		if msg.Author == nil || msg.Author.ID != m.Author.ID {
			continue
		}
		if msg.Timestamp.Before(cutoff) {
			continue
		}
		if now.Sub(msg.Timestamp) >= MaxBulkDeleteAge {
			individual = append(individual, msg.ID)
			continue
		}
		bulk = append(bulk, msg.ID)
	}

	if len(bulk) == 1 {
		individual = append(individual, bulk[0])
		bulk = nil
	}

	if len(bulk) > 0 {
		if err := e.s.ChannelMessagesBulkDelete(m.ChannelID, bulk); err != nil {
			e.l.Warn("Bulk delete failed, falling back to individual deletes",
				slog.String(logging.KeyChannel, m.ChannelID),
				slog.String(logging.KeyError, err.Error()))
			individual = append(individual, bulk...)
		}
	}

	for _, id := range individual {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		if err := e.s.ChannelMessageDelete(m.ChannelID, id); err != nil {
			e.l.Error("Error deleting spam message",
				slog.String(logging.KeyChannel, m.ChannelID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
}

// SweepStore drops windows that have gone quiet so the store does not grow
// with every user ever seen.
func (e *Engine) SweepStore() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	retention := storeRetentionFactor * e.cfg.TimeWindow
	for _, userID := range e.store.UserIDs() {
		w := e.store.Get(userID)
		if w == nil {
			continue
		}
		w.prune(now, retention)
		if w.quiescent(now, retention) {
			e.store.Delete(userID)
			continue
		}
		e.store.Put(userID, w)
	}
}

// dmAuthor sends a best-effort DM; users with DMs disabled are skipped.
func (e *Engine) dmAuthor(userID, content string) {
	dm, err := e.s.UserChannelCreate(userID)
	if err != nil {
		e.l.Warn("Could not open DM channel",
			slog.String(logging.KeyUser, userID),
			slog.String(logging.KeyError, err.Error()))
		return
	}
	if _, err := e.s.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{Content: content}); err != nil {
		e.l.Warn("Could not DM user",
			slog.String(logging.KeyUser, userID),
			slog.String(logging.KeyError, err.Error()))
	}
}

func (e *Engine) logEvent(embed *discordgo.MessageEmbed) {
	if e.cfg.LogChannelID == "" {
		return
	}
	if _, err := e.s.ChannelMessageSendComplex(e.cfg.LogChannelID, &discordgo.MessageSend{Embed: embed}); err != nil {
		e.l.Error("Error logging moderation event",
			slog.String(logging.KeyChannel, e.cfg.LogChannelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
