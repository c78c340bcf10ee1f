package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/logging"
)

// SchedulerConfig holds the inactivity thresholds.
type SchedulerConfig struct {
	// WarnAfter is the idle duration after which the opener is warned once.
	WarnAfter time.Duration

	// CloseAfter is the idle duration after which the ticket is finalized.
	CloseAfter time.Duration

	// StaffRoleID is mentioned in inactivity warnings.
	StaffRoleID string
}

// Scheduler periodically sweeps every guild's tickets for inactivity,
// warning idle openers and finalizing abandoned tickets.
type Scheduler struct {
	l      *slog.Logger
	s      Discord
	repo   Repository
	engine *Engine

	// bot is the acting user for automatic closures.
	bot *discordgo.User

	cfg SchedulerConfig

	// now is the clock, injectable for tests.
	now func() time.Time

	// mu serializes sweeps. A sweep that overruns the interval is skipped,
	// not queued.
	mu sync.Mutex
}

// NewScheduler creates the inactivity scheduler. bot is the session's own
// user, used as the actor on automatic closures.
func NewScheduler(l *slog.Logger, s Discord, repo Repository, engine *Engine, bot *discordgo.User, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		l:      l,
		s:      s,
		repo:   repo,
		engine: engine,
		bot:    bot,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Sweep walks every ticket in every guild once. It returns immediately when
// a previous sweep is still running.
func (sc *Scheduler) Sweep(ctx context.Context) {
	if !sc.mu.TryLock() {
		sc.l.Warn("Previous ticket sweep still running, skipping")
		return
	}
	defer sc.mu.Unlock()

	guilds, err := sc.s.UserGuilds(100, "", "")
	if err != nil {
		sc.l.Error("Error listing guilds for sweep", slog.String(logging.KeyError, err.Error()))
		return
	}

	for _, g := range guilds {
		sc.sweepGuild(ctx, g.ID)
	}
}

func (sc *Scheduler) sweepGuild(ctx context.Context, guildID string) {
	open, err := sc.repo.List(ctx, guildID)
	if err != nil {
		sc.l.Error("Error listing tickets for sweep",
			slog.String(logging.KeyGuild, guildID),
			slog.String(logging.KeyError, err.Error()))
		return
	}

	now := sc.now()
	for channelID, t := range open {
		if t.Archived {
			continue
		}

		idle := now.Sub(t.LastActivityTime())
		switch {
		case idle >= sc.cfg.CloseAfter:
			reason := fmt.Sprintf("Closed automatically after %.0fh of inactivity.", sc.cfg.CloseAfter.Hours())
			if _, err := sc.engine.Finalize(ctx, channelID, sc.bot, nil, reason); err != nil &&
				!errors.Is(err, ErrTicketClosing) && !errors.Is(err, ErrNotFound) {
				sc.l.Error("Error auto-finalizing ticket",
					slog.String(logging.KeyChannel, channelID),
					slog.String(logging.KeyError, err.Error()))
			}
		case idle >= sc.cfg.WarnAfter && !t.WarningSent:
			sc.warn(ctx, channelID, t.UserID)
		}
	}
}

// warn posts the single pre-closure warning into the ticket channel and
// marks it sent. The mark persists with the ticket, so a restart between
// sweeps does not repeat the warning.
func (sc *Scheduler) warn(ctx context.Context, channelID, openerID string) {
	remaining := sc.cfg.CloseAfter - sc.cfg.WarnAfter
	if _, err := sc.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> <@&%s>", openerID, sc.cfg.StaffRoleID),
		Embed: &discordgo.MessageEmbed{
			Title: "Inactivity notice",
			Description: fmt.Sprintf("This ticket has seen no activity for a while and will be closed "+
				"automatically in about %.0fh unless someone writes here.", remaining.Hours()),
			Color: 0xffa500,
		},
	}); err != nil {
		sc.l.Error("Error sending inactivity warning",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
		return
	}

	t, err := sc.repo.Get(ctx, channelID)
	if err != nil {
		sc.l.Error("Error re-reading ticket after warning",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
		return
	}
	t.WarningSent = true
	if err := sc.repo.Put(ctx, channelID, t); err != nil {
		sc.l.Error("Error marking warning sent",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}
}
