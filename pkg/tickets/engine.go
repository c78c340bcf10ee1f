package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
)

const (
	// ClaimTicketButtonID is the custom ID of the staff claim button.
	ClaimTicketButtonID = "claim_ticket"

	// FinalizeTicketButtonID is the custom ID of the staff finalize button.
	FinalizeTicketButtonID = "finalize_ticket"

	// CloseTicketButtonID is the custom ID of the opener's self-close button.
	CloseTicketButtonID = "close_ticket"
)

// DefaultGraceDelay is how long a finalized or closed ticket channel stays
// visible before deletion.
const DefaultGraceDelay = 5 * time.Second

// Allocator produces ticket numbers. Values are unique and strictly
// increasing across the deployment.
type Allocator interface {
	Next(ctx context.Context) (int, error)
}

// Config is the static configuration of the lifecycle engine.
type Config struct {
	// StaffRoleID is the role whose holders may claim and finalize tickets.
	StaffRoleID string

	// Categories maps each ticket category to the ID of the category channel
	// its tickets are created under. A missing entry disables that category.
	Categories map[entities.Category]string

	// GraceDelay is how long to wait between announcing closure and deleting
	// the channel. Zero or negative deletes immediately (used by tests).
	GraceDelay time.Duration
}

// Engine drives the ticket lifecycle: open, claim, finalize, close. It is
// the only component that mutates ticket metadata.
type Engine struct {
	l           *slog.Logger
	s           Discord
	repo        Repository
	seq         Allocator
	transcripts *Transcripts
	ratings     *Ratings
	cfg         Config

	// now is the clock, injectable for tests.
	now func() time.Time

	mu sync.Mutex
	// creating reserves (opener, category) pairs with a creation in flight,
	// closing the window where two near-simultaneous creations both pass the
	// duplicate check.
	creating map[string]struct{}
	// closing holds channels with a finalize in flight, so a second finalize
	// (two staff members, or sweep racing a manual finalize) is a no-op
	// instead of a double transcript and delete. Entries are dropped once
	// the deferred deletion runs; the Archived flag covers replays after
	// that.
	closing map[string]struct{}
	// pendingDeletes holds channels with a deferred deletion scheduled.
	pendingDeletes map[string]struct{}
}

// NewEngine creates the lifecycle engine.
func NewEngine(l *slog.Logger, s Discord, repo Repository, seq Allocator, transcripts *Transcripts, ratings *Ratings, cfg Config) *Engine {
	if cfg.GraceDelay == 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	return &Engine{
		l:              l,
		s:              s,
		repo:           repo,
		seq:            seq,
		transcripts:    transcripts,
		ratings:        ratings,
		cfg:            cfg,
		now:            time.Now,
		creating:       make(map[string]struct{}),
		closing:        make(map[string]struct{}),
		pendingDeletes: make(map[string]struct{}),
	}
}

// CreateResult is the outcome of a creation request.
type CreateResult struct {
	// Ticket is the created or already-open ticket.
	Ticket *entities.Ticket

	// ChannelID is the hosting channel.
	ChannelID string

	// Existing is true when an open ticket for the same (opener, category)
	// pair already existed and was returned instead of a duplicate.
	Existing bool
}

// Create opens a ticket for the given opener and category. At most one
// non-archived ticket exists per (opener, category): a second request returns
// the existing one.
func (e *Engine) Create(ctx context.Context, guildID string, opener *discordgo.User, category entities.Category) (*CreateResult, error) {
	parentID, ok := e.cfg.Categories[category]
	if !ok || parentID == "" {
		return nil, fmt.Errorf("%w: no destination for category %q", ErrConfigurationMissing, category)
	}

	// Reserve the (opener, category) pair before the first suspension point.
	key := opener.ID + "|" + string(category)
	e.mu.Lock()
	if _, busy := e.creating[key]; busy {
		e.mu.Unlock()
		return nil, ErrTicketPending
	}
	e.creating[key] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.creating, key)
		e.mu.Unlock()
	}()

	open, err := e.repo.List(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("error listing tickets: %w", err)
	}
	for channelID, t := range open {
		if t.UserID == opener.ID && t.Category == category && !t.Archived {
			return &CreateResult{Ticket: t, ChannelID: channelID, Existing: true}, nil
		}
	}

	// The destination category must exist before we allocate a number.
	if _, err := e.s.Channel(parentID); err != nil {
		if isUnknown(err) {
			return nil, fmt.Errorf("%w: destination category %s does not exist", ErrConfigurationMissing, parentID)
		}
		return nil, fmt.Errorf("error getting destination category: %w", err)
	}

	number, err := e.seq.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("error allocating ticket number: %w", err)
	}

	ticket := entities.NewTicket(opener.ID, category, number, e.now())

	// Only the opener and staff can see the ticket.
	channel, err := e.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     ticket.ChannelName(opener.Username),
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: parentID,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    opener.ID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
			},
			{
				ID:    e.cfg.StaffRoleID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionManageChannels,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating ticket channel: %w", err)
	}

	if err := e.repo.Put(ctx, channel.ID, ticket); err != nil {
		return nil, fmt.Errorf("error saving ticket: %w", err)
	}

	if _, err := e.s.ChannelMessageSendComplex(channel.ID, newTicketMessage(ticket, opener, e.cfg.StaffRoleID)); err != nil {
		e.l.Error("Error sending ticket welcome message",
			slog.String(logging.KeyChannel, channel.ID),
			slog.String(logging.KeyError, err.Error()))
	}

	return &CreateResult{Ticket: ticket, ChannelID: channel.ID}, nil
}

// RecordActivity bumps the ticket's activity clock for an inbound non-bot
// message and clears any pending inactivity warning. Channels that are not
// managed tickets are silently ignored.
func (e *Engine) RecordActivity(ctx context.Context, channelID string) error {
	t, err := e.repo.Get(ctx, channelID)
	if errors.Is(err, entities.ErrNotATicket) || errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	if t.Archived {
		return nil
	}

	t.Touch(e.now())
	return e.repo.Put(ctx, channelID, t)
}

// Claim records the claiming staff member on the ticket, posts a claim
// notice in the channel and lets the opener know over DM. Non-staff callers
// get ErrPermissionDenied.
func (e *Engine) Claim(ctx context.Context, channelID string, member *discordgo.Member) (*entities.Ticket, error) {
	if !hasRole(member, e.cfg.StaffRoleID) {
		return nil, ErrPermissionDenied
	}

	t, err := e.repo.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if t.ClaimedBy != "" {
		return t, ErrAlreadyClaimed
	}

	t.ClaimedBy = member.User.ID
	if err := e.repo.Put(ctx, channelID, t); err != nil {
		return nil, err
	}

	if _, err := e.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> is now handling this ticket.", member.User.ID),
	}); err != nil {
		e.l.Error("Error posting claim notice",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	// Best effort; the opener may have DMs disabled.
	if dm, err := e.s.UserChannelCreate(t.UserID); err == nil {
		if _, err := e.s.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
			Content: fmt.Sprintf("Your ticket #%s is now being handled by %s.", t.FormattedNumber(), member.User.Username),
		}); err != nil {
			e.l.Warn("Could not DM opener about claim",
				slog.String(logging.KeyUser, t.UserID),
				slog.String(logging.KeyError, err.Error()))
		}
	}

	return t, nil
}

// Finalize runs the full closure path: archive, transcript, rating request,
// closure announcement, deferred channel deletion. member is the acting
// staff member; nil means the bot itself is acting (inactivity sweep), which
// bypasses the staff check. Transcript and rating failures are logged and do
// not block the remaining steps.
func (e *Engine) Finalize(ctx context.Context, channelID string, actor *discordgo.User, member *discordgo.Member, reason string) (*entities.Ticket, error) {
	if member != nil && !hasRole(member, e.cfg.StaffRoleID) {
		return nil, ErrPermissionDenied
	}

	e.mu.Lock()
	if _, busy := e.closing[channelID]; busy {
		e.mu.Unlock()
		return nil, ErrTicketClosing
	}
	e.closing[channelID] = struct{}{}
	e.mu.Unlock()

	t, err := e.repo.Get(ctx, channelID)
	if err != nil {
		e.releaseClosing(channelID)
		return nil, err
	}
	if t.Archived {
		e.releaseClosing(channelID)
		return t, ErrTicketClosing
	}

	channel, err := e.s.Channel(channelID)
	if err != nil {
		e.releaseClosing(channelID)
		if isUnknown(err) {
			return nil, fmt.Errorf("%w: channel %s", ErrNotFound, channelID)
		}
		return nil, fmt.Errorf("error getting channel: %w", err)
	}

	t.Archived = true
	if err := e.repo.Put(ctx, channelID, t); err != nil {
		// The channel is going away regardless; log and continue.
		e.l.Error("Error archiving ticket",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	if err := e.transcripts.Deliver(ctx, t, channel, actor.Username, reason); err != nil {
		e.l.Error("Error delivering transcript",
			slog.String(logging.KeyTicket, t.FormattedNumber()),
			slog.String(logging.KeyError, err.Error()))
	}

	if err := e.ratings.SendRequest(ctx, t, channelID, reason); err != nil {
		e.l.Error("Error sending rating request",
			slog.String(logging.KeyTicket, t.FormattedNumber()),
			slog.String(logging.KeyError, err.Error()))
	}

	if _, err := e.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("This ticket has been finalized by %s. Reason: %s", actor.Username, reason),
	}); err != nil {
		e.l.Warn("Error announcing finalization",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	e.scheduleDeletion(channelID)
	return t, nil
}

// Close is the opener's lighter-weight exit: no transcript, no rating. Only
// the opener may use it.
func (e *Engine) Close(ctx context.Context, channelID, actorID string) (*entities.Ticket, error) {
	t, err := e.repo.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if actorID != t.UserID {
		return nil, ErrPermissionDenied
	}
	if t.Archived {
		return t, ErrTicketClosing
	}

	t.Archived = true
	if err := e.repo.Put(ctx, channelID, t); err != nil {
		e.l.Error("Error archiving ticket",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	e.scheduleDeletion(channelID)
	return t, nil
}

func (e *Engine) releaseClosing(channelID string) {
	e.mu.Lock()
	delete(e.closing, channelID)
	e.mu.Unlock()
}

// scheduleDeletion removes the channel after the grace delay. Scheduling is
// idempotent per channel, and the deletion itself is a no-op when the
// channel is already gone.
func (e *Engine) scheduleDeletion(channelID string) {
	e.mu.Lock()
	if _, pending := e.pendingDeletes[channelID]; pending {
		e.mu.Unlock()
		return
	}
	e.pendingDeletes[channelID] = struct{}{}
	e.mu.Unlock()

	run := func() {
		defer func() {
			e.mu.Lock()
			delete(e.pendingDeletes, channelID)
			delete(e.closing, channelID)
			e.mu.Unlock()
		}()
		e.deleteChannel(channelID)
	}

	if e.cfg.GraceDelay <= 0 {
		run()
		return
	}
	time.AfterFunc(e.cfg.GraceDelay, run)
}

func (e *Engine) deleteChannel(channelID string) {
	if _, err := e.s.Channel(channelID); isUnknown(err) {
		// Already gone; nothing to do.
		return
	}

	if _, err := e.s.ChannelDelete(channelID); err != nil && !isUnknown(err) {
		// Not retried; the channel stays behind for staff to remove.
		e.l.Error("Error deleting ticket channel",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

// hasRole reports whether the member holds the given role.
func hasRole(member *discordgo.Member, roleID string) bool {
	if member == nil {
		return false
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// newTicketMessage builds the welcome message posted into a fresh ticket
// channel, mentioning the opener and staff and carrying the lifecycle
// buttons.
func newTicketMessage(t *entities.Ticket, opener *discordgo.User, staffRoleID string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s> <@&%s>", opener.ID, staffRoleID),
		Embed: &discordgo.MessageEmbed{
			Title: "Support",
			Description: "The staff has been notified. Please avoid direct messages and wait here; " +
				"someone will assist you shortly.\nDescribe the reason for your contact with as much detail as possible.",
			Color: 0x0099ff,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Ticket type", Value: t.Category.Label()},
				{Name: "Opened by", Value: opener.Username},
				{Name: "Ticket number", Value: t.FormattedNumber()},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: "The claim and finalize buttons are staff-only.",
			},
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Leave or cancel this ticket",
						Style:    discordgo.DangerButton,
						CustomID: CloseTicketButtonID,
					},
					discordgo.Button{
						Label:    "Claim",
						Style:    discordgo.PrimaryButton,
						CustomID: ClaimTicketButtonID,
					},
					discordgo.Button{
						Label:    "Finalize",
						Style:    discordgo.SuccessButton,
						CustomID: FinalizeTicketButtonID,
					},
				},
			},
		},
	}
}
