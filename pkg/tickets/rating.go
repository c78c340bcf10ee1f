package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/custom"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
)

// RatingStore persists accepted ratings. dataaccess.RatingDal satisfies it.
type RatingStore interface {
	SaveRating(ctx context.Context, r *entities.RatingRecord) error
}

// Ratings sends post-closure rating requests over DM and accepts answers.
type Ratings struct {
	l            *slog.Logger
	s            Discord
	store        RatingStore
	logChannelID string

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewRatings creates the rating flow. logChannelID may be empty; accepted
// ratings are then stored but not announced.
func NewRatings(l *slog.Logger, s Discord, store RatingStore, logChannelID string) *Ratings {
	return &Ratings{
		l:            l,
		s:            s,
		store:        store,
		logChannelID: logChannelID,
		now:          time.Now,
	}
}

// SendRequest DMs the opener the closure notice with five rating buttons.
// The buttons encode everything needed to resolve the answer later, so the
// flow survives restarts. A failed DM (user left, DMs disabled) is an error
// the caller logs and moves past.
func (r *Ratings) SendRequest(ctx context.Context, t *entities.Ticket, channelID, reason string) error {
	dm, err := r.s.UserChannelCreate(t.UserID)
	if err != nil {
		return fmt.Errorf("error opening DM channel: %w", err)
	}

	buttons := make([]discordgo.MessageComponent, 0, 5)
	for rating := 1; rating <= 5; rating++ {
		token := entities.RatingToken{
			TicketNumber: t.Number,
			UserID:       t.UserID,
			ChannelID:    channelID,
			Rating:       rating,
		}
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("%d ⭐", rating),
			Style:    discordgo.SecondaryButton,
			CustomID: token.CustomID(),
		})
	}

	if _, err := r.s.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Your ticket #%s has been closed", t.FormattedNumber()),
			Description: fmt.Sprintf("Reason: %s\n\nHow would you rate the support you received?", reason),
			Color:       0x0099ff,
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: buttons},
		},
	}); err != nil {
		return fmt.Errorf("error sending rating request: %w", err)
	}

	return nil
}

// HandleAnswer resolves a rating button press. Only the opener encoded in
// the token may answer; anyone else gets ErrPermissionDenied with no state
// change. On accept the rating is stored, announced in the log channel, and
// the buttons on the prompt are disabled so further presses are inert. A
// press against a prompt whose buttons are already disabled is a replay and
// changes nothing.
func (r *Ratings) HandleAnswer(ctx context.Context, responderID string, token *entities.RatingToken, prompt *discordgo.Message) error {
	if token.Rating < 1 || token.Rating > 5 {
		return fmt.Errorf("%w: rating %d out of range", entities.ErrMalformedRatingToken, token.Rating)
	}

	if responderID != token.UserID {
		return ErrPermissionDenied
	}

	// The first press disabled the buttons; this one arrived before the
	// client caught up.
	if promptAnswered(prompt) {
		return nil
	}

	record := &entities.RatingRecord{
		TicketNumber: token.TicketNumber,
		UserID:       token.UserID,
		ChannelID:    token.ChannelID,
		Rating:       token.Rating,
		LoggedAt:     custom.Datetime(r.now()),
	}
	if err := r.store.SaveRating(ctx, record); err != nil {
		// The user already answered; losing the record is not worth a retry
		// prompt.
		r.l.Error("Error saving rating",
			slog.String(logging.KeyUser, token.UserID),
			slog.String(logging.KeyError, err.Error()))
	}

	r.logRating(token)
	r.disablePrompt(prompt)
	return nil
}

func (r *Ratings) logRating(token *entities.RatingToken) {
	if r.logChannelID == "" {
		r.l.Warn("No rating log channel configured, rating not announced",
			slog.String(logging.KeyChannel, token.ChannelID))
		return
	}

	if _, err := r.s.ChannelMessageSendComplex(r.logChannelID, &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title: "Ticket rated",
			Color: 0x00ff00,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Ticket number", Value: fmt.Sprintf("%04d", token.TicketNumber), Inline: true},
				{Name: "Rated by", Value: fmt.Sprintf("<@%s>", token.UserID), Inline: true},
				{Name: "Rating", Value: fmt.Sprintf("%d/5", token.Rating), Inline: true},
			},
			Timestamp: r.now().Format(time.RFC3339),
		},
	}); err != nil {
		r.l.Error("Error logging rating",
			slog.String(logging.KeyChannel, r.logChannelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

// promptAnswered reports whether every button on the prompt is already
// disabled, which is how a prompt looks after an accepted answer.
func promptAnswered(prompt *discordgo.Message) bool {
	if prompt == nil {
		return false
	}

	buttons := 0
	for _, row := range prompt.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			b, ok := c.(*discordgo.Button)
			if !ok {
				continue
			}
			buttons++
			if !b.Disabled {
				return false
			}
		}
	}
	return buttons > 0
}

// disablePrompt greys out every button on the rating prompt. Skips the edit
// when the buttons are already disabled, so replays do not spend an API
// call.
func (r *Ratings) disablePrompt(prompt *discordgo.Message) {
	if prompt == nil {
		return
	}

	edited := false
	components := make([]discordgo.MessageComponent, 0, len(prompt.Components))
	for _, row := range prompt.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			components = append(components, row)
			continue
		}
		newRow := discordgo.ActionsRow{}
		for _, c := range ar.Components {
			if b, ok := c.(*discordgo.Button); ok {
				nb := *b
				if !nb.Disabled {
					nb.Disabled = true
					edited = true
				}
				newRow.Components = append(newRow.Components, nb)
				continue
			}
			newRow.Components = append(newRow.Components, c)
		}
		components = append(components, newRow)
	}

	if !edited {
		return
	}

	if _, err := r.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    prompt.ChannelID,
		ID:         prompt.ID,
		Components: components,
	}); err != nil {
		r.l.Warn("Could not disable rating buttons",
			slog.String(logging.KeyChannel, prompt.ChannelID),
			slog.String(logging.KeyError, err.Error()))
	}
}
