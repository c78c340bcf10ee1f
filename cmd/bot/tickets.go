package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/cmd/bot/monitoring"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
	"github.com/wardenbot/warden/pkg/messages"
	"github.com/wardenbot/warden/pkg/tickets"
)

// openTicketController handles a category pick on the ticket panel.
func openTicketController(a IApp, i *discordgo.InteractionCreate) error {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return errors.New("no category selected")
	}

	category := entities.Category(values[0])
	if !category.Valid() {
		return fmt.Errorf("unknown ticket category %q", values[0])
	}

	if i.Member == nil || i.Member.User == nil {
		return errors.New("interaction has no member")
	}

	res, err := a.Tickets().Create(context.Background(), i.GuildID, i.Member.User, category)
	switch {
	case errors.Is(err, tickets.ErrTicketPending):
		return respondEphemeral(a, i, "Your ticket is already being created, one moment.")
	case errors.Is(err, tickets.ErrConfigurationMissing):
		return respondEphemeral(a, i, messages.ErrTicketNotConfigured)
	case err != nil:
		a.Log().Error("Error creating ticket", slog.String(logging.KeyError, err.Error()))
		return respondEphemeral(a, i, messages.ErrTicketCreationFailed)
	}

	if res.Existing {
		return respondEphemeral(a, i, fmt.Sprintf("You already have an open %s ticket: <#%s>", category.Label(), res.ChannelID))
	}

	monitoring.TotalTicketsCreated.WithLabelValues(string(category)).Inc()
	return respondEphemeral(a, i, fmt.Sprintf("Your ticket has been created: <#%s>", res.ChannelID))
}

// claimTicketController handles the staff claim button inside a ticket.
func claimTicketController(a IApp, i *discordgo.InteractionCreate) error {
	ticket, err := a.Tickets().Claim(context.Background(), i.ChannelID, i.Member)
	switch {
	case errors.Is(err, tickets.ErrPermissionDenied):
		return respondEphemeral(a, i, messages.ErrUserNotStaff)
	case errors.Is(err, tickets.ErrAlreadyClaimed):
		return respondEphemeral(a, i, fmt.Sprintf("This ticket is already claimed by <@%s>.", ticket.ClaimedBy))
	case errors.Is(err, entities.ErrNotATicket), errors.Is(err, tickets.ErrNotFound):
		return respondEphemeral(a, i, "This channel is not a managed ticket.")
	case err != nil:
		return fmt.Errorf("error claiming ticket: %w", err)
	}

	return respondUpdate(a, i)
}

// finalizeTicketController handles the staff finalize button inside a
// ticket.
func finalizeTicketController(a IApp, i *discordgo.InteractionCreate) error {
	if i.Member == nil || i.Member.User == nil {
		return errors.New("interaction has no member")
	}

	_, err := a.Tickets().Finalize(context.Background(), i.ChannelID, i.Member.User, i.Member, "Finalized by staff.")
	switch {
	case errors.Is(err, tickets.ErrPermissionDenied):
		return respondEphemeral(a, i, messages.ErrUserNotStaff)
	case errors.Is(err, tickets.ErrTicketClosing):
		return respondEphemeral(a, i, "This ticket is already closing.")
	case errors.Is(err, entities.ErrNotATicket), errors.Is(err, tickets.ErrNotFound):
		return respondEphemeral(a, i, "This channel is not a managed ticket.")
	case err != nil:
		return fmt.Errorf("error finalizing ticket: %w", err)
	}

	monitoring.TotalTicketsClosed.WithLabelValues("finalized").Inc()
	return respondEphemeral(a, i, "Ticket finalized. This channel will be removed shortly.")
}

// closeTicketController handles the opener's close button inside a ticket.
func closeTicketController(a IApp, i *discordgo.InteractionCreate) error {
	if i.Member == nil || i.Member.User == nil {
		return errors.New("interaction has no member")
	}

	_, err := a.Tickets().Close(context.Background(), i.ChannelID, i.Member.User.ID)
	switch {
	case errors.Is(err, tickets.ErrPermissionDenied):
		return respondEphemeral(a, i, messages.ErrUserNotOpener)
	case errors.Is(err, tickets.ErrTicketClosing):
		return respondEphemeral(a, i, "This ticket is already closing.")
	case errors.Is(err, entities.ErrNotATicket), errors.Is(err, tickets.ErrNotFound):
		return respondEphemeral(a, i, "This channel is not a managed ticket.")
	case err != nil:
		return fmt.Errorf("error closing ticket: %w", err)
	}

	monitoring.TotalTicketsClosed.WithLabelValues("self_closed").Inc()
	return respondEphemeral(a, i, "Your ticket will be removed shortly. Thanks for reaching out!")
}

// rateTicketController handles a rating button press in the opener's DMs.
func rateTicketController(a IApp, i *discordgo.InteractionCreate) error {
	token, err := entities.ParseRatingToken(i.MessageComponentData().CustomID)
	if err != nil {
		return respondEphemeral(a, i, messages.ErrRatingInvalid)
	}

	// Rating buttons live in DMs, where the interaction carries a user
	// instead of a member.
	responder := i.User
	if responder == nil && i.Member != nil {
		responder = i.Member.User
	}
	if responder == nil {
		return errors.New("interaction has no user")
	}

	err = a.Ratings().HandleAnswer(context.Background(), responder.ID, token, i.Message)
	switch {
	case errors.Is(err, tickets.ErrPermissionDenied):
		return respondEphemeral(a, i, messages.ErrRatingNotYours)
	case errors.Is(err, entities.ErrMalformedRatingToken):
		return respondEphemeral(a, i, messages.ErrRatingInvalid)
	case err != nil:
		return fmt.Errorf("error handling rating: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Thank you! Your %d/5 rating has been recorded.", token.Rating))
}
