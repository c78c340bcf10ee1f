package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/cmd/bot/config"
	"github.com/wardenbot/warden/cmd/bot/monitoring"
	"github.com/wardenbot/warden/pkg/automod"
	"github.com/wardenbot/warden/pkg/logging"
	"golang.org/x/time/rate"
)

// clearLimiter paces the individual deletes used when the bulk endpoint
// refuses.
var clearLimiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 5)

// messageDeleter is the slice of the session the clear command deletes
// through.
type messageDeleter interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
}

// clearCmd bulk deletes recent messages in the invoking channel.
var clearCmd = &discordgo.ApplicationCommand{
	Name:        "clear",
	Description: "Bulk delete recent messages in this channel",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "amount",
			Description: "How many messages to delete (1-100)",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Only delete messages from this user",
			Required:    false,
		},
	},
}

func clearCmdController(a IApp, i *discordgo.InteractionCreate) error {
	if i.Member == nil || i.Member.User == nil {
		return errors.New("interaction has no member")
	}

	if i.Member.Permissions&discordgo.PermissionManageMessages == 0 {
		return respondEphemeral(a, i, "You need the Manage Messages permission to use this command.")
	}

	var amount int64
	var target *discordgo.User
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "amount":
			amount = opt.IntValue()
		case "user":
			target = opt.UserValue(nil)
		}
	}

	if amount < 1 || amount > 100 {
		return respondEphemeral(a, i, "The amount must be between 1 and 100.")
	}

	msgs, err := a.Session().ChannelMessages(i.ChannelID, int(amount), "", "", "")
	if err != nil {
		return fmt.Errorf("error fetching messages: %w", err)
	}

	// The platform refuses bulk deletion of messages older than two weeks.
	now := time.Now()
	var eligible []string
	skipped := 0
	for _, m := range msgs {
		if target != nil && (m.Author == nil || m.Author.ID != target.ID) {
			continue
		}
		if now.Sub(m.Timestamp) >= automod.MaxBulkDeleteAge {
			skipped++
			continue
		}
		eligible = append(eligible, m.ID)
	}

	if err := deleteMessages(context.Background(), a.Log(), a.Session(), i.ChannelID, eligible); err != nil {
		return fmt.Errorf("error deleting messages: %w", err)
	}

	monitoring.TotalModerationActions.WithLabelValues("clear").Inc()
	logClear(a, i, len(eligible))

	response := fmt.Sprintf("Deleted %d message(s).", len(eligible))
	if skipped > 0 {
		response += fmt.Sprintf(" Skipped %d older than 14 days.", skipped)
	}
	return respondEphemeral(a, i, response)
}

// deleteMessages removes the given messages: bulk where more than one is
// eligible, one by one behind the limiter otherwise or when the bulk
// endpoint fails. Individual delete failures are logged and skipped so the
// remaining messages still go.
func deleteMessages(ctx context.Context, l *slog.Logger, s messageDeleter, channelID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if len(ids) > 1 {
		err := s.ChannelMessagesBulkDelete(channelID, ids)
		if err == nil {
			return nil
		}
		l.Warn("Bulk delete failed, falling back to individual deletes",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	for _, id := range ids {
		if err := clearLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("error waiting to delete message: %w", err)
		}
		if err := s.ChannelMessageDelete(channelID, id); err != nil {
			l.Error("Error deleting message",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
	return nil
}

func logClear(a IApp, i *discordgo.InteractionCreate, deleted int) {
	if config.AutomodLogChannelId == "" {
		return
	}

	_, _ = a.Session().ChannelMessageSendComplex(config.AutomodLogChannelId, &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title: "Channel cleared",
			Color: 0xffa500,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Moderator", Value: fmt.Sprintf("<@%s>", i.Member.User.ID), Inline: true},
				{Name: "Channel", Value: fmt.Sprintf("<#%s>", i.ChannelID), Inline: true},
				{Name: "Deleted", Value: fmt.Sprintf("%d", deleted), Inline: true},
			},
			Timestamp: time.Now().Format(time.RFC3339),
		},
	})
}
