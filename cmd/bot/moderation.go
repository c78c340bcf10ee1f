package main

import (
	"context"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/cmd/bot/monitoring"
	"github.com/wardenbot/warden/pkg/logging"
)

// messageCreateHandler feeds every guild message through moderation first
// and, when it survives, records it as ticket activity.
func messageCreateHandler(a *App) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}

		ctx := context.Background()

		if a.mod.HandleMessage(ctx, m.Message) {
			monitoring.TotalModerationActions.WithLabelValues("enforced").Inc()
			// An enforced message never counts as ticket activity.
			return
		}

		if err := a.tickets.RecordActivity(ctx, m.ChannelID); err != nil {
			a.Error("Error recording ticket activity",
				slog.String(logging.KeyChannel, m.ChannelID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
}
