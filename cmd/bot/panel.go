package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/cmd/bot/config"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
)

// TicketPanelSelectID is the custom ID of the panel's category select menu.
const TicketPanelSelectID = "ticket_select"

// publishTicketPanel puts the ticket panel into the configured channel. The
// delivered message ID is persisted, so a restart refreshes the existing
// panel instead of stacking a new one each time.
func publishTicketPanel(a IApp) error {
	if config.TicketPanelChannelId == "" {
		a.Log().Warn("No ticket panel channel configured, panel not published")
		return nil
	}

	options := make([]discordgo.SelectMenuOption, 0, len(entities.Categories()))
	for _, c := range entities.Categories() {
		if _, ok := config.TicketCategories[c]; !ok {
			continue
		}
		options = append(options, discordgo.SelectMenuOption{
			Label: c.Label(),
			Value: string(c),
		})
	}
	if len(options) == 0 {
		a.Log().Warn("No ticket categories configured, panel not published")
		return nil
	}

	content := ""
	embed := &discordgo.MessageEmbed{
		Title:       "Support tickets",
		Description: "Select the category that best matches your issue and a private channel will be opened for you.",
		Color:       0x0099ff,
	}
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    TicketPanelSelectID,
					Placeholder: "Click here to select...",
					Options:     options,
				},
			},
		},
	}

	ctx := context.Background()
	existingID, err := a.Settings().GetPanelMessageID(ctx, config.TicketPanelChannelId)
	if err != nil {
		a.Log().Error("Error reading saved panel message", slog.String(logging.KeyError, err.Error()))
	}

	if existingID != "" {
		if _, err := a.Session().ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    config.TicketPanelChannelId,
			ID:         existingID,
			Content:    &content,
			Embed:      embed,
			Components: components,
		}); err == nil {
			a.Log().Debug("Refreshed existing ticket panel", slog.String(logging.KeyChannel, config.TicketPanelChannelId))
			return nil
		}
		// The saved message is gone; fall through and publish a fresh one.
		a.Log().Warn("Saved panel message could not be edited, publishing a new one")
	}

	msg, err := a.Session().ChannelMessageSendComplex(config.TicketPanelChannelId, &discordgo.MessageSend{
		Embed:      embed,
		Components: components,
	})
	if err != nil {
		return fmt.Errorf("error publishing ticket panel: %w", err)
	}

	if err := a.Settings().SavePanelMessageID(ctx, config.TicketPanelChannelId, msg.ID); err != nil {
		return fmt.Errorf("error saving panel message id: %w", err)
	}
	return nil
}
