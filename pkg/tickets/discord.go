package tickets

import (
	"errors"

	"github.com/Jacobbrewer1/discordgo"
)

// Discord is the slice of the platform session the ticketing subsystem uses.
// *discordgo.Session satisfies it; tests substitute a fake.
type Discord interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserGuilds(limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
}

var (
	// ErrConfigurationMissing indicates a required destination or ID is not
	// configured. The dependent feature degrades; the process never exits
	// over it.
	ErrConfigurationMissing = errors.New("required configuration missing")

	// ErrNotFound indicates a referenced external entity (channel, member,
	// message) no longer exists. It aborts only the current operation.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the acting user may not perform the
	// requested transition.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTicketPending indicates a creation for the same (opener, category)
	// pair is already in flight.
	ErrTicketPending = errors.New("ticket creation already in progress")

	// ErrTicketClosing indicates closure of the ticket has already been
	// initiated; a second finalize is a no-op.
	ErrTicketClosing = errors.New("ticket is already closing")

	// ErrAlreadyClaimed indicates the ticket has a claimer recorded.
	ErrAlreadyClaimed = errors.New("ticket already claimed")
)

// isUnknown reports whether err is the platform's "entity does not exist"
// answer. A general error code is included because the REST layer reports
// some 404s that way.
func isUnknown(err error) bool {
	if err == nil {
		return false
	}
	er := new(discordgo.RESTError)
	if !errors.As(err, &er) || er.Message == nil {
		return false
	}
	switch er.Message.Code {
	case discordgo.ErrCodeUnknownChannel,
		discordgo.ErrCodeUnknownMessage,
		discordgo.ErrCodeUnknownMember,
		discordgo.ErrCodeUnknownUser,
		discordgo.ErrCodeGeneralError:
		return true
	}
	return false
}
