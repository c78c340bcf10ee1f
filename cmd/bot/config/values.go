package config

import (
	"time"

	"github.com/wardenbot/warden/pkg/entities"
)

const (
	// AppName is the name of the application.
	AppName = "warden"

	// EnvBotToken is the environment variable for the bot token.
	EnvBotToken = `BOT_TOKEN`

	// EnvApplicationId is the environment variable for the application ID.
	EnvApplicationId = `APPLICATION_ID`

	// EnvMongoUri is the environment variable for the MongoDB URI.
	EnvMongoUri = `MONGO_URI`

	// EnvMonitoringPort is the environment variable for the monitoring port.
	EnvMonitoringPort = `MONITORING_PORT`

	// EnvStaffRoleId is the environment variable for the staff role ID.
	EnvStaffRoleId = `STAFF_ROLE_ID`

	// EnvTicketPanelChannelId is the environment variable for the channel the
	// ticket panel is published in.
	EnvTicketPanelChannelId = `TICKET_PANEL_CHANNEL_ID`

	// EnvTicketLogsChannelId is the environment variable for the transcript
	// log channel.
	EnvTicketLogsChannelId = `TICKET_LOGS_CHANNEL_ID`

	// EnvTicketRatingLogChannelId is the environment variable for the rating
	// log channel.
	EnvTicketRatingLogChannelId = `TICKET_RATING_LOG_CHANNEL_ID`

	// EnvAutomodLogChannelId is the environment variable for the moderation
	// log channel.
	EnvAutomodLogChannelId = `AUTOMOD_LOG_CHANNEL_ID`

	// EnvInactivityWarnHours is the environment variable for the idle hours
	// before a ticket is warned.
	EnvInactivityWarnHours = `TICKET_INACTIVITY_WARN_HOURS`

	// EnvInactivityCloseHours is the environment variable for the idle hours
	// before a ticket is closed.
	EnvInactivityCloseHours = `TICKET_INACTIVITY_CLOSE_HOURS`

	// EnvSweepIntervalMinutes is the environment variable for the minutes
	// between inactivity sweeps.
	EnvSweepIntervalMinutes = `TICKET_SWEEP_INTERVAL_MINUTES`

	// EnvSpamMessageLimit is the environment variable for the spam message
	// limit.
	EnvSpamMessageLimit = `SPAM_MESSAGE_LIMIT`

	// EnvSpamTimeWindowSeconds is the environment variable for the spam time
	// window in seconds.
	EnvSpamTimeWindowSeconds = `SPAM_TIME_WINDOW_SECONDS`

	// EnvSpamWarnCooldownSeconds is the environment variable for the spam
	// warning cooldown in seconds.
	EnvSpamWarnCooldownSeconds = `SPAM_WARN_COOLDOWN_SECONDS`

	// EnvMuteDurationMinutes is the environment variable for the mute
	// duration in minutes.
	EnvMuteDurationMinutes = `MUTE_DURATION_MINUTES`

	// EnvBlacklistedWords is the environment variable for the comma-separated
	// blacklisted terms.
	EnvBlacklistedWords = `BLACKLISTED_WORDS`

	// EnvTranscriptsDir is the environment variable for the transcript
	// staging directory.
	EnvTranscriptsDir = `TRANSCRIPTS_DIR`
)

var (
	// BotToken is the token for the bot.
	BotToken string

	// ApplicationId is the ID of the application.
	ApplicationId string

	// MongoUri is the URI for the MongoDB database.
	MongoUri string

	// MonitoringPort is the port for the monitoring server.
	MonitoringPort string

	// StaffRoleId is the role that can claim and finalize tickets.
	StaffRoleId string

	// TicketPanelChannelId is the channel the ticket panel lives in.
	TicketPanelChannelId string

	// TicketLogsChannelId is the channel transcripts are delivered to.
	TicketLogsChannelId string

	// TicketRatingLogChannelId is the channel accepted ratings are logged to.
	TicketRatingLogChannelId string

	// AutomodLogChannelId is the channel moderation events are logged to.
	AutomodLogChannelId string

	// TicketCategories maps each ticket category to its destination category
	// channel ID. Categories without an ID are disabled.
	TicketCategories map[entities.Category]string

	// InactivityWarn is the idle duration before a ticket is warned.
	InactivityWarn = 20 * time.Hour

	// InactivityClose is the idle duration before a ticket is closed.
	InactivityClose = 24 * time.Hour

	// SweepInterval is the gap between inactivity sweeps.
	SweepInterval = 30 * time.Minute

	// SpamMessageLimit is how many messages fit in the spam window.
	SpamMessageLimit = 5

	// SpamTimeWindow is the sliding spam window.
	SpamTimeWindow = 10 * time.Second

	// SpamWarnCooldown is the minimum gap between spam warnings to one user.
	SpamWarnCooldown = 60 * time.Second

	// MuteDuration is how long a spammer stays muted.
	MuteDuration = 5 * time.Minute

	// BlacklistedWords is the content blacklist.
	BlacklistedWords []string

	// TranscriptsDir is where transcripts are staged before upload.
	TranscriptsDir = "transcripts"
)
