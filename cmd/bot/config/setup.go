package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wardenbot/warden/pkg/dataaccess"
	"github.com/wardenbot/warden/pkg/dataaccess/connection"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
)

// Parse loads the environment into the package values and connects the
// database. Missing required values abort startup; missing optional values
// log the default that replaces them.
func Parse(l *slog.Logger) {
	// A local .env is a development convenience; in production everything
	// comes from the real environment.
	if err := godotenv.Load(); err != nil {
		l.Debug("No .env file loaded", slog.String(logging.KeyError, err.Error()))
	}

	if envBT := os.Getenv(EnvBotToken); envBT != "" {
		l.Debug("Found bot token in environment", slog.String("key", EnvBotToken))
		BotToken = envBT
	}

	if envAppId := os.Getenv(EnvApplicationId); envAppId != "" {
		l.Debug("Found application ID in environment", slog.String("key", EnvApplicationId))
		ApplicationId = envAppId
	}

	if envMongoUri := os.Getenv(EnvMongoUri); envMongoUri != "" {
		l.Debug("Found MongoDB URI in environment", slog.String("key", EnvMongoUri))
		MongoUri = envMongoUri
	}

	if envMonitoringPort := os.Getenv(EnvMonitoringPort); envMonitoringPort != "" {
		l.Debug("Found monitoring port in environment", slog.String("key", EnvMonitoringPort))
		MonitoringPort = envMonitoringPort
	} else {
		// Default to 8080 if not provided.
		MonitoringPort = "8080"
		l.Info("No monitoring port provided in environment, defaulting to 8080", slog.String("key", EnvMonitoringPort))
	}

	StaffRoleId = os.Getenv(EnvStaffRoleId)
	TicketPanelChannelId = os.Getenv(EnvTicketPanelChannelId)
	TicketLogsChannelId = os.Getenv(EnvTicketLogsChannelId)
	TicketRatingLogChannelId = os.Getenv(EnvTicketRatingLogChannelId)
	AutomodLogChannelId = os.Getenv(EnvAutomodLogChannelId)

	parseCategories(l)
	parseDurations(l)

	SpamMessageLimit = intValue(l, EnvSpamMessageLimit, SpamMessageLimit)

	if envWords := os.Getenv(EnvBlacklistedWords); envWords != "" {
		BlacklistedWords = strings.Split(envWords, ",")
	}

	if envDir := os.Getenv(EnvTranscriptsDir); envDir != "" {
		TranscriptsDir = envDir
	}

	if BotToken == "" || ApplicationId == "" || MongoUri == "" || StaffRoleId == "" {
		l.Error("Not all required environment variables have been provided", slog.String(logging.KeyError, "Incomplete configuration"))
		os.Exit(1)
	}

	connectMongo(l)
}

// parseCategories reads the CATEGORY_<KIND>_ID variable for each ticket
// category. Unset categories stay out of the map and never appear on the
// panel.
func parseCategories(l *slog.Logger) {
	TicketCategories = make(map[entities.Category]string)
	for _, c := range entities.Categories() {
		key := fmt.Sprintf("CATEGORY_%s_ID", strings.ToUpper(string(c)))
		id := os.Getenv(key)
		if id == "" {
			l.Warn("Ticket category has no destination configured", slog.String("key", key))
			continue
		}
		TicketCategories[c] = id
	}
}

func parseDurations(l *slog.Logger) {
	InactivityWarn = time.Duration(intValue(l, EnvInactivityWarnHours, int(InactivityWarn.Hours()))) * time.Hour
	InactivityClose = time.Duration(intValue(l, EnvInactivityCloseHours, int(InactivityClose.Hours()))) * time.Hour
	SweepInterval = time.Duration(intValue(l, EnvSweepIntervalMinutes, int(SweepInterval.Minutes()))) * time.Minute
	SpamTimeWindow = time.Duration(intValue(l, EnvSpamTimeWindowSeconds, int(SpamTimeWindow.Seconds()))) * time.Second
	SpamWarnCooldown = time.Duration(intValue(l, EnvSpamWarnCooldownSeconds, int(SpamWarnCooldown.Seconds()))) * time.Second
	MuteDuration = time.Duration(intValue(l, EnvMuteDurationMinutes, int(MuteDuration.Minutes()))) * time.Minute

	if InactivityWarn >= InactivityClose {
		l.Error("Inactivity warn threshold must be below the close threshold",
			slog.String("key", EnvInactivityWarnHours))
		os.Exit(1)
	}
}

func intValue(l *slog.Logger, key string, fallback int) int {
	env := os.Getenv(key)
	if env == "" {
		return fallback
	}
	v, err := strconv.Atoi(env)
	if err != nil || v <= 0 {
		l.Warn("Invalid value in environment, using default",
			slog.String("key", key),
			slog.String("value", env),
			slog.Int("default", fallback))
		return fallback
	}
	return v
}

func connectMongo(l *slog.Logger) {
	mongoConn := new(connection.MongoDB)
	mongoConn.ConnectionString = MongoUri

	db, err := mongoConn.Connect()
	if err != nil {
		l.Error("Error connecting to mongo", slog.String(logging.KeyError, err.Error()))
		os.Exit(1)
	} else if db == nil {
		l.Error("MongoDB came back nil", slog.String(logging.KeyError, "MongoDB came back nil"))
		os.Exit(1)
	}

	dataaccess.MongoDB = db

	l.Debug("Connected to MongoDB", slog.String("key", EnvMongoUri))
}
