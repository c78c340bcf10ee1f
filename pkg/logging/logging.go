package logging

import (
	"io"
	"log/slog"
	"os"
)

const (
	// KeyError is the key used for errors in log attributes.
	KeyError = `err`

	// KeyDal is the key used for the data access layer name.
	KeyDal = `dal`

	// KeyGuild is the key used for guild IDs.
	KeyGuild = `guild_id`

	// KeyChannel is the key used for channel IDs.
	KeyChannel = `channel_id`

	// KeyUser is the key used for user IDs.
	KeyUser = `user_id`

	// KeyTicket is the key used for ticket numbers.
	KeyTicket = `ticket`
)

// Name is the name of the application emitting the logs.
type Name string

// Config is the configuration for a logger.
type Config struct {
	name   string
	writer io.Writer
	opts   *slog.HandlerOptions
}

// NewConfig creates a logger configuration with the default options.
func NewConfig(name Name) *Config {
	return &Config{
		name:   string(name),
		writer: os.Stdout,
		opts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
}

// CommonLogger creates the logger used across the application.
func CommonLogger(c *Config) (*slog.Logger, error) {
	l := slog.New(slog.NewJSONHandler(c.writer, c.opts)).With(
		slog.String("app", c.name),
	)
	slog.SetDefault(l)
	return l, nil
}
