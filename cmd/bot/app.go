package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/wardenbot/warden/cmd/bot/config"
	"github.com/wardenbot/warden/cmd/bot/monitoring"
	"github.com/wardenbot/warden/pkg/automod"
	"github.com/wardenbot/warden/pkg/dataaccess"
	"github.com/wardenbot/warden/pkg/logging"
	"github.com/wardenbot/warden/pkg/request"
	"github.com/wardenbot/warden/pkg/tickets"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for health check.
	PathHealth = "/health"
)

// IApp is the interface for the application.
type IApp interface {
	// Log returns the logger.
	Log() *slog.Logger

	// Session returns the discord session.
	Session() *discordgo.Session

	// Tickets returns the ticket lifecycle engine.
	Tickets() *tickets.Engine

	// Ratings returns the rating flow.
	Ratings() *tickets.Ratings

	// Settings returns the settings data access layer.
	Settings() dataaccess.SettingsDal
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan any

	// tickets is the ticket lifecycle engine.
	tickets *tickets.Engine

	// schedulerMu guards scheduler, which the gateway goroutine writes and
	// the cron goroutine reads.
	schedulerMu sync.Mutex

	// scheduler is the inactivity sweeper. Built once the session knows its
	// own user.
	scheduler *tickets.Scheduler

	// ratings is the rating flow.
	ratings *tickets.Ratings

	// mod is the moderation engine.
	mod *automod.Engine

	// settings is the bot settings data access layer.
	settings dataaccess.SettingsDal

	// cron runs the periodic sweeps.
	cron *cron.Cron
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		Logger: l,
		r:      r,
	}
}

func (a *App) Run() error {
	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	a.buildEngines()

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))

		monitoring.TotalDiscordGuilds.Set(float64(len(r.Guilds)))

		// The scheduler acts as the bot user, which is only known now.
		a.ensureScheduler(r.User)

		if err := publishTicketPanel(a); err != nil {
			a.Error("Error publishing ticket panel", slog.String(logging.KeyError, err.Error()))
		}
	})

	if err := a.RegisterDiscordHandlers(); err != nil {
		return fmt.Errorf("error registering discord handlers: %w", err)
	}

	// Start event listener.
	go a.eventListener()

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	a.startCron()

	a.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Process shutdown signal.
	for sig := range c {
		a.Info("Received shutdown signal", slog.String("signal", sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

// buildEngines wires the domain engines onto the session. Runs after
// RegisterBot so the session exists, before any handler can fire.
func (a *App) buildEngines() {
	repo := tickets.NewChannelRepository(a.s)
	a.settings = dataaccess.NewSettingsDal()
	a.ratings = tickets.NewRatings(a.Log(), a.s, dataaccess.NewRatingDal(), config.TicketRatingLogChannelId)

	a.tickets = tickets.NewEngine(a.Log(), a.s, repo, dataaccess.NewCounterDal(),
		tickets.NewTranscripts(a.Log(), a.s, config.TranscriptsDir, config.TicketLogsChannelId),
		a.ratings,
		tickets.Config{
			StaffRoleID: config.StaffRoleId,
			Categories:  config.TicketCategories,
		})

	a.mod = automod.NewEngine(a.Log(), a.s, automod.NewMemoryStore(), automod.Config{
		MessageLimit:     config.SpamMessageLimit,
		TimeWindow:       config.SpamTimeWindow,
		WarnCooldown:     config.SpamWarnCooldown,
		MuteDuration:     config.MuteDuration,
		MuteStrikes:      3,
		LogChannelID:     config.AutomodLogChannelId,
		BlacklistedTerms: config.BlacklistedWords,
	})
}

// ensureScheduler builds the inactivity sweeper the first time the gateway
// reports the bot user. Ready fires again on every reconnect; the instance
// must survive those so a sweep still running keeps its reentrancy guard.
func (a *App) ensureScheduler(botUser *discordgo.User) *tickets.Scheduler {
	a.schedulerMu.Lock()
	defer a.schedulerMu.Unlock()

	if a.scheduler == nil {
		a.scheduler = tickets.NewScheduler(a.Log(), a.s, tickets.NewChannelRepository(a.s), a.tickets, botUser,
			tickets.SchedulerConfig{
				WarnAfter:   config.InactivityWarn,
				CloseAfter:  config.InactivityClose,
				StaffRoleID: config.StaffRoleId,
			})
	}
	return a.scheduler
}

// currentScheduler returns the sweeper, or nil before the first ready event.
func (a *App) currentScheduler() *tickets.Scheduler {
	a.schedulerMu.Lock()
	defer a.schedulerMu.Unlock()
	return a.scheduler
}

// startCron schedules the periodic work: the ticket inactivity sweep and
// the moderation store cleanup.
func (a *App) startCron() {
	a.cron = cron.New()

	if _, err := a.cron.AddFunc(fmt.Sprintf("@every %s", config.SweepInterval), func() {
		sc := a.currentScheduler()
		if sc == nil {
			// The ready event has not fired yet.
			return
		}
		sc.Sweep(context.Background())
	}); err != nil {
		a.Error("Error scheduling ticket sweep", slog.String(logging.KeyError, err.Error()))
	}

	if _, err := a.cron.AddFunc("@every 1h", func() {
		a.mod.SweepStore()
	}); err != nil {
		a.Error("Error scheduling moderation store sweep", slog.String(logging.KeyError, err.Error()))
	}

	a.cron.Start()
}

func (a *App) ShutdownHook() error {
	if a.cron != nil {
		a.cron.Stop()
	}

	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsAll)

	if a.eventNotifier == nil {
		// Create event notifier. This is used to observe events. It is buffered to prevent blocking.
		a.eventNotifier = make(chan any, 100)
	}

	dg.SetEventNotifier(a.eventNotifier)

	a.s = dg
	return nil
}

func (a *App) runServer() {
	go func() {
		slog.Info("Starting monitoring server")
		if err := a.svr.ListenAndServe(); err != nil {
			a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Log())

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Log())
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:    ":" + config.MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "")
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() error {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Interaction create handler.
	a.s.AddHandler(interactionHandler(a,
		// Slash Controllers
		map[string]commandProcessor{
			clearCmd.Name: clearCmdController,
		},
		// Component Controllers
		map[string]commandProcessor{
			TicketPanelSelectID:            openTicketController,
			tickets.ClaimTicketButtonID:    claimTicketController,
			tickets.FinalizeTicketButtonID: finalizeTicketController,
			tickets.CloseTicketButtonID:    closeTicketController,
		}))

	// Guild messages feed moderation and ticket activity.
	a.s.AddHandler(messageCreateHandler(a))
	return nil
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		switch t := e.(type) {
		case *discordgo.Event:
			if t.Type != "" {
				monitoring.TotalDiscordEvents.WithLabelValues(t.Type).Inc()
			} else {
				// If there is no type, then use the operation name.
				monitoring.TotalDiscordEvents.WithLabelValues(strings.ToUpper(t.Operation.String())).Inc()
			}
		default:
			a.Error("Unknown event type", slog.String("type", fmt.Sprintf("%T", e)))
			monitoring.TotalDiscordEvents.WithLabelValues("UNKNOWN").Inc()
		}
	}
}

func (a *App) registerSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Register slash commands for each guild.
	for _, g := range guilds {
		if _, err := a.Session().ApplicationCommandCreate(config.ApplicationId, g.ID, clearCmd); err != nil {
			return fmt.Errorf("error creating clear command for guild %s: %w", g.ID, err)
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Delete slash commands for each guild.
	for _, guild := range guilds {
		if err := a.s.ApplicationCommandDelete(config.ApplicationId, guild.ID, clearCmd.ID); err != nil {
			return fmt.Errorf("error deleting clear command for guild %s: %w", guild.ID, err)
		}
	}
	return nil
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Tickets() *tickets.Engine {
	return a.tickets
}

func (a *App) Ratings() *tickets.Ratings {
	return a.ratings
}

func (a *App) Settings() dataaccess.SettingsDal {
	return a.settings
}
