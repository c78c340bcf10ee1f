package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wardenbot/warden/cmd/bot/monitoring"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
	"github.com/wardenbot/warden/pkg/messages"
	"github.com/wardenbot/warden/pkg/request"
)

// commandProcessor handles a single slash command or message component
// interaction.
type commandProcessor func(a IApp, i *discordgo.InteractionCreate) error

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(handler Controller, a IApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
				)
				cw.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(cw).Encode(request.NewMessage(messages.ErrUserErrorProcessing)); err != nil {
					a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Log().Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		defer func() {
			// Run the deferred function after the request has been handled, as the status code will not be available until then.
			monitoring.HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			monitoring.HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// interactionHandler routes interactions to their processors. Slash commands
// dispatch on the command name; components dispatch on the custom ID, with
// rating buttons recognized by their token prefix.
func interactionHandler(a IApp, slashControllers map[string]commandProcessor, componentControllers map[string]commandProcessor) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			name := i.ApplicationCommandData().Name
			a.Log().Debug("Handling slash command " + name)

			processor, ok := slashControllers[name]
			if !ok {
				a.Log().Error("No controller found for command", slog.String("command", name))
				respondInteractionError(a, i)
				return
			}

			t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues(name))
			defer t.ObserveDuration()

			if err := processor(a, i); err != nil {
				a.Log().Error(fmt.Sprintf("Error processing command %s", name),
					slog.String(logging.KeyError, err.Error()))
				respondInteractionError(a, i)
			}
		case discordgo.InteractionMessageComponent:
			customID := i.MessageComponentData().CustomID
			a.Log().Debug("Handling component interaction " + customID)

			if entities.IsRatingCustomID(customID) {
				if err := rateTicketController(a, i); err != nil {
					a.Log().Error("Error processing rating answer",
						slog.String(logging.KeyError, err.Error()))
					respondInteractionError(a, i)
				}
				return
			}

			processor, ok := componentControllers[customID]
			if !ok {
				a.Log().Error("No controller found for component", slog.String("component", customID))
				respondInteractionError(a, i)
				return
			}

			if err := processor(a, i); err != nil {
				a.Log().Error(fmt.Sprintf("Error processing component %s", customID),
					slog.String(logging.KeyError, err.Error()))
				respondInteractionError(a, i)
			}
		default:
			// Other interaction types (autocomplete, modals) are not used.
		}
	}
}

func respondInteractionError(a IApp, i *discordgo.InteractionCreate) {
	if err := respondEphemeral(a, i, messages.ErrUserErrorProcessing); err != nil {
		a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
	}
}
