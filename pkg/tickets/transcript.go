package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
)

// transcriptFetchLimit is the most messages the platform returns per call.
const transcriptFetchLimit = 100

// Transcripts renders a closing ticket's conversation to a text file and
// posts it to the staff log channel.
type Transcripts struct {
	l             *slog.Logger
	s             Discord
	dir           string
	logsChannelID string

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewTranscripts creates the transcript renderer. dir is where transcript
// files are staged before upload; logsChannelID is the staff channel that
// receives them.
func NewTranscripts(l *slog.Logger, s Discord, dir, logsChannelID string) *Transcripts {
	return &Transcripts{
		l:             l,
		s:             s,
		dir:           dir,
		logsChannelID: logsChannelID,
		now:           time.Now,
	}
}

// Deliver renders the channel's messages oldest-first and uploads the file
// to the log channel together with a closure embed. The staged file is
// removed afterwards. ErrConfigurationMissing when no log channel is
// configured.
func (t *Transcripts) Deliver(ctx context.Context, ticket *entities.Ticket, channel *discordgo.Channel, actorName, reason string) error {
	if t.logsChannelID == "" {
		return fmt.Errorf("%w: no transcript log channel", ErrConfigurationMissing)
	}

	msgs, err := t.s.ChannelMessages(channel.ID, transcriptFetchLimit, "", "", "")
	if err != nil {
		return fmt.Errorf("error fetching channel messages: %w", err)
	}

	// The API returns newest first.
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	openerName := ticket.UserID
	if opener, err := t.s.User(ticket.UserID); err == nil {
		openerName = opener.Username
	}

	body := t.render(ticket, channel, msgs, openerName, actorName, reason)

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("error creating transcript directory: %w", err)
	}
	path := filepath.Join(t.dir, fmt.Sprintf("ticket-%s-%s.txt", ticket.FormattedNumber(), channel.Name))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("error writing transcript file: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			t.l.Warn("Could not remove staged transcript",
				slog.String("path", path),
				slog.String(logging.KeyError, err.Error()))
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening transcript file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := t.s.ChannelMessageSendComplex(t.logsChannelID, &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title: fmt.Sprintf("Ticket #%s closed", ticket.FormattedNumber()),
			Color: 0xff0000,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Ticket type", Value: ticket.Category.Label(), Inline: true},
				{Name: "Opened by", Value: openerName, Inline: true},
				{Name: "Finalized by", Value: actorName, Inline: true},
				{Name: "Reason", Value: reason},
			},
			Timestamp: t.now().Format(time.RFC3339),
		},
		Files: []*discordgo.File{
			{
				Name:   filepath.Base(path),
				Reader: f,
			},
		},
	}); err != nil {
		return fmt.Errorf("error uploading transcript: %w", err)
	}

	return nil
}

func (t *Transcripts) render(ticket *entities.Ticket, channel *discordgo.Channel, msgs []*discordgo.Message, openerName, actorName, reason string) string {
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "--- Transcript of ticket #%s (%s) ---\n", ticket.FormattedNumber(), ticket.Category.Label())
	fmt.Fprintf(sb, "Channel: %s\n", channel.Name)
	fmt.Fprintf(sb, "Opened by: %s\n", openerName)
	fmt.Fprintf(sb, "Finalized by: %s\n", actorName)
	fmt.Fprintf(sb, "Closure reason: %s\n", reason)
	fmt.Fprintf(sb, "Finalized at: %s\n\n", t.now().Format(time.RFC3339))

	for _, m := range msgs {
		author := "unknown"
		if m.Author != nil {
			author = m.Author.Username
		}
		fmt.Fprintf(sb, "[%s] %s: %s\n", m.Timestamp.Format(time.RFC3339), author, m.Content)
		if len(m.Attachments) > 0 {
			sb.WriteString("[Attachments]:\n")
			for _, a := range m.Attachments {
				fmt.Fprintf(sb, "%s\n", a.URL)
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
