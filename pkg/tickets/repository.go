package tickets

import (
	"context"
	"fmt"
	"sync"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/entities"
)

// Repository reads and writes ticket metadata keyed by the hosting channel.
//
// Get and List return entities.ErrNotATicket (or silently skip, for List)
// for channels whose descriptor does not parse as a ticket; foreign state is
// never an error.
type Repository interface {
	// Get returns the ticket stored for a channel. ErrNotFound when the
	// channel no longer exists; entities.ErrNotATicket when the channel is
	// not managed by the bot.
	Get(ctx context.Context, channelID string) (*entities.Ticket, error)

	// Put stores the ticket state for a channel.
	Put(ctx context.Context, channelID string, t *entities.Ticket) error

	// List returns every parsable ticket in a guild, keyed by channel ID.
	List(ctx context.Context, guildID string) (map[string]*entities.Ticket, error)
}

// channelRepository stores each ticket as a JSON blob in its channel's topic.
// The channel is the single source of truth: the sweep discovers tickets by
// enumerating channels, and a manually deleted channel takes its ticket with
// it.
type channelRepository struct {
	s Discord
}

// NewChannelRepository creates the production repository backed by channel
// topics.
func NewChannelRepository(s Discord) Repository {
	return &channelRepository{s: s}
}

func (r *channelRepository) Get(_ context.Context, channelID string) (*entities.Ticket, error) {
	channel, err := r.s.Channel(channelID)
	if isUnknown(err) {
		return nil, fmt.Errorf("%w: channel %s", ErrNotFound, channelID)
	} else if err != nil {
		return nil, fmt.Errorf("error getting channel: %w", err)
	}

	if channel.Type != discordgo.ChannelTypeGuildText {
		return nil, entities.ErrNotATicket
	}
	return entities.ParseTicket(channel.Topic)
}

func (r *channelRepository) Put(_ context.Context, channelID string, t *entities.Ticket) error {
	topic, err := t.Encode()
	if err != nil {
		return err
	}

	if _, err := r.s.ChannelEditComplex(channelID, &discordgo.ChannelEdit{Topic: topic}); err != nil {
		if isUnknown(err) {
			return fmt.Errorf("%w: channel %s", ErrNotFound, channelID)
		}
		return fmt.Errorf("error writing ticket descriptor: %w", err)
	}
	return nil
}

func (r *channelRepository) List(_ context.Context, guildID string) (map[string]*entities.Ticket, error) {
	channels, err := r.s.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("error listing guild channels: %w", err)
	}

	out := make(map[string]*entities.Ticket)
	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		t, err := entities.ParseTicket(channel.Topic)
		if err != nil {
			// Not one of ours.
			continue
		}
		out[channel.ID] = t
	}
	return out, nil
}

// memoryRepository is the injectable in-memory backing used by tests. It
// copies tickets on the way in and out so a caller cannot mutate stored
// state without an explicit Put.
type memoryRepository struct {
	mu      sync.Mutex
	tickets map[string]*entities.Ticket
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{tickets: make(map[string]*entities.Ticket)}
}

func (r *memoryRepository) Get(_ context.Context, channelID string) (*entities.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[channelID]
	if !ok {
		return nil, entities.ErrNotATicket
	}
	cp := *t
	return &cp, nil
}

func (r *memoryRepository) Put(_ context.Context, channelID string, t *entities.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *t
	r.tickets[channelID] = &cp
	return nil
}

func (r *memoryRepository) List(_ context.Context, _ string) (map[string]*entities.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*entities.Ticket, len(r.tickets))
	for id, t := range r.tickets {
		cp := *t
		out[id] = &cp
	}
	return out, nil
}
