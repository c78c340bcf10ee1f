package tickets

import (
	"context"
	"fmt"
	"sync"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/entities"
)

// fakeSession is an in-memory stand-in for the platform session. It keeps
// channels and their messages so tests can assert on what the engine sent
// where.
type fakeSession struct {
	mu     sync.Mutex
	nextID int

	channels map[string]*discordgo.Channel
	messages map[string][]*discordgo.Message
	guilds   []*discordgo.UserGuild
	users    map[string]*discordgo.User

	// dms maps a user ID to their DM channel ID.
	dms map[string]string

	deleted        []string
	edits          []*discordgo.MessageEdit
	userGuildCalls int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		channels: make(map[string]*discordgo.Channel),
		messages: make(map[string][]*discordgo.Message),
		users:    make(map[string]*discordgo.User),
		dms:      make(map[string]string),
	}
}

func unknownChannelErr() error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}
}

func (f *fakeSession) addGuild(id string) {
	f.guilds = append(f.guilds, &discordgo.UserGuild{ID: id})
}

func (f *fakeSession) addChannel(id, guildID string, chanType discordgo.ChannelType) *discordgo.Channel {
	c := &discordgo.Channel{ID: id, GuildID: guildID, Name: id, Type: chanType}
	f.channels[id] = c
	return c
}

func (f *fakeSession) addUser(id, username string) {
	f.users[id] = &discordgo.User{ID: id, Username: username}
}

func (f *fakeSession) channelMessages(id string) []*discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.Message(nil), f.messages[id]...)
}

func (f *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	cp := *c
	return &cp, nil
}

func (f *fakeSession) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*discordgo.Channel, 0)
	for _, c := range f.channels {
		if c.GuildID != guildID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	c := &discordgo.Channel{
		ID:       fmt.Sprintf("chan-%d", f.nextID),
		GuildID:  guildID,
		Name:     data.Name,
		Type:     data.Type,
		ParentID: data.ParentID,
	}
	f.channels[c.ID] = c
	return c, nil
}

func (f *fakeSession) ChannelEditComplex(channelID string, data *discordgo.ChannelEdit, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	if data.Topic != "" {
		c.Topic = data.Topic
	}
	if data.Name != "" {
		c.Name = data.Name
	}
	cp := *c
	return &cp, nil
}

func (f *fakeSession) ChannelDelete(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.channels[channelID]
	if !ok {
		return nil, unknownChannelErr()
	}
	delete(f.channels, channelID)
	f.deleted = append(f.deleted, channelID)
	return c, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.channels[channelID]; !ok {
		return nil, unknownChannelErr()
	}

	f.nextID++
	m := &discordgo.Message{
		ID:         fmt.Sprintf("msg-%d", f.nextID),
		ChannelID:  channelID,
		Content:    data.Content,
		Components: data.Components,
	}
	if data.Embed != nil {
		m.Embeds = []*discordgo.MessageEmbed{data.Embed}
	}
	for _, file := range data.Files {
		m.Attachments = append(m.Attachments, &discordgo.MessageAttachment{Filename: file.Name})
	}
	f.messages[channelID] = append(f.messages[channelID], m)
	return m, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.messages[channelID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	// Newest first, matching the live API.
	out := make([]*discordgo.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.dms[recipientID]; ok {
		return f.channels[id], nil
	}

	f.nextID++
	id := fmt.Sprintf("dm-%d", f.nextID)
	f.dms[recipientID] = id
	c := &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeDM}
	f.channels[id] = c
	return c, nil
}

func (f *fakeSession) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownUser}}
	}
	return u, nil
}

func (f *fakeSession) UserGuilds(_ int, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.UserGuild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.userGuildCalls++
	return append([]*discordgo.UserGuild(nil), f.guilds...), nil
}

// fakeRatingStore records saved ratings in memory.
type fakeRatingStore struct {
	mu      sync.Mutex
	records []*entities.RatingRecord
}

func (s *fakeRatingStore) SaveRating(_ context.Context, r *entities.RatingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *fakeRatingStore) saved() []*entities.RatingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.RatingRecord(nil), s.records...)
}
