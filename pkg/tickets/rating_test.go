package tickets

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/stretchr/testify/require"
)

func newTestRatings(t *testing.T) (*Ratings, *fakeSession, *fakeRatingStore) {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := newFakeSession()
	f.addChannel(testRatingLogs, testGuildID, discordgo.ChannelTypeGuildText)
	store := &fakeRatingStore{}
	return NewRatings(l, f, store, testRatingLogs), f, store
}

func TestRatingsSendRequest(t *testing.T) {
	r, f, _ := newTestRatings(t)

	ticket := entities.NewTicket("opener-1", entities.CategoryQuestions, 7, r.now())
	require.NoError(t, r.SendRequest(context.Background(), ticket, "chan-7", "resolved"))

	dmID := f.dms["opener-1"]
	require.NotEmpty(t, dmID)

	msgs := f.channelMessages(dmID)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Components, 1)

	row, ok := msgs[0].Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 5)

	for i, c := range row.Components {
		b, ok := c.(discordgo.Button)
		require.True(t, ok)
		require.True(t, entities.IsRatingCustomID(b.CustomID))

		token, err := entities.ParseRatingToken(b.CustomID)
		require.NoError(t, err)
		require.Equal(t, 7, token.TicketNumber)
		require.Equal(t, "opener-1", token.UserID)
		require.Equal(t, "chan-7", token.ChannelID)
		require.Equal(t, i+1, token.Rating)
	}
}

func ratingPromptMessage() *discordgo.Message {
	buttons := make([]discordgo.MessageComponent, 0, 5)
	for rating := 1; rating <= 5; rating++ {
		token := entities.RatingToken{TicketNumber: 7, UserID: "opener-1", ChannelID: "chan-7", Rating: rating}
		buttons = append(buttons, &discordgo.Button{
			Style:    discordgo.SecondaryButton,
			CustomID: token.CustomID(),
		})
	}
	return &discordgo.Message{
		ID:        "prompt-1",
		ChannelID: "dm-1",
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: buttons},
		},
	}
}

func TestRatingsHandleAnswer(t *testing.T) {
	r, f, store := newTestRatings(t)

	token := &entities.RatingToken{TicketNumber: 7, UserID: "opener-1", ChannelID: "chan-7", Rating: 4}
	require.NoError(t, r.HandleAnswer(context.Background(), "opener-1", token, ratingPromptMessage()))

	saved := store.saved()
	require.Len(t, saved, 1)
	require.Equal(t, 7, saved[0].TicketNumber)
	require.Equal(t, 4, saved[0].Rating)

	// Announced once in the log channel.
	require.Len(t, f.channelMessages(testRatingLogs), 1)

	// Buttons disabled on the prompt.
	require.Len(t, f.edits, 1)
	row, ok := f.edits[0].Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	for _, c := range row.Components {
		b, ok := c.(discordgo.Button)
		require.True(t, ok)
		require.True(t, b.Disabled)
	}
}

func TestRatingsHandleAnswerOpenerOnly(t *testing.T) {
	r, f, store := newTestRatings(t)

	token := &entities.RatingToken{TicketNumber: 7, UserID: "opener-1", ChannelID: "chan-7", Rating: 4}
	err := r.HandleAnswer(context.Background(), "somebody-else", token, ratingPromptMessage())
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.Empty(t, store.saved())
	require.Empty(t, f.channelMessages(testRatingLogs))
	require.Empty(t, f.edits)
}

func TestRatingsHandleAnswerRange(t *testing.T) {
	r, _, store := newTestRatings(t)

	for _, rating := range []int{0, 6, -1} {
		token := &entities.RatingToken{TicketNumber: 7, UserID: "opener-1", ChannelID: "chan-7", Rating: rating}
		err := r.HandleAnswer(context.Background(), "opener-1", token, ratingPromptMessage())
		require.ErrorIs(t, err, entities.ErrMalformedRatingToken)
	}
	require.Empty(t, store.saved())
}

func disablePromptButtons(prompt *discordgo.Message) {
	for _, c := range prompt.Components {
		row := c.(*discordgo.ActionsRow)
		for _, rc := range row.Components {
			rc.(*discordgo.Button).Disabled = true
		}
	}
}

func TestRatingsDisabledPromptNotReEdited(t *testing.T) {
	r, f, _ := newTestRatings(t)

	prompt := ratingPromptMessage()
	disablePromptButtons(prompt)

	token := &entities.RatingToken{TicketNumber: 7, UserID: "opener-1", ChannelID: "chan-7", Rating: 3}
	require.NoError(t, r.HandleAnswer(context.Background(), "opener-1", token, prompt))
	require.Empty(t, f.edits)
}

func TestRatingsReplayedAnswerNotRelogged(t *testing.T) {
	r, f, store := newTestRatings(t)

	prompt := ratingPromptMessage()
	token := &entities.RatingToken{TicketNumber: 7, UserID: "opener-1", ChannelID: "chan-7", Rating: 3}
	require.NoError(t, r.HandleAnswer(context.Background(), "opener-1", token, prompt))
	require.Len(t, store.saved(), 1)
	require.Len(t, f.channelMessages(testRatingLogs), 1)
	require.Len(t, f.edits, 1)

	// The client has applied the edit by the time the press replays.
	disablePromptButtons(prompt)

	require.NoError(t, r.HandleAnswer(context.Background(), "opener-1", token, prompt))
	require.Len(t, store.saved(), 1)
	require.Len(t, f.channelMessages(testRatingLogs), 1)
	require.Len(t, f.edits, 1)
}
