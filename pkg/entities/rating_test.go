package entities

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRatingTokenRoundTrip(t *testing.T) {
	token := &RatingToken{
		TicketNumber: 42,
		UserID:       "123456789",
		ChannelID:    "987654321",
		Rating:       4,
	}

	id := token.CustomID()
	require.Equal(t, "rate_ticket_42_123456789_987654321_4", id)
	require.True(t, IsRatingCustomID(id))

	parsed, err := ParseRatingToken(id)
	require.NoError(t, err)
	require.Equal(t, token, parsed)
}

func TestIsRatingCustomID(t *testing.T) {
	require.True(t, IsRatingCustomID("rate_ticket_1_a_b_5"))
	require.False(t, IsRatingCustomID("claim_ticket"))
	require.False(t, IsRatingCustomID("close_ticket"))
	require.False(t, IsRatingCustomID(""))
}

func TestParseRatingTokenMalformed(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "wrong prefix", id: "close_ticket_42_a_b_4"},
		{name: "too few parts", id: "rate_ticket_42_a_4"},
		{name: "too many parts", id: "rate_ticket_42_a_b_c_4"},
		{name: "number not numeric", id: "rate_ticket_x_a_b_4"},
		{name: "zero number", id: "rate_ticket_0_a_b_4"},
		{name: "rating not numeric", id: "rate_ticket_42_a_b_x"},
		{name: "empty user", id: "rate_ticket_42__b_4"},
		{name: "empty channel", id: "rate_ticket_42_a__4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRatingToken(tt.id)
			require.ErrorIs(t, err, ErrMalformedRatingToken)
		})
	}
}
