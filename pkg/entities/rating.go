package entities

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wardenbot/warden/pkg/custom"
)

// ratingPrefix is the leading segment of every rating button custom ID.
const ratingPrefix = "rate_ticket"

// ErrMalformedRatingToken is returned when a custom ID claiming to be a
// rating token cannot be decoded back into its four fields.
var ErrMalformedRatingToken = errors.New("malformed rating token")

// RatingToken is the self-describing reference carried by each rating button.
// Answering a rating requires no server-side session: everything needed to
// validate and log the answer is embedded in the button's custom ID.
type RatingToken struct {
	// TicketNumber is the number of the rated ticket.
	TicketNumber int

	// UserID is the ID of the ticket opener; only this user may answer.
	UserID string

	// ChannelID is the ID of the channel the ticket lived in.
	ChannelID string

	// Rating is the value this button submits, in [1,5].
	Rating int
}

// CustomID encodes the token as a button custom ID.
func (t *RatingToken) CustomID() string {
	return fmt.Sprintf("%s_%d_%s_%s_%d", ratingPrefix, t.TicketNumber, t.UserID, t.ChannelID, t.Rating)
}

// IsRatingCustomID reports whether a custom ID belongs to a rating button.
func IsRatingCustomID(customID string) bool {
	return strings.HasPrefix(customID, ratingPrefix+"_")
}

// ParseRatingToken decodes a rating button custom ID. Malformed tokens are
// rejected with ErrMalformedRatingToken; they must never crash the handler.
func ParseRatingToken(customID string) (*RatingToken, error) {
	parts := strings.Split(customID, "_")
	if len(parts) != 6 || parts[0] != "rate" || parts[1] != "ticket" {
		return nil, ErrMalformedRatingToken
	}

	number, err := strconv.Atoi(parts[2])
	if err != nil || number <= 0 {
		return nil, ErrMalformedRatingToken
	}

	rating, err := strconv.Atoi(parts[5])
	if err != nil {
		return nil, ErrMalformedRatingToken
	}

	if parts[3] == "" || parts[4] == "" {
		return nil, ErrMalformedRatingToken
	}

	return &RatingToken{
		TicketNumber: number,
		UserID:       parts[3],
		ChannelID:    parts[4],
		Rating:       rating,
	}, nil
}

// RatingRecord is an accepted rating, persisted once per rating request.
type RatingRecord struct {
	// TicketNumber is the number of the rated ticket.
	TicketNumber int `json:"ticket_number" bson:"ticket_number"`

	// UserID is the ID of the opener that answered.
	UserID string `json:"user_id" bson:"user_id"`

	// ChannelID is the ID of the origin ticket channel.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// Rating is the accepted value in [1,5].
	Rating int `json:"rating" bson:"rating"`

	// LoggedAt is the time the rating was accepted.
	LoggedAt custom.Datetime `json:"logged_at" bson:"logged_at"`
}
