package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotATicket is returned when a channel descriptor does not parse as a
// managed ticket. This is a "not applicable" result, not a failure: channels
// with foreign or empty topics are simply not ours.
var ErrNotATicket = errors.New("channel is not a managed ticket")

// Category is a ticket category. The set is fixed; each category maps to a
// configured destination category channel.
type Category string

const (
	CategoryQuestions     Category = "questions"
	CategoryStore         Category = "store"
	CategoryReports       Category = "reports"
	CategoryOrganizations Category = "organizations"
	CategoryStreamers     Category = "streamers"
	CategoryUnban         Category = "unban"
	CategoryOther         Category = "other"
)

// Categories lists every ticket category in panel order.
func Categories() []Category {
	return []Category{
		CategoryQuestions,
		CategoryStore,
		CategoryReports,
		CategoryOrganizations,
		CategoryStreamers,
		CategoryUnban,
		CategoryOther,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Label returns the category formatted for display.
func (c Category) Label() string {
	s := strings.ReplaceAll(string(c), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Ticket is the durable state of a support conversation. It is serialized as
// a JSON blob into the hosting channel's topic; anything that fails to parse
// back out of a topic is treated as "not a ticket" rather than an error.
type Ticket struct {
	// UserID is the ID of the user that opened the ticket.
	UserID string `json:"userId"`

	// Category is the ticket category selected at creation.
	Category Category `json:"ticketType"`

	// Number is the deployment-wide sequence number of the ticket.
	Number int `json:"ticketNumber"`

	// CreatedAt is the creation time in Unix milliseconds.
	CreatedAt int64 `json:"createdAt"`

	// LastActivity is the time of the last non-bot message in Unix milliseconds.
	LastActivity int64 `json:"lastActivity"`

	// WarningSent is whether an inactivity warning has been sent since the
	// last activity.
	WarningSent bool `json:"warningSent"`

	// Archived is whether closure has been initiated. Archived tickets are
	// skipped by the inactivity sweep and never transition again.
	Archived bool `json:"archived,omitempty"`

	// ClaimedBy is the ID of the staff member that claimed the ticket, if any.
	ClaimedBy string `json:"claimedBy,omitempty"`
}

// NewTicket creates the initial state of a ticket opened now.
func NewTicket(userID string, category Category, number int, now time.Time) *Ticket {
	ms := now.UnixMilli()
	return &Ticket{
		UserID:       userID,
		Category:     category,
		Number:       number,
		CreatedAt:    ms,
		LastActivity: ms,
	}
}

// ParseTicket parses a channel topic into a Ticket. It returns ErrNotATicket
// for anything that is not a blob written by this bot, including topics that
// parse as JSON but lack the required fields.
func ParseTicket(topic string) (*Ticket, error) {
	if topic == "" {
		return nil, ErrNotATicket
	}

	t := new(Ticket)
	if err := json.Unmarshal([]byte(topic), t); err != nil {
		return nil, ErrNotATicket
	}

	if t.UserID == "" || t.Category == "" || t.Number == 0 {
		return nil, ErrNotATicket
	}
	return t, nil
}

// Encode serializes the ticket into its channel topic form.
func (t *Ticket) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("error encoding ticket: %w", err)
	}
	return string(b), nil
}

// Touch records activity at the given time and clears any pending inactivity
// warning.
func (t *Ticket) Touch(now time.Time) {
	t.LastActivity = now.UnixMilli()
	t.WarningSent = false
}

// LastActivityTime returns the last activity as a time.Time, falling back to
// the creation time for tickets written before activity tracking existed.
func (t *Ticket) LastActivityTime() time.Time {
	ms := t.LastActivity
	if ms == 0 {
		ms = t.CreatedAt
	}
	return time.UnixMilli(ms)
}

// FormattedNumber returns the ticket number as the zero-padded label used in
// channel names and user-facing messages.
func (t *Ticket) FormattedNumber() string {
	return fmt.Sprintf("%04d", t.Number)
}

// ChannelName builds the name of the hosting channel from the opener's
// username.
func (t *Ticket) ChannelName(username string) string {
	name := strings.ReplaceAll(strings.ToLower(username), " ", "-")
	return fmt.Sprintf("%s-%s-%s", t.FormattedNumber(), name, t.Category)
}
