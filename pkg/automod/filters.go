package automod

import (
	"regexp"
	"strings"
)

// Filter inspects a message's content and reports the fragments that make
// it unacceptable. An empty result means the message passes.
type Filter interface {
	// Name identifies the filter in logs.
	Name() string

	// Reason is the user-facing explanation sent with a removal.
	Reason() string

	// Check returns the offending fragments found in content.
	Check(content string) []string
}

// blacklistFilter flags case-insensitive substring matches against a
// configured term list.
type blacklistFilter struct {
	terms []string
}

// NewBlacklistFilter creates the blacklisted-terms filter. Empty terms are
// dropped; matching is case-insensitive.
func NewBlacklistFilter(terms []string) Filter {
	kept := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			kept = append(kept, t)
		}
	}
	return &blacklistFilter{terms: kept}
}

func (f *blacklistFilter) Name() string { return "blacklist" }

func (f *blacklistFilter) Reason() string {
	return "your message contained a term that is not allowed here"
}

func (f *blacklistFilter) Check(content string) []string {
	lowered := strings.ToLower(content)
	var matches []string
	for _, term := range f.terms {
		if strings.Contains(lowered, term) {
			matches = append(matches, term)
		}
	}
	return matches
}

// invitePattern matches server invite links in both their short and long
// forms.
var invitePattern = regexp.MustCompile(`(discord\.gg/|discord\.com/invite/)([a-zA-Z0-9]+)`)

type inviteFilter struct{}

// NewInviteFilter creates the invite-link filter.
func NewInviteFilter() Filter {
	return &inviteFilter{}
}

func (f *inviteFilter) Name() string { return "invite" }

func (f *inviteFilter) Reason() string {
	return "posting invite links to other servers is not allowed here"
}

func (f *inviteFilter) Check(content string) []string {
	return invitePattern.FindAllString(content, -1)
}
