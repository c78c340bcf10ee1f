package automod

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlacklistFilter(t *testing.T) {
	f := NewBlacklistFilter([]string{"Spoiler", "  cheat  ", ""})

	require.Empty(t, f.Check("a perfectly fine message"))
	require.Equal(t, []string{"spoiler"}, f.Check("huge SPOILER ahead"))
	require.Equal(t, []string{"spoiler", "cheat"}, f.Check("spoiler and cheat in one"))
}

func TestBlacklistFilterEmptyTermList(t *testing.T) {
	f := NewBlacklistFilter(nil)
	require.Empty(t, f.Check("anything at all"))
}

func TestInviteFilter(t *testing.T) {
	f := NewInviteFilter()

	tests := []struct {
		name    string
		content string
		matches int
	}{
		{name: "short form", content: "join discord.gg/abc123", matches: 1},
		{name: "long form", content: "see discord.com/invite/xYz9", matches: 1},
		{name: "with scheme", content: "https://discord.gg/abc123", matches: 1},
		{name: "two invites", content: "discord.gg/one and discord.com/invite/two", matches: 2},
		{name: "plain text", content: "no invites here", matches: 0},
		{name: "bare domain", content: "discord.com is the website", matches: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, f.Check(tt.content), tt.matches)
		})
	}
}
