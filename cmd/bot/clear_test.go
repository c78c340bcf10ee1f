package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/stretchr/testify/require"
)

type fakeDeleter struct {
	mu         sync.Mutex
	bulkErr    error
	bulk       [][]string
	individual []string
}

func (f *fakeDeleter) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.individual = append(f.individual, messageID)
	return nil
}

func (f *fakeDeleter) ChannelMessagesBulkDelete(_ string, messages []string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return f.bulkErr
	}
	f.bulk = append(f.bulk, messages)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeleteMessagesBulk(t *testing.T) {
	f := &fakeDeleter{}

	err := deleteMessages(context.Background(), testLogger(), f, "chan-1", []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"m1", "m2", "m3"}}, f.bulk)
	require.Empty(t, f.individual)
}

func TestDeleteMessagesSingleGoesIndividual(t *testing.T) {
	f := &fakeDeleter{}

	err := deleteMessages(context.Background(), testLogger(), f, "chan-1", []string{"m1"})
	require.NoError(t, err)
	require.Empty(t, f.bulk)
	require.Equal(t, []string{"m1"}, f.individual)
}

func TestDeleteMessagesBulkFallback(t *testing.T) {
	f := &fakeDeleter{bulkErr: errors.New("bulk endpoint refused")}

	err := deleteMessages(context.Background(), testLogger(), f, "chan-1", []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	require.Empty(t, f.bulk)
	require.Equal(t, []string{"m1", "m2", "m3"}, f.individual)
}

func TestDeleteMessagesNothingEligible(t *testing.T) {
	f := &fakeDeleter{}

	require.NoError(t, deleteMessages(context.Background(), testLogger(), f, "chan-1", nil))
	require.Empty(t, f.bulk)
	require.Empty(t, f.individual)
}
