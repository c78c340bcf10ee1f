package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wardenbot/warden/pkg/dataaccess/monitoring"
	"github.com/wardenbot/warden/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsDalName = "settings_dal"

// SettingsDal reads and writes small bot-owned settings, such as the ID of
// the delivered ticket panel message.
type SettingsDal interface {
	// GetPanelMessageID returns the saved panel message ID for a channel, or
	// "" when none has been saved yet.
	GetPanelMessageID(ctx context.Context, channelID string) (string, error)

	// SavePanelMessageID saves the panel message ID for a channel.
	SavePanelMessageID(ctx context.Context, channelID, messageID string) error
}

type settingsDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewSettingsDal creates a new settings data access layer.
func NewSettingsDal() SettingsDal {
	l := slog.Default().With(slog.String(logging.KeyDal, settingsDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &settingsDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *settingsDalImpl) GetPanelMessageID(ctx context.Context, channelID string) (string, error) {
	collection := d.client.Database(mongoDatabase).Collection("settings")

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(settingsDalName, "get_panel_message_id", mongoDatabase, "settings").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(settingsDalName, "get_panel_message_id", mongoDatabase, "settings"))
	defer t.ObserveDuration()

	var setting struct {
		MessageID string `bson:"message_id"`
	}
	err := collection.FindOne(ctx, bson.M{"key": "panel_message", "channel_id": channelID}).Decode(&setting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("error getting panel message id: %w", err)
	}
	return setting.MessageID, nil
}

func (d *settingsDalImpl) SavePanelMessageID(ctx context.Context, channelID, messageID string) error {
	collection := d.client.Database(mongoDatabase).Collection("settings")

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(settingsDalName, "save_panel_message_id", mongoDatabase, "settings").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(settingsDalName, "save_panel_message_id", mongoDatabase, "settings"))
	defer t.ObserveDuration()

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx,
		bson.M{"key": "panel_message", "channel_id": channelID},
		bson.M{"$set": bson.M{"message_id": messageID}},
		opts,
	)
	if err != nil {
		return fmt.Errorf("error saving panel message id: %w", err)
	}
	return nil
}
