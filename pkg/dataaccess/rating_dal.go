package dataaccess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardenbot/warden/pkg/dataaccess/monitoring"
	"github.com/wardenbot/warden/pkg/entities"
	"github.com/wardenbot/warden/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ratingDalName = "rating_dal"

// RatingDal persists accepted ticket ratings.
type RatingDal interface {
	// SaveRating records an accepted rating. Saving again for the same
	// (ticket, opener, channel) key overwrites rather than duplicates, so a
	// replayed rating action stays a single record.
	SaveRating(ctx context.Context, r *entities.RatingRecord) error
}

type ratingDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewRatingDal creates a new rating data access layer.
func NewRatingDal() RatingDal {
	l := slog.Default().With(slog.String(logging.KeyDal, ratingDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &ratingDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *ratingDalImpl) SaveRating(ctx context.Context, r *entities.RatingRecord) error {
	collection := d.client.Database(mongoDatabase).Collection("ratings")

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ratingDalName, "save_rating", mongoDatabase, "ratings").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ratingDalName, "save_rating", mongoDatabase, "ratings"))
	defer t.ObserveDuration()

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, bson.M{
		"ticket_number": r.TicketNumber,
		"user_id":       r.UserID,
		"channel_id":    r.ChannelID,
	}, bson.M{"$set": r}, opts)
	if err != nil {
		return fmt.Errorf("error saving rating: %w", err)
	}
	return nil
}
