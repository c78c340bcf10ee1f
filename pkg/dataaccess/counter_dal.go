package dataaccess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardenbot/warden/pkg/dataaccess/monitoring"
	"github.com/wardenbot/warden/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const counterDalName = "counter_dal"

// counterKey is the well-known key of the ticket sequence counter.
const counterKey = "ticket_counter"

// CounterDal allocates ticket numbers from the persisted sequence counter.
type CounterDal interface {
	// Next returns the next ticket number. Every returned value is strictly
	// greater than all previously returned values, including under
	// concurrent allocation: the increment happens atomically in storage.
	Next(ctx context.Context) (int, error)
}

type counterDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewCounterDal creates a new counter data access layer.
func NewCounterDal() CounterDal {
	l := slog.Default().With(slog.String(logging.KeyDal, counterDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &counterDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (c *counterDalImpl) Next(ctx context.Context) (int, error) {
	collection := c.client.Database(mongoDatabase).Collection("counters")

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(counterDalName, "next", mongoDatabase, "counters").Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(counterDalName, "next", mongoDatabase, "counters"))
	defer t.ObserveDuration()

	// Atomic read-increment-persist. The upsert makes a missing counter
	// behave as zero.
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Value int `bson:"value"`
	}
	err := collection.FindOneAndUpdate(ctx,
		bson.M{"key": counterKey},
		bson.M{"$inc": bson.M{"value": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("error incrementing counter: %w", err)
	}

	return counter.Value, nil
}
