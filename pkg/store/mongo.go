package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/blockorder/pkg/errors"
)

// MongoConfig configures a MongoStore.
type MongoConfig struct {
	URI        string        `toml:"uri"`
	Database   string        `toml:"database"`
	Collection string        `toml:"collection"`
	Timeout    time.Duration `toml:"timeout"`
}

func (c MongoConfig) withDefaults() (MongoConfig, error) {
	if c.URI == "" {
		return c, errors.New(errors.ErrCodeInvalidConfig, "mongo uri is required")
	}
	if err := errors.ValidateURI(c.URI, "mongodb", "mongodb+srv"); err != nil {
		return c, err
	}
	if c.Database == "" {
		c.Database = "blockorder"
	}
	if c.Collection == "" {
		c.Collection = "runs"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c, nil
}

// MongoStore stores runs in a MongoDB collection keyed by run id. A TTL
// index on expires_at lets the server drop expired runs on its own.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoStore connects to MongoDB and ensures the expiry index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}

	s := &MongoStore{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create expiry index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Run, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var run Run
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	if run.IsExpired() {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (s *MongoStore) Put(ctx context.Context, run *Run) error {
	if err := ValidateID(run.ID); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": run.ID}, run, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"layout": 0, "artifacts": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{"expires_at": bson.M{"$gt": time.Now()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []*Run
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("decode runs: %w", err)
	}
	return runs, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Cleanup removes expired runs without waiting for the TTL monitor.
func (s *MongoStore) Cleanup(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("cleanup runs: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
