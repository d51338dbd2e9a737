package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/freeeve/chessbot/internal/logx"
)

const patternCollection = "learning_patterns"

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, unavailable("connect mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("ping mongo", err)
	}
	return client, nil
}

// MongoPatterns is a PatternStore on a MongoDB collection.
type MongoPatterns struct {
	coll *mongo.Collection
	log  zerolog.Logger
}

// NewMongoPatterns uses the learning_patterns collection of db and ensures
// its unique (playerId, signature) index.
func NewMongoPatterns(ctx context.Context, db *mongo.Database, logger zerolog.Logger) (*MongoPatterns, error) {
	m := &MongoPatterns{
		coll: db.Collection(patternCollection),
		log:  logx.Component(logger, "mongo-patterns"),
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "playerId", Value: 1}, {Key: "signature", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "playerId", Value: 1}, {Key: "lastUsed", Value: -1}}},
	})
	if err != nil {
		return nil, unavailable("create pattern indexes", err)
	}
	return m, nil
}

func (m *MongoPatterns) Upsert(ctx context.Context, d PatternDelta) error {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	set := bson.M{
		"opening":  d.Opening,
		"lastUsed": d.At,
	}
	if d.OpeningName != "" {
		set["openingName"] = d.OpeningName
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{
			"frequency": 1,
			"wins":      d.Wins,
			"losses":    d.Losses,
			"draws":     d.Draws,
			"blunders":  d.Blunders,
		},
		"$setOnInsert": bson.M{
			"createdAt": d.At,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.coll.UpdateOne(ctx, bson.M{
		"playerId":  d.PlayerID,
		"signature": d.Signature,
	}, update, opts)
	if err != nil {
		return unavailable(fmt.Sprintf("upsert pattern %s/%s", d.PlayerID, d.Signature), err)
	}
	return nil
}

func (m *MongoPatterns) List(ctx context.Context, playerID string) ([]Pattern, error) {
	opts := options.Find().SetSort(bson.D{{Key: "signature", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.M{"playerId": playerID}, opts)
	if err != nil {
		return nil, unavailable("list patterns", err)
	}
	defer cur.Close(ctx)

	var out []Pattern
	if err := cur.All(ctx, &out); err != nil {
		return nil, unavailable("decode patterns", err)
	}
	return out, nil
}

func (m *MongoPatterns) DeletePlayer(ctx context.Context, playerID string) error {
	res, err := m.coll.DeleteMany(ctx, bson.M{"playerId": playerID})
	if err != nil {
		return unavailable("delete patterns", err)
	}
	m.log.Info().Str("player", playerID).Int64("deleted", res.DeletedCount).Msg("patterns reset")
	return nil
}

// Players returns every player id with at least one row.
func (m *MongoPatterns) Players(ctx context.Context) ([]string, error) {
	vals, err := m.coll.Distinct(ctx, "playerId", bson.D{})
	if err != nil {
		return nil, unavailable("list players", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}
