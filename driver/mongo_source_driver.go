package driver

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type mongoPost struct {
	ID        string     `bson:"_id"`
	Title     string     `bson:"title"`
	Body      string     `bson:"body,omitempty"`
	Tags      []string   `bson:"tags,omitempty"`
	Category  string     `bson:"category,omitempty"`
	Author    string     `bson:"author,omitempty"`
	Language  string     `bson:"language,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
	ViewCount int64      `bson:"view_count"`
	LikeCount int64      `bson:"like_count"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty"`
}

func (m mongoPost) row() PostRow {
	return PostRow{
		ID:        m.ID,
		Title:     m.Title,
		Body:      m.Body,
		Tags:      m.Tags,
		Category:  m.Category,
		Author:    m.Author,
		Language:  m.Language,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		ViewCount: m.ViewCount,
		LikeCount: m.LikeCount,
		DeletedAt: m.DeletedAt,
	}
}

// MongoSourceDriver reads posts from a MongoDB collection keyed by string _id.
type MongoSourceDriver struct {
	coll *mongo.Collection
}

// NewMongoClient connects and pings the primary.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, newDriverError("NewMongoClient", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &DriverError{Op: "NewMongoClient", Err: err.Error(), Unavailable: true}
	}
	return client, nil
}

func NewMongoSourceDriver(coll *mongo.Collection) *MongoSourceDriver {
	return &MongoSourceDriver{coll: coll}
}

// ListChanged pages on (updated_at, _id), oldest first.
func (d *MongoSourceDriver) ListChanged(ctx context.Context, afterUpdatedAt time.Time, afterID string, limit int) ([]PostRow, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"updated_at": bson.M{"$gt": afterUpdatedAt}},
		bson.M{"updated_at": afterUpdatedAt, "_id": bson.M{"$gt": afterID}},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	return d.find(ctx, "ListChanged", filter, opts)
}

func (d *MongoSourceDriver) GetByIDs(ctx context.Context, ids []string) ([]PostRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}})
	return d.find(ctx, "GetByIDs", bson.M{"_id": bson.M{"$in": ids}}, opts)
}

func (d *MongoSourceDriver) Count(ctx context.Context) (int64, error) {
	n, err := d.coll.CountDocuments(ctx, bson.M{"deleted_at": nil})
	if err != nil {
		return 0, newDriverError("Count", err)
	}
	return n, nil
}

func (d *MongoSourceDriver) Ping(ctx context.Context) error {
	if err := d.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return &DriverError{Op: "Ping", Err: err.Error(), Unavailable: true}
	}
	return nil
}

func (d *MongoSourceDriver) find(ctx context.Context, op string, filter any, opts *options.FindOptions) ([]PostRow, error) {
	cur, err := d.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, newDriverError(op, err)
	}
	defer cur.Close(ctx)

	var docs []mongoPost
	if err := cur.All(ctx, &docs); err != nil {
		return nil, newDriverError(op, err)
	}

	rows := make([]PostRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, doc.row())
	}
	return rows, nil
}
