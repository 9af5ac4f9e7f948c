// Package mongostore implements the store contract on the official MongoDB
// Go driver.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

var (
	_ store.Dialer = Dialer{}
	_ store.Conn   = (*Conn)(nil)
	_ store.Cursor = (*Cursor)(nil)
)

// Dialer connects to MongoDB deployments.
type Dialer struct {
	// Options are applied after the ones derived from the Config.
	Options []*options.ClientOptions
}

// Dial connects and pings the deployment so an unreachable target fails here
// rather than on the first operation.
func (d Dialer) Dial(ctx context.Context, cfg store.Config) (store.Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize)
	if cfg.ConnectTimeout > 0 {
		base.SetConnectTimeout(cfg.ConnectTimeout)
		base.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	opts := append([]*options.ClientOptions{base}, d.Options...)

	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", classify(err))
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping: %w", classify(err))
	}

	return &Conn{client: client, db: client.Database(cfg.Database)}, nil
}

// Conn wraps a connected client and the database the harness works in.
type Conn struct {
	client *mongo.Client
	db     *mongo.Database
	closed atomic.Bool
}

// Client returns the underlying driver client.
func (c *Conn) Client() *mongo.Client {
	return c.client
}

func (c *Conn) collection(name string, pref store.ReadPref) (*mongo.Collection, error) {
	if pref == "" {
		return c.db.Collection(name), nil
	}
	rp, err := readPref(pref)
	if err != nil {
		return nil, err
	}
	return c.db.Collection(name, options.Collection().SetReadPreference(rp)), nil
}

// InsertOne implements store.Conn.
func (c *Conn) InsertOne(ctx context.Context, collection string, d doc.Document) (any, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("insert: %w", store.ErrClosed)
	}
	res, err := c.db.Collection(collection).InsertOne(ctx, d.D())
	if err != nil {
		return nil, fmt.Errorf("insert: %w", classify(err))
	}
	return res.InsertedID, nil
}

// FindOne implements store.Conn.
func (c *Conn) FindOne(ctx context.Context, collection string, filter doc.Document, pref store.ReadPref) (doc.Document, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("find one: %w", store.ErrClosed)
	}
	coll, err := c.collection(collection, pref)
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}

	var out bson.D
	if err := coll.FindOne(ctx, filterD(filter)).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find one in %q: %w", collection, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find one: %w", classify(err))
	}
	return doc.Document(out), nil
}

// Find implements store.Conn.
func (c *Conn) Find(ctx context.Context, collection string, filter doc.Document, pref store.ReadPref) (store.Cursor, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("find: %w", store.ErrClosed)
	}
	coll, err := c.collection(collection, pref)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	cur, err := coll.Find(ctx, filterD(filter))
	if err != nil {
		return nil, fmt.Errorf("find: %w", classify(err))
	}
	return &Cursor{cur: cur}, nil
}

// Drop implements store.Conn.
func (c *Conn) Drop(ctx context.Context, collection string) error {
	if c.closed.Load() {
		return fmt.Errorf("drop: %w", store.ErrClosed)
	}
	if err := c.db.Collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("drop: %w", classify(err))
	}
	return nil
}

// Close disconnects the client. A second call returns store.ErrClosed.
func (c *Conn) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return store.ErrClosed
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", classify(err))
	}
	return nil
}

// Cursor adapts a driver cursor.
type Cursor struct {
	cur *mongo.Cursor
}

func (c *Cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *Cursor) Document() (doc.Document, error) {
	var out bson.D
	if err := c.cur.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc.Document(out), nil
}

func (c *Cursor) Err() error {
	if err := c.cur.Err(); err != nil {
		return fmt.Errorf("cursor: %w", classify(err))
	}
	return nil
}

func (c *Cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// readPref converts a store preference into the driver's.
func readPref(p store.ReadPref) (*readpref.ReadPref, error) {
	mode, err := readpref.ModeFromString(string(p))
	if err != nil {
		return nil, fmt.Errorf("read preference %q: %w", p, err)
	}
	return readpref.New(mode)
}

// filterD sends an empty filter as {} rather than a nil document.
func filterD(filter doc.Document) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter.D()
}

// classify wraps driver errors with the store sentinels callers match on.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", store.ErrTimeout, err)
	case errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %w", store.ErrClosed, err)
	default:
		return err
	}
}
