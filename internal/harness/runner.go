package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

// Observer receives a measurement for every operation and scenario.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveOp(op, outcome string, elapsed time.Duration)
	ObserveScenario(name string, pass bool)
}

type nopObserver struct{}

func (nopObserver) ObserveOp(string, string, time.Duration) {}
func (nopObserver) ObserveScenario(string, bool)            {}

// IDGenerator produces run ids.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithObserver reports every operation and scenario to o.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithClock replaces time.Now for measuring elapsed time.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunIDs sets the generator for result run ids. The default issues
// time-ordered UUIDs.
func WithRunIDs(g IDGenerator) Option {
	return func(r *Runner) { r.runIDs = g }
}

// Runner executes round-trip sequences against one target.
//
// A Runner holds no connection itself; every sequence opens its own Handle,
// so one Runner can drive many sequences concurrently.
type Runner struct {
	dialer   store.Dialer
	cfg      store.Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	runIDs   IDGenerator
}

// NewRunner creates a runner that dials cfg through dialer.
func NewRunner(dialer store.Dialer, cfg store.Config, opts ...Option) *Runner {
	r := &Runner{
		dialer:   dialer,
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: nopObserver{},
		now:      time.Now,
		runIDs:   uuidGenerator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the connection configuration the runner dials with.
func (r *Runner) Config() store.Config {
	return r.cfg
}

// Handle is an open connection owned by one sequence.
// It is closed at most once.
type Handle struct {
	conn   store.Conn
	closed atomic.Bool
}

// Conn returns the underlying store connection.
func (h *Handle) Conn() store.Conn {
	return h.conn
}

// Closed reports whether Close has been called on h.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// WriteResult describes a successful write.
type WriteResult struct {
	// InsertedID is the _id the store holds the document under.
	InsertedID any
}

// Connect validates the configuration and opens a connection. Dialing and
// the initial handshake are bounded by Config.ConnectTimeout.
func (r *Runner) Connect(ctx context.Context) (*Handle, error) {
	start := r.now()
	h, err := r.connect(ctx)
	r.track(OpConnect, start, err, "target", Redact(r.cfg.URI), "max_pool_size", r.cfg.MaxPoolSize)
	return h, err
}

func (r *Runner) connect(ctx context.Context) (*Handle, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, &StepError{Kind: KindConnection, Op: OpConnect, Err: err}
	}
	ctx, cancel := withTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()

	conn, err := r.dialer.Dial(ctx, r.cfg)
	if err != nil {
		return nil, stepError(OpConnect, KindConnection, err)
	}
	return &Handle{conn: conn}, nil
}

// WriteDocument inserts d into collection.
func (r *Runner) WriteDocument(ctx context.Context, h *Handle, collection string, d doc.Document) (WriteResult, error) {
	start := r.now()
	res, err := r.write(ctx, h, collection, d)
	r.track(OpInsert, start, err, "collection", collection)
	return res, err
}

func (r *Runner) write(ctx context.Context, h *Handle, collection string, d doc.Document) (WriteResult, error) {
	if h.Closed() {
		return WriteResult{}, &StepError{Kind: KindWrite, Op: OpInsert, Err: store.ErrClosed}
	}
	ctx, cancel := withTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	id, err := h.conn.InsertOne(ctx, collection, d)
	if err != nil {
		return WriteResult{}, stepError(OpInsert, KindWrite, err)
	}
	return WriteResult{InsertedID: id}, nil
}

// ReadDocument fetches the first document matching q.
//
// With FetchDirect it issues a point lookup. With FetchCursor it opens a
// cursor carrying the query's read preference, advances it exactly once and
// closes it on every path. Either way a miss fails with kind not_found.
func (r *Runner) ReadDocument(ctx context.Context, h *Handle, q Query) (doc.Document, error) {
	start := r.now()
	d, err := r.read(ctx, h, q)
	r.track(q.op(), start, err, "collection", q.collection, "read_preference", q.readPref.String())
	return d, err
}

func (r *Runner) read(ctx context.Context, h *Handle, q Query) (doc.Document, error) {
	op := q.op()
	if h.Closed() {
		return nil, &StepError{Kind: KindRead, Op: op, Err: store.ErrClosed}
	}
	ctx, cancel := withTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	if q.mode != FetchCursor {
		d, err := h.conn.FindOne(ctx, q.collection, q.filter, q.readPref)
		if err != nil {
			return nil, stepError(op, KindRead, err)
		}
		return d, nil
	}

	cur, err := h.conn.Find(ctx, q.collection, q.filter, q.readPref)
	if err != nil {
		return nil, stepError(op, KindRead, err)
	}
	defer func() {
		if err := cur.Close(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("cursor close failed", "collection", q.collection, "error", err)
		}
	}()

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, stepError(op, KindRead, err)
		}
		return nil, &StepError{
			Kind: KindNotFound,
			Op:   op,
			Err:  fmt.Errorf("cursor over %q returned no documents: %w", q.collection, store.ErrNotFound),
		}
	}
	d, err := cur.Document()
	if err != nil {
		return nil, stepError(op, KindRead, err)
	}
	return d, nil
}

// Drop removes collection and everything in it.
func (r *Runner) Drop(ctx context.Context, h *Handle, collection string) error {
	start := r.now()
	err := r.drop(ctx, h, collection)
	r.track(OpDrop, start, err, "collection", collection)
	return err
}

func (r *Runner) drop(ctx context.Context, h *Handle, collection string) error {
	if h.Closed() {
		return &StepError{Kind: KindWrite, Op: OpDrop, Err: store.ErrClosed}
	}
	ctx, cancel := withTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	if err := h.conn.Drop(ctx, collection); err != nil {
		return stepError(OpDrop, KindWrite, err)
	}
	return nil
}

// Close releases h. Cancellation of ctx does not prevent the release; it is
// bounded by Config.ConnectTimeout instead. Closing twice fails with
// store.ErrClosed and leaves the connection alone.
func (r *Runner) Close(ctx context.Context, h *Handle) error {
	start := r.now()
	err := r.close(ctx, h)
	r.track(OpClose, start, err)
	return err
}

func (r *Runner) close(ctx context.Context, h *Handle) error {
	if !h.closed.CompareAndSwap(false, true) {
		return &StepError{Kind: KindConnection, Op: OpClose, Err: store.ErrClosed}
	}
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), r.cfg.ConnectTimeout)
	defer cancel()

	if err := h.conn.Close(ctx); err != nil {
		return stepError(OpClose, KindConnection, err)
	}
	return nil
}

// RoundTrip connects, writes document, reads it back with q, asserts that
// every written field came back equal and closes the connection. The first
// failure ends the sequence; the connection is closed regardless and a close
// failure is reported only when nothing failed before it.
func (r *Runner) RoundTrip(ctx context.Context, collection string, document doc.Document, q Query) (_ doc.Document, err error) {
	h, err := r.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(ctx, h); err == nil {
			err = cerr
		}
	}()

	if _, err := r.WriteDocument(ctx, h, collection, document); err != nil {
		return nil, err
	}
	got, err := r.ReadDocument(ctx, h, q)
	if err != nil {
		return nil, err
	}
	if err := AssertEqual(got, document); err != nil {
		return got, err
	}
	return got, nil
}

// track logs and observes one finished operation.
func (r *Runner) track(op string, start time.Time, err error, attrs ...any) {
	elapsed := r.now().Sub(start)
	out := outcome(err)
	r.observer.ObserveOp(op, out, elapsed)

	args := append([]any{"op", op, "outcome", out, "elapsed", elapsed}, attrs...)
	if err != nil {
		r.logger.Warn("operation failed", append(args, "error", err)...)
		return
	}
	r.logger.Debug("operation completed", args...)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Redact drops credentials from a target before it is logged or reported.
func Redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	end := strings.IndexByte(rest, '/')
	if end < 0 {
		end = len(rest)
	}
	at := strings.LastIndexByte(rest[:end], '@')
	if at < 0 {
		return uri
	}
	return scheme + "://***@" + rest[at+1:]
}
