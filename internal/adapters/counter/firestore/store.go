// Package firestore provides a rate limit counter store shared by every
// orchestrator instance through Cloud Firestore transactions.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tjfontaine/campaign-orchestrator/internal/core/domain"
	"github.com/tjfontaine/campaign-orchestrator/internal/core/ports"
)

const (
	// DefaultCollection holds one document per rate limited identifier.
	DefaultCollection = "rate_limits"
	// DefaultCountTTL is how long a collection size is reused by Len.
	DefaultCountTTL = 30 * time.Second
)

var _ ports.CounterStore = (*Store)(nil)

// Store implements ports.CounterStore on a Firestore collection.
type Store struct {
	client     *firestore.Client
	collection string
	ownsClient bool

	countTTL time.Duration
	count    func(ctx context.Context) (int, error)
	now      func() time.Time

	mu        sync.Mutex
	cached    int
	countedAt time.Time
}

// New creates a Firestore client for projectID and wraps it.
func New(ctx context.Context, projectID, collection string, opts ...option.ClientOption) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id required")
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	s := NewWithClient(client, collection)
	s.ownsClient = true
	return s, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	s := &Store{client: client, collection: collection, countTTL: DefaultCountTTL, now: time.Now}
	s.count = s.aggregateCount
	return s
}

// SetCountTTL changes how long Len reuses a collection size. Zero counts on
// every call.
func (s *Store) SetCountTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countTTL = ttl
	s.countedAt = time.Time{}
}

// Update implements ports.CounterStore inside a Firestore transaction.
// Contended transactions are retried by the client, so fn may run more than once.
func (s *Store) Update(ctx context.Context, identifier string, fn func(current *domain.RateLimitEntry) domain.RateLimitEntry) error {
	ref := s.client.Collection(s.collection).Doc(docID(identifier))

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current *domain.RateLimitEntry

		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			// first call for this identifier
		case err != nil:
			return fmt.Errorf("read rate limit entry: %w", err)
		default:
			var entry domain.RateLimitEntry
			if err := snap.DataTo(&entry); err != nil {
				return fmt.Errorf("decode rate limit entry: %w", err)
			}
			current = &entry
		}

		next := fn(current)
		next.Identifier = identifier
		return tx.Set(ref, next)
	})
}

// Len implements ports.CounterStore. The guard asks on every request, so the
// size comes from a server-side count aggregation reused for the count TTL.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.countedAt.IsZero() && now.Sub(s.countedAt) < s.countTTL {
		return s.cached, nil
	}
	n, err := s.count(ctx)
	if err != nil {
		return 0, err
	}
	s.cached, s.countedAt = n, now
	return n, nil
}

func (s *Store) aggregateCount(ctx context.Context) (int, error) {
	const alias = "entries"
	res, err := s.client.Collection(s.collection).NewAggregationQuery().WithCount(alias).Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count rate limit entries: %w", err)
	}
	v, ok := res[alias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count rate limit entries: unexpected result %T", res[alias])
	}
	return int(v.GetIntegerValue()), nil
}

// EvictExpired implements ports.CounterStore.
func (s *Store) EvictExpired(ctx context.Context, now time.Time) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("resetTime", "<", now).
		Documents(ctx)
	defer iter.Stop()

	evicted := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			s.forget(evicted)
			return evicted, nil
		}
		if err != nil {
			s.forget(evicted)
			return evicted, fmt.Errorf("query expired entries: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			s.forget(evicted)
			return evicted, fmt.Errorf("delete expired entry %s: %w", doc.Ref.ID, err)
		}
		evicted++
	}
}

// forget takes evicted entries off the cached size.
func (s *Store) forget(evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = max(0, s.cached-evicted)
}

// Close releases the client when the store created it.
func (s *Store) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

// docID maps an identifier onto a valid document id.
func docID(identifier string) string {
	return strings.ReplaceAll(identifier, "/", "_")
}
