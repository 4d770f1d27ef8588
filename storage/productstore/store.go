// Package productstore reads and writes product embedding columns and
// runs nearest-neighbor searches over them. Product lifecycle is owned
// by the catalog service; this package only touches the vector columns
// and the search projection.
package productstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgvectorpgx "github.com/pgvector/pgvector-go/pgx"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/pkg/retry"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
	"github.com/Tekstrive/fashionDeck/types"
)

const (
	defaultMaxConns = 8
	opTimeout       = 10 * time.Second
)

// Config configures the store.
type Config struct {
	// DSN is the postgres connection string.
	DSN string

	// MaxConns bounds the pool size. Zero means the default of 8.
	MaxConns int32

	Metrics *metric.Core
	Logger  *slog.Logger
}

// Store wraps a pgx pool with the datastore retry profile.
type Store struct {
	pool    *pgxpool.Pool
	policy  retry.Policy
	metrics *metric.Core
	logger  *slog.Logger
}

// EmbeddingUpdate is one row of a batch embedding write.
type EmbeddingUpdate struct {
	ProductID      string
	ImageEmbedding vector.Embedding
	TextEmbedding  vector.Embedding
}

// SearchQuery describes a similarity search. Filters are conjunctive
// and optional.
type SearchQuery struct {
	Embedding vector.Embedding
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	Limit     int
}

// New opens the pool and verifies connectivity. The pgvector codec is
// registered on every connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrMissingConfig, "productstore", "new", "dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fderrors.WrapInvalid(err, "productstore", "new", "parse dsn failed")
	}
	poolCfg.MaxConns = cfg.MaxConns
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = defaultMaxConns
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgvectorpgx.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "productstore", "new", "open pool failed")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		pool:    pool,
		policy:  retry.Datastore(),
		metrics: cfg.Metrics,
		logger:  logger.With("component", "productstore"),
	}

	if err := retry.Do(ctx, s.policy, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		return pool.Ping(pingCtx)
	}); err != nil {
		pool.Close()
		return nil, fderrors.WrapTransient(fderrors.ErrStoreUnavailable, "productstore", "new",
			fmt.Sprintf("ping failed: %v", err))
	}

	return s, nil
}

// UpdateProductEmbeddings writes whichever embeddings are present for
// one product. A call with neither embedding is a no-op.
func (s *Store) UpdateProductEmbeddings(ctx context.Context, productID string, image, text vector.Embedding) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if image != nil {
		args = append(args, pgvector.NewVector(image))
		sets = append(sets, fmt.Sprintf("image_embedding = $%d", len(args)))
	}
	if text != nil {
		args = append(args, pgvector.NewVector(text))
		sets = append(sets, fmt.Sprintf("text_embedding = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, productID)
	query := fmt.Sprintf("UPDATE products SET %s, updated_at = NOW() WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	start := time.Now()
	err := retry.Do(ctx, s.policy, func() error {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		_, err := s.pool.Exec(opCtx, query, args...)
		return err
	})
	s.metrics.ObserveUpstream("postgres", "update_embeddings", start, err)
	if err != nil {
		return fderrors.WrapTransient(err, "productstore", "update_embeddings",
			fmt.Sprintf("update product %s failed", productID))
	}
	return nil
}

// GetPendingProducts lists products still missing an image or text
// embedding, up to limit.
func (s *Store) GetPendingProducts(ctx context.Context, limit int) ([]types.Product, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT id, title, image_url
		FROM products
		WHERE image_embedding IS NULL OR text_embedding IS NULL
		LIMIT $1`

	start := time.Now()
	products, err := retry.DoWithResult(ctx, s.policy, func() ([]types.Product, error) {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		rows, err := s.pool.Query(opCtx, query, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []types.Product
		for rows.Next() {
			var p types.Product
			if err := rows.Scan(&p.ID, &p.Title, &p.ImageURL); err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, rows.Err()
	})
	s.metrics.ObserveUpstream("postgres", "get_pending", start, err)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "productstore", "get_pending", "list pending products failed")
	}
	return products, nil
}

// BatchUpdateEmbeddings writes many embedding rows in one round trip.
func (s *Store) BatchUpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	const query = `
		UPDATE products
		SET image_embedding = $1, text_embedding = $2, updated_at = NOW()
		WHERE id = $3`

	start := time.Now()
	err := retry.Do(ctx, s.policy, func() error {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(query,
				pgvector.NewVector(u.ImageEmbedding),
				pgvector.NewVector(u.TextEmbedding),
				u.ProductID)
		}
		return s.pool.SendBatch(opCtx, batch).Close()
	})
	s.metrics.ObserveUpstream("postgres", "batch_update", start, err)
	if err != nil {
		return fderrors.WrapTransient(err, "productstore", "batch_update",
			fmt.Sprintf("batch of %d updates failed", len(updates)))
	}

	s.logger.Info("batch updated product embeddings", "count", len(updates))
	return nil
}

// SearchSimilar ranks products by cosine similarity to the query
// embedding. Similarity is 1 minus the cosine distance computed by the
// vector operator; rows come back in ascending distance order.
func (s *Store) SearchSimilar(ctx context.Context, q SearchQuery) ([]types.ProductMatch, error) {
	if err := q.Embedding.Validate(); err != nil {
		return nil, fderrors.WrapInvalid(err, "productstore", "search", "bad query embedding")
	}
	if q.Limit <= 0 {
		return nil, fderrors.WrapInvalid(fderrors.ErrInvalidQuery, "productstore", "search", "limit must be positive")
	}

	target := pgvector.NewVector(q.Embedding)
	args := []any{target}
	filters := []string{"image_embedding IS NOT NULL"}

	if q.Category != "" {
		args = append(args, q.Category)
		filters = append(filters, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.MinPrice != nil {
		args = append(args, *q.MinPrice)
		filters = append(filters, fmt.Sprintf("price >= $%d", len(args)))
	}
	if q.MaxPrice != nil {
		args = append(args, *q.MaxPrice)
		filters = append(filters, fmt.Sprintf("price <= $%d", len(args)))
	}

	args = append(args, q.Limit)
	query := fmt.Sprintf(`
		SELECT id, title, price, image_url, 1 - (image_embedding <=> $1) AS similarity
		FROM products
		WHERE %s
		ORDER BY image_embedding <=> $1 ASC
		LIMIT $%d`,
		strings.Join(filters, " AND "), len(args))

	start := time.Now()
	matches, err := retry.DoWithResult(ctx, s.policy, func() ([]types.ProductMatch, error) {
		opCtx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		rows, err := s.pool.Query(opCtx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []types.ProductMatch
		for rows.Next() {
			var m types.ProductMatch
			if err := rows.Scan(&m.ID, &m.Title, &m.Price, &m.ImageURL, &m.Similarity); err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, rows.Err()
	})
	s.metrics.ObserveUpstream("postgres", "search_similar", start, err)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "productstore", "search", "similarity search failed")
	}
	return matches, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
