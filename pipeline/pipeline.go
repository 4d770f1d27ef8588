// Package pipeline keeps the catalog's embedding columns populated. It
// encodes single products on demand and sweeps the backlog of products
// still missing embeddings in batches.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tekstrive/fashionDeck/encoder"
	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
	"github.com/Tekstrive/fashionDeck/pkg/worker"
	"github.com/Tekstrive/fashionDeck/storage/productstore"
	"github.com/Tekstrive/fashionDeck/types"
)

// ProductWriter is the slice of the product store the pipeline needs.
type ProductWriter interface {
	GetPendingProducts(ctx context.Context, limit int) ([]types.Product, error)
	UpdateProductEmbeddings(ctx context.Context, productID string, image, text vector.Embedding) error
	BatchUpdateEmbeddings(ctx context.Context, updates []productstore.EmbeddingUpdate) error
}

// Config configures the pipeline.
type Config struct {
	// Workers bounds concurrent single-product jobs.
	Workers int

	// QueueSize bounds the single-product job queue.
	QueueSize int

	// BatchSize is how many pending products one sweep pulls.
	BatchSize int

	Logger *slog.Logger
}

// Pipeline encodes product embeddings and persists them.
type Pipeline struct {
	store     ProductWriter
	encoder   encoder.Encoder
	pool      *worker.Pool[types.Product]
	batchSize int
	logger    *slog.Logger
}

// New wires the pipeline. Call Start before submitting work.
func New(store ProductWriter, enc encoder.Encoder, cfg Config, opts ...worker.Option[types.Product]) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	p := &Pipeline{
		store:     store,
		encoder:   enc,
		batchSize: batchSize,
		logger:    logger.With("component", "pipeline"),
	}
	p.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, p.process, opts...)
	return p
}

// Start launches the background workers.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.pool.Start(ctx)
}

// Stop drains the worker pool.
func (p *Pipeline) Stop(timeout time.Duration) error {
	return p.pool.Stop(timeout)
}

// Stats exposes worker pool counters for the health payload.
func (p *Pipeline) Stats() worker.Stats {
	return p.pool.Stats()
}

// Enqueue schedules one product for background processing.
func (p *Pipeline) Enqueue(product types.Product) error {
	return p.pool.Submit(product)
}

// ProcessProduct encodes and persists both embeddings for one product
// synchronously.
func (p *Pipeline) ProcessProduct(ctx context.Context, product types.Product) error {
	image, err := p.encoder.EncodeImage(ctx, product.ImageURL)
	if err != nil {
		return fderrors.Wrap(err, "pipeline", "process", "image encode failed")
	}
	text, err := p.encoder.EncodeText(ctx, product.Title)
	if err != nil {
		return fderrors.Wrap(err, "pipeline", "process", "text encode failed")
	}

	if err := p.store.UpdateProductEmbeddings(ctx, product.ID, image, text); err != nil {
		return fderrors.Wrap(err, "pipeline", "process", "persist embeddings failed")
	}

	p.logger.Debug("product embeddings updated", "product_id", product.ID)
	return nil
}

func (p *Pipeline) process(ctx context.Context, product types.Product) error {
	if err := p.ProcessProduct(ctx, product); err != nil {
		p.logger.Error("background product processing failed",
			"product_id", product.ID, "error", err)
		return err
	}
	return nil
}

// Sweep pulls one batch of products missing embeddings, encodes them
// together and writes the rows where both embeddings succeeded. A
// failed slot is logged and left pending for the next sweep. Returns
// how many products were updated.
func (p *Pipeline) Sweep(ctx context.Context) (int, error) {
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)

	pending, err := p.store.GetPendingProducts(ctx, p.batchSize)
	if err != nil {
		return 0, fderrors.Wrap(err, "pipeline", "sweep", "list pending failed")
	}
	if len(pending) == 0 {
		return 0, nil
	}
	log.Info("sweep started", "pending", len(pending))

	titles := make([]string, len(pending))
	imageURLs := make([]string, len(pending))
	for i, product := range pending {
		titles[i] = product.Title
		imageURLs[i] = product.ImageURL
	}

	textResults, imageResults, err := p.encoder.EncodeBatch(ctx, titles, imageURLs)
	if err != nil {
		return 0, fderrors.Wrap(err, "pipeline", "sweep", "batch encode failed")
	}

	updates := make([]productstore.EmbeddingUpdate, 0, len(pending))
	for i, product := range pending {
		if textResults[i].Err != nil || imageResults[i].Err != nil {
			log.Warn("product skipped this sweep",
				"product_id", product.ID,
				"text_error", textResults[i].Err,
				"image_error", imageResults[i].Err)
			continue
		}
		updates = append(updates, productstore.EmbeddingUpdate{
			ProductID:      product.ID,
			ImageEmbedding: imageResults[i].Vector,
			TextEmbedding:  textResults[i].Vector,
		})
	}

	if len(updates) > 0 {
		if err := p.store.BatchUpdateEmbeddings(ctx, updates); err != nil {
			return 0, fderrors.Wrap(err, "pipeline", "sweep", "batch persist failed")
		}
	}

	log.Info("sweep finished", "updated", len(updates), "skipped", len(pending)-len(updates))
	return len(updates), nil
}

// Run sweeps on a fixed interval until ctx is cancelled. Sweep errors
// are logged, not fatal; the next tick tries again.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil {
				p.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
