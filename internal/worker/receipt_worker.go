package worker

// receipt_worker.go
// Renders receipts for settled orders and table sales. The payload already
// carries every settled figure; the worker only lays it out.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vendapos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const receiptAttempts = 3

// ReceiptJobPayload is the job envelope sent to QueueReceipts.
type ReceiptJobPayload struct {
	Kind        string        `json:"kind"` // order | table_session
	ReferenceID string        `json:"reference_id"`
	Receipt     infra.Receipt `json:"receipt"`
}

// EmailQueue is satisfied by Dispatcher.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ReceiptWorker struct {
	rdb         *redis.Client
	storagePath string
	backoff     time.Duration

	mail   EmailQueue
	mailTo string
}

// NewReceiptWorker creates a worker writing PDFs under storagePath. rdb is
// used for the dead letter queue and may be nil.
func NewReceiptWorker(rdb *redis.Client, storagePath string) *ReceiptWorker {
	return &ReceiptWorker{rdb: rdb, storagePath: storagePath, backoff: time.Second}
}

// WithEmail makes the worker queue a copy of every rendered receipt for to.
func (w *ReceiptWorker) WithEmail(q EmailQueue, to string) *ReceiptWorker {
	w.mail = q
	w.mailTo = to
	return w
}

// Process renders one receipt, retrying with backoff before giving up to the DLQ.
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return
	}

	var path string
	err := withRetry(ctx, receiptAttempts, w.backoff, func(attempt int) error {
		p, err := infra.GenerateReceiptPDF(payload.Receipt, w.storagePath)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("reference_id", payload.ReferenceID).
				Msg("receipt_worker: render failed, retrying")
			return err
		}
		path = p
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("reference_id", payload.ReferenceID).Msg("receipt_worker: giving up")
		if w.rdb != nil {
			SendToDLQ(ctx, w.rdb, QueueReceipts, jobReceipt, raw,
				fmt.Sprintf("render failed after %d attempts: %v", receiptAttempts, err), receiptAttempts)
		}
		return
	}
	log.Info().Str("pdf", path).Str("kind", payload.Kind).Str("reference_id", payload.ReferenceID).Msg("receipt_worker: receipt generated")

	if w.mail == nil || w.mailTo == "" {
		return
	}
	r := payload.Receipt
	msg := EmailJobPayload{
		ToEmail: w.mailTo,
		Subject: fmt.Sprintf("%s · recibo %s", r.Title, r.Reference),
		Body:    fmt.Sprintf("%s\nCliente: %s\nTotal: R$ %s\n", r.Title, r.Customer, r.Total.StringFixed(2)),
		PDFPath: path,
	}
	// the PDF is already on disk, a failed enqueue only loses the copy
	if err := w.mail.EnqueueEmail(ctx, msg); err != nil {
		log.Error().Err(err).Str("reference_id", payload.ReferenceID).Msg("receipt_worker: failed to queue email copy")
	}
}
