package worker

// email_worker.go
// Mails a copy of each rendered receipt to the store inbox.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const emailAttempts = 3

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	PDFPath string `json:"pdf_path"`
}

// ReceiptSender is satisfied by infra.Mailer.
type ReceiptSender interface {
	SendReceipt(to, subject, body, pdfPath string) error
}

type EmailWorker struct {
	rdb     *redis.Client
	sender  ReceiptSender
	backoff time.Duration
}

// NewEmailWorker creates an EmailWorker. rdb is used for the dead letter
// queue and may be nil.
func NewEmailWorker(rdb *redis.Client, sender ReceiptSender) *EmailWorker {
	return &EmailWorker{rdb: rdb, sender: sender, backoff: 2 * time.Second}
}

// Process sends one email with the PDF receipt attached.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return
	}

	err := withRetry(ctx, emailAttempts, w.backoff, func(attempt int) error {
		err := w.sender.SendReceipt(payload.ToEmail, payload.Subject, payload.Body, payload.PDFPath)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Str("to", payload.ToEmail).Msg("email_worker: send failed, retrying")
		}
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("to", payload.ToEmail).Msg("email_worker: giving up")
		if w.rdb != nil {
			SendToDLQ(ctx, w.rdb, QueueEmail, jobEmail, raw,
				fmt.Sprintf("send failed after %d attempts: %v", emailAttempts, err), emailAttempts)
		}
		return
	}
	log.Info().Str("to", payload.ToEmail).Str("pdf", payload.PDFPath).Msg("email_worker: receipt sent")
}
