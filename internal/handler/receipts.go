package handler

import (
	"errors"
	"net/http"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var errNoJobQueue = errors.New("redis job queue not configured")

// ReceiptsHandler exposes the receipt dead letter queue to the back office.
// rdb is nil when the station runs without Redis.
type ReceiptsHandler struct{ rdb *redis.Client }

func NewReceiptsHandler(rdb *redis.Client) *ReceiptsHandler {
	return &ReceiptsHandler{rdb: rdb}
}

// DLQ godoc
// @Summary Recibos que falharam e aguardam reimpressão
// @Tags receipts
// @Produce json
// @Success 200 {object} dto.DLQStatusResponse
// @Router /v1/receipts/dlq [get]
func (h *ReceiptsHandler) DLQ(c *gin.Context) {
	if h.rdb == nil {
		respondError(c, apperror.Unavailable("fila de recibos", errNoJobQueue))
		return
	}
	n, err := worker.DLQLength(c.Request.Context(), h.rdb, worker.QueueReceipts)
	if err != nil {
		respondError(c, apperror.Unavailable("fila de recibos", err))
		return
	}
	c.JSON(http.StatusOK, dto.DLQStatusResponse{Queue: worker.QueueReceipts, Length: n})
}

// Requeue godoc
// @Summary Devolve recibos da DLQ para a fila de impressão
// @Tags receipts
// @Produce json
// @Param limit query int false "Máximo de recibos (padrão 50)"
// @Success 200 {object} dto.RequeueResponse
// @Router /v1/receipts/dlq/requeue [post]
func (h *ReceiptsHandler) Requeue(c *gin.Context) {
	var f dto.RequeueFilter
	if !bindQuery(c, &f) {
		return
	}
	if h.rdb == nil {
		respondError(c, apperror.Unavailable("fila de recibos", errNoJobQueue))
		return
	}
	ctx := c.Request.Context()
	moved, err := worker.Requeue(ctx, h.rdb, worker.QueueReceipts, f.Limit)
	if err != nil {
		respondError(c, apperror.Unavailable("fila de recibos", err))
		return
	}
	remaining, err := worker.DLQLength(ctx, h.rdb, worker.QueueReceipts)
	if err != nil {
		respondError(c, apperror.Unavailable("fila de recibos", err))
		return
	}
	c.JSON(http.StatusOK, dto.RequeueResponse{Queue: worker.QueueReceipts, Requeued: moved, Remaining: remaining})
}
