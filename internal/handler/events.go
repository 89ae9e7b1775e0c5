package handler

import (
	"io"
	"net/http"
	"time"

	"vendapos/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// EventsHandler exposes the live collections and change stream held by the bus.
type EventsHandler struct {
	bus       *realtime.Bus
	keepAlive time.Duration
}

func NewEventsHandler(bus *realtime.Bus) *EventsHandler {
	return &EventsHandler{bus: bus, keepAlive: 20 * time.Second}
}

// Stream godoc
// @Summary Stream SSE das mudanças aceitas pelo barramento
// @Tags realtime
// @Produce text/event-stream
// @Router /v1/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	ch := make(chan realtime.Change, 64)
	unsubscribe := h.bus.Subscribe(func(chg realtime.Change) {
		select {
		case ch <- chg:
		default:
			log.Warn().Str("entity", string(chg.Entity)).Str("id", chg.ID.String()).
				Msg("events: cliente lento, mudança descartada")
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case chg := <-ch:
			c.SSEvent(string(chg.Entity), chg)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// LiveOrders returns the bus' in-memory order collection.
func (h *EventsHandler) LiveOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.bus.Orders())
}

func (h *EventsHandler) LiveTables(c *gin.Context) {
	c.JSON(http.StatusOK, h.bus.Tables())
}

// AckAlert stops the new-order alert for an order.
func (h *EventsHandler) AckAlert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": h.bus.Alerts().Cancel(id)})
}
