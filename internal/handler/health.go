package handler

import (
	"context"
	"net/http"
	"time"

	"vendapos/internal/infra"
	"vendapos/internal/service"
	"vendapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthDeps lists what the health check probes. Nil members are reported
// as "disabled" and do not fail the check.
type HealthDeps struct {
	Backend string
	DB      *gorm.DB
	Redis   *redis.Client
	AMQP    *infra.AMQPClient
	Guard   *service.Guard
}

// Health returns a JSON health check response.
// Never exposes credentials or internals.
func Health(d HealthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		ok := true
		probe := func(enabled bool, ping func() error) string {
			if !enabled {
				return "disabled"
			}
			if ping() != nil {
				ok = false
				return "error"
			}
			return "connected"
		}

		dbStatus := probe(d.DB != nil, func() error {
			sqlDB, err := d.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
		redisStatus := probe(d.Redis != nil, func() error { return d.Redis.Ping(ctx).Err() })
		// parked receipts do not fail the check, they only need attention
		var receiptsDLQ int64
		if redisStatus == "connected" {
			receiptsDLQ, _ = worker.DLQLength(ctx, d.Redis, worker.QueueReceipts)
		}
		amqpStatus := probe(d.AMQP != nil, func() error { return d.AMQP.Ping() })

		breaker := infra.CBClosed
		if d.Guard != nil {
			breaker = d.Guard.State()
		}
		if breaker == infra.CBOpen {
			ok = false
		}

		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ok":           ok,
			"backend":      d.Backend,
			"db":           dbStatus,
			"redis":        redisStatus,
			"amqp":         amqpStatus,
			"breaker":      breaker.String(),
			"receipts_dlq": receiptsDLQ,
		})
	}
}
