//go:build integration

package realtime

import (
	"context"
	"testing"
	"time"

	"vendapos/internal/infra"
	"vendapos/internal/model"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisTransport_DeliversToBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })
	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	bus := NewBus(nil, 0)
	go bus.Run(ctx)
	go func() { _ = NewRedisSource(rdb).Run(ctx, bus.Submit) }()

	o := newOrder(model.OrderPending, time.Now().UTC())
	chg := orderChange(t, o, EventInsert)
	pub := NewRedisPublisher(rdb)
	// The subscription may not be live yet; republishing the same change is
	// harmless because the bus drops duplicates.
	require.Eventually(t, func() bool {
		_ = pub.Publish(ctx, chg)
		_, ok := bus.Order(o.ID)
		return ok
	}, 5*time.Second, 100*time.Millisecond)
}
