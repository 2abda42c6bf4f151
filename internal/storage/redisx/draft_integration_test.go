//go:build integration

package redisx

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/supplier-orders/internal/domain/draft"
)

var testClient *redis.Client

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start redis: %v\n", err)
		return 1
	}
	defer func() { _ = ctr.Terminate(context.Background()) }()

	endpoint, err := ctr.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "endpoint: %v\n", err)
		return 1
	}
	testClient = redis.NewClient(&redis.Options{Addr: endpoint})
	defer func() { _ = testClient.Close() }()

	return m.Run()
}

func TestDraftStore(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testClient.FlushAll(ctx).Err())
	s := NewDraftStore(testClient, time.Hour)

	now := time.Now().UTC()
	require.NoError(t, s.Put(ctx, draft.Draft{BuyerID: "b1", SupplierID: "s2", Items: map[string]int{"x": 1}, UpdatedAt: now}))
	require.NoError(t, s.Put(ctx, draft.Draft{BuyerID: "b1", SupplierID: "s1", Items: map[string]int{"y": 2}, UpdatedAt: now}))

	got, err := s.Get(ctx, "b1", "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"y": 2}, got.Items)

	list, err := s.List(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].SupplierID)

	ttl, err := testClient.TTL(ctx, draftsKey("b1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Delete(ctx, "b1", "s1"))
	_, err = s.Get(ctx, "b1", "s1")
	require.ErrorIs(t, err, draft.ErrNotFound)

	list, err = s.List(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, list)
}
