package redisconn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AlfredDev/reool/pool"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestFactoryRejectsMalformedURI(t *testing.T) {
	_, err := NewFactory("not-a-url", 0)
	require.Error(t, err)
}

func TestFactoryCreateConnectionDialsAndPings(t *testing.T) {
	mr := miniredis.RunT(t)

	f, err := NewFactory(fmt.Sprintf("redis://%s", mr.Addr()), time.Second)
	require.NoError(t, err)

	conn, err := f.CreateConnection(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, fmt.Sprintf("redis://%s", mr.Addr()), conn.URI())
	require.Equal(t, []string{fmt.Sprintf("redis://%s", mr.Addr())}, f.Targets())

	require.NoError(t, conn.Client().Set(context.Background(), "k", "v", 0).Err())
	require.Equal(t, "v", mr.Get("k"))
}

func TestFactoryCreateConnectionFailsWhenServerUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	f, err := NewFactory(fmt.Sprintf("redis://%s", addr), 200*time.Millisecond)
	require.NoError(t, err)

	_, err = f.CreateConnection(context.Background())
	require.Error(t, err)
	var connErr *pool.NewConnectionError
	require.True(t, errors.As(err, &connErr))
}
