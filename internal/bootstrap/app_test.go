package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/internal/infra/config"
)

type sweepCounter struct {
	walks.Service
	sweeps atomic.Int32
}

func (s *sweepCounter) SweepIdle(time.Time) int {
	s.sweeps.Add(1)
	return 0
}

func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestAppRunSweepsAndShutsDown(t *testing.T) {
	addr := freeAddress(t)
	cfg := &config.Config{
		HTTP:  config.HTTPConfig{Address: addr},
		Walks: config.WalksConfig{SweepInterval: 5 * time.Millisecond},
	}
	server := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	svc := &sweepCounter{}
	app := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), server, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return svc.sweeps.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestAppRunReportsListenErrors(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	addr := listener.Addr().String()
	cfg := &config.Config{
		HTTP:  config.HTTPConfig{Address: addr},
		Walks: config.WalksConfig{SweepInterval: time.Hour},
	}
	server := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	app := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), server, &sweepCounter{})

	require.Error(t, app.Run(context.Background()))
}
