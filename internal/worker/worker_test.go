package worker

import (
	"context"
	"errors"
	"testing"

	"storefront-service/internal/submission"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func TestProbeDrivesMonitor(t *testing.T) {
	pinger := &stubPinger{err: errors.New("dial tcp: connection refused")}
	monitor := submission.NewMonitor(true)
	regained := 0
	monitor.OnRegained(func() { regained++ })

	w := NewConnectivityWorker(pinger, monitor, 0)

	assert.False(t, w.Probe(context.Background()))
	assert.False(t, monitor.Online())

	pinger.err = nil
	assert.True(t, w.Probe(context.Background()))
	assert.True(t, monitor.Online())
	assert.Equal(t, 1, regained)
}

func TestProbeIgnoresCancelledContext(t *testing.T) {
	pinger := &stubPinger{err: context.Canceled}
	monitor := submission.NewMonitor(true)
	w := NewConnectivityWorker(pinger, monitor, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, w.Probe(ctx))
	assert.True(t, monitor.Online())
}
