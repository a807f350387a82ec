package worker

import (
	"context"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/service"
	"storefront-service/internal/submission"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// StatusWorker applies order-tracking updates from Kafka to session histories
type StatusWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewStatusWorker creates a new status worker
func NewStatusWorker(consumer *broker.Consumer, manager *service.Manager) *StatusWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderStatusChanged(manager.ApplyStatus)

	return &StatusWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *StatusWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting order status worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StatusWorker) Stop() error {
	util.GetLogger().Info("Stopping order status worker")
	return w.consumer.Close()
}

// Pinger checks whether the remote endpoint answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityWorker probes the remote endpoint on an interval and feeds the result to the monitor
type ConnectivityWorker struct {
	pinger   Pinger
	monitor  *submission.Monitor
	interval time.Duration
	logger   *zap.Logger
}

// NewConnectivityWorker creates a new connectivity worker
func NewConnectivityWorker(pinger Pinger, monitor *submission.Monitor, interval time.Duration) *ConnectivityWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityWorker{
		pinger:   pinger,
		monitor:  monitor,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start probes immediately and then on every tick until ctx is cancelled
func (w *ConnectivityWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting connectivity worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping connectivity worker")
			return ctx.Err()
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}

// Probe runs a single check
func (w *ConnectivityWorker) Probe(ctx context.Context) bool {
	err := w.pinger.Ping(ctx)
	if err != nil && ctx.Err() != nil {
		return w.monitor.Online()
	}
	if err != nil {
		w.logger.Debug("Connectivity probe failed", zap.Error(err))
	}
	online := err == nil
	w.monitor.Set(online)
	return online
}
