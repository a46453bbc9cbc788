package shutdown

import (
	"context"
	"os"
	"sync"

	"avb/application/logging"
	palSignal "avb/infrastructure/PAL/signal"
	"avb/presentation/signals"
)

// Handler turns the first platform shutdown signal into a cancellation of
// the application context. It stops listening once that context ends.
type Handler struct {
	appCtx    context.Context
	cancelApp context.CancelFunc
	// buffered: os/signal drops sends to a full channel
	signalChan chan os.Signal
	once       sync.Once
	provider   palSignal.Provider
	notifier   signals.Notifier
	logger     logging.Logger
}

func NewHandler(
	appCtx context.Context,
	cancelApp context.CancelFunc,
	provider palSignal.Provider,
	notifier signals.Notifier,
	logger logging.Logger,
) signals.Handler {
	return &Handler{
		appCtx:     appCtx,
		cancelApp:  cancelApp,
		signalChan: make(chan os.Signal, 1),
		provider:   provider,
		notifier:   notifier,
		logger:     logger,
	}
}

func (h *Handler) Handle() {
	h.once.Do(h.listen)
}

func (h *Handler) listen() {
	h.notifier.Notify(h.signalChan, h.provider.ShutdownSignals()...)
	go func() {
		defer h.notifier.Stop(h.signalChan)
		select {
		case sig := <-h.signalChan:
			h.logger.Printf("received %v, shutting down", sig)
			h.cancelApp()
		case <-h.appCtx.Done():
		}
	}()
}
