// workers/fulfillment_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"boostgram-api/services"
)

const fulfillmentBatchSize = 50

// FulfillmentWorker periodically hands processing orders to the provider.
type FulfillmentWorker struct {
	service  *services.FulfillmentService
	interval time.Duration
}

func NewFulfillmentWorker(service *services.FulfillmentService, interval time.Duration) *FulfillmentWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &FulfillmentWorker{service: service, interval: interval}
}

func (w *FulfillmentWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting Fulfillment Worker (every %s)…", w.interval)
	go w.run(ctx)
}

func (w *FulfillmentWorker) run(ctx context.Context) {
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			log.Println("⏹️ Fulfillment Worker stopped")
			return
		}
	}
}

// tick runs one pass and logs the outcome.
func (w *FulfillmentWorker) tick(ctx context.Context) {
	run, err := w.RunOnce(ctx)
	if err != nil {
		log.Printf("❌ [FULFILL] pass failed: %v", err)
		return
	}
	if run.Delivered+run.Failed > 0 {
		log.Printf("[FULFILL] 📦 %d delivered, %d failed, %d awaiting manual delivery",
			run.Delivered, run.Failed, run.Manual)
	}
}

// RunOnce processes one batch of processing orders.
func (w *FulfillmentWorker) RunOnce(ctx context.Context) (services.FulfillmentRun, error) {
	return w.service.ProcessPending(ctx, fulfillmentBatchSize)
}
