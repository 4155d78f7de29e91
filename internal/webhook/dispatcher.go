package webhook

import (
	"context"
	"fmt"
	"sync"

	"github.com/botique-hub/internal/logging"
)

// ResultFunc is invoked with the final outcome of a dispatched delivery.
// It runs on the worker goroutine, after the triggering request has
// already returned.
type ResultFunc func(ctx context.Context, task *Task, outcome *DeliveryOutcome)

// Dispatcher runs webhook deliveries on a bounded worker pool. Enqueue
// returns as soon as the task is accepted; the caller never waits for
// delivery to finish. Once started, a delivery sequence runs to completion
// or exhaustion regardless of later job state changes.
type Dispatcher struct {
	mu sync.Mutex

	client    *Client
	onResult  ResultFunc
	workerSem chan struct{}
	stopCh    chan struct{}
	stopped   bool
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker count
func NewDispatcher(client *Client, workers int, onResult ResultFunc) *Dispatcher {
	if workers <= 0 {
		workers = 10
	}

	return &Dispatcher{
		client:    client,
		onResult:  onResult,
		workerSem: make(chan struct{}, workers),
		stopCh:    make(chan struct{}),
	}
}

// Enqueue submits a delivery task. It blocks only while all workers are
// busy, never on the delivery itself.
func (d *Dispatcher) Enqueue(ctx context.Context, task *Task) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher stopped")
	}
	d.wg.Add(1)
	d.mu.Unlock()

	select {
	case d.workerSem <- struct{}{}:
	case <-d.stopCh:
		d.wg.Done()
		return fmt.Errorf("dispatcher stopped")
	}

	go func() {
		defer func() {
			<-d.workerSem
			d.wg.Done()
		}()

		// Delivery outlives the request that triggered it; detach from the
		// request context but keep its logger.
		deliveryCtx := logging.WithLogger(context.Background(), logging.FromContext(ctx))

		outcome := d.client.Deliver(deliveryCtx, task)

		if d.onResult != nil {
			d.onResult(deliveryCtx, task, outcome)
		}
	}()

	return nil
}

// Stop prevents new enqueues and waits for in-flight deliveries to drain
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
}

// Active returns the number of deliveries currently running
func (d *Dispatcher) Active() int {
	return len(d.workerSem)
}
