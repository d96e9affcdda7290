// Package queue serialises outbound backend calls: one request in flight at
// a time, dispatched in submission order, with a fixed pause after each
// completion before the next one may start.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	fifo "gopkg.in/eapache/queue.v1"
)

const DefaultDelay = time.Second

var ErrClosed = errors.New("request queue closed")

// Dispatcher performs a single request. *api.Client satisfies it.
type Dispatcher interface {
	Get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error)
}

// Observer receives dispatch outcomes and queue depth changes. ObserveDepth
// is called while the queue lock is held and must not call back into the
// queue.
type Observer interface {
	ObserveDispatch(endpoint string, duration time.Duration, err error)
	ObserveDepth(depth int)
}

type request struct {
	endpoint string
	params   map[string]string
	pending  *Pending
}

type Queue struct {
	dispatcher Dispatcher
	delay      time.Duration
	logger     *logrus.Logger
	observer   Observer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	requests *fifo.Queue
	busy     bool
	// cooling is set between a completion and the delayed advance that
	// follows it; nothing may dispatch while it is set.
	cooling bool
	closed  bool
	timer   *time.Timer
}

func New(dispatcher Dispatcher, delay time.Duration, logger *logrus.Logger) *Queue {
	if delay < 0 {
		delay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		dispatcher: dispatcher,
		delay:      delay,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		requests:   fifo.New(),
	}
}

// WithObserver attaches o and returns q. Call before the first Enqueue.
func (q *Queue) WithObserver(o Observer) *Queue {
	q.observer = o
	return q
}

// Enqueue appends a request to the tail and returns its completion handle.
// It never blocks on the network and never fails synchronously; a closed
// queue resolves the handle with ErrClosed.
func (q *Queue) Enqueue(endpoint string, params map[string]string) *Pending {
	p := newPending(endpoint, params)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		p.resolve(nil, ErrClosed)
		return p
	}
	q.requests.Add(&request{endpoint: endpoint, params: params, pending: p})
	q.observeDepth(q.requests.Length())
	q.mu.Unlock()

	q.advance()
	return p
}

// Len reports how many requests are waiting, excluding the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requests.Length()
}

// Close fails every queued request with ErrClosed, cancels the in-flight
// one and stops further dispatching.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
	}
	drained := make([]*request, 0, q.requests.Length())
	for q.requests.Length() > 0 {
		drained = append(drained, q.requests.Remove().(*request))
	}
	q.observeDepth(0)
	q.mu.Unlock()

	q.cancel()
	for _, req := range drained {
		req.pending.resolve(nil, ErrClosed)
	}

	q.logger.WithField("dropped_requests", len(drained)).Info("Request queue closed")
}

func (q *Queue) advance() {
	q.mu.Lock()
	if q.busy || q.cooling || q.closed || q.requests.Length() == 0 {
		q.mu.Unlock()
		return
	}
	q.busy = true
	req := q.requests.Remove().(*request)
	q.observeDepth(q.requests.Length())
	q.mu.Unlock()

	go q.dispatch(req)
}

func (q *Queue) dispatch(req *request) {
	start := time.Now()
	body, err := q.dispatcher.Get(q.ctx, req.endpoint, req.params)
	duration := time.Since(start)

	if err != nil {
		q.logger.WithError(err).WithFields(logrus.Fields{
			"endpoint": req.endpoint,
			"params":   req.params,
		}).Error("Queued request failed")
	} else {
		q.logger.WithFields(logrus.Fields{
			"endpoint":    req.endpoint,
			"duration_ms": duration.Milliseconds(),
		}).Debug("Queued request completed")
	}
	if q.observer != nil {
		q.observer.ObserveDispatch(req.endpoint, duration, err)
	}

	req.pending.resolve(body, err)

	q.mu.Lock()
	q.busy = false
	if !q.closed {
		q.cooling = true
		q.timer = time.AfterFunc(q.delay, q.cooled)
	}
	q.mu.Unlock()
}

func (q *Queue) cooled() {
	q.mu.Lock()
	q.cooling = false
	q.mu.Unlock()
	q.advance()
}

// observeDepth must be called with q.mu held so depth reports arrive in
// order.
func (q *Queue) observeDepth(depth int) {
	if q.observer != nil {
		q.observer.ObserveDepth(depth)
	}
}
