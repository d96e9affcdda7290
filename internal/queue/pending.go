package queue

import (
	"context"
)

// Pending is the completion handle of one queued request.
type Pending struct {
	Endpoint string
	Params   map[string]string

	done chan struct{}
	body []byte
	err  error
}

func newPending(endpoint string, params map[string]string) *Pending {
	return &Pending{
		Endpoint: endpoint,
		Params:   params,
		done:     make(chan struct{}),
	}
}

func (p *Pending) resolve(body []byte, err error) {
	p.body = body
	p.err = err
	close(p.done)
}

// Done is closed once the request has succeeded or failed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request completes or ctx ends. Abandoning the wait
// does not remove the request from the queue.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.body, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
