package gateway

import (
	"context"
	"time"

	"github.com/NotCoffee418/elster_gateway/pkg/control"
)

// source is one row of the multiplexed wait: how to ask whether input is
// waiting, how long each ask may block, and what to do once it is.
type source struct {
	name   string
	poll   func(d time.Duration) (bool, error)
	slice  time.Duration
	handle func() (control.Signal, error)
}

// wait polls the sources in turn until one is ready, the timeout elapses
// (nil, nil) or ctx is cancelled (nil, nil). A poll error is returned as is.
func wait(ctx context.Context, sources []source, timeout time.Duration) (*source, error) {
	deadline := time.Now().Add(timeout)
	for {
		for i := range sources {
			if ctx.Err() != nil {
				return nil, nil
			}
			left := time.Until(deadline)
			if left <= 0 {
				return nil, nil
			}
			d := sources[i].slice
			if d > left {
				d = left
			}
			ready, err := sources[i].poll(d)
			if err != nil {
				return &sources[i], err
			}
			if ready {
				return &sources[i], nil
			}
		}
	}
}
