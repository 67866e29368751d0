package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/planboard/internal/board"
)

// Asker is the agent transport a Runner uses. *agentclient.Client satisfies it.
type Asker interface {
	Ask(ctx context.Context, agent *board.Agent, query string) (string, error)
	Notify(ctx context.Context, url string) error
}

// Runner plays a Dispatch without a UI: steps wait on timers, agent calls run
// concurrently, and every result is applied to the session from the calling
// goroutine.
type Runner struct {
	session *Session
	asker   Asker
	// OnDeliver, when set, observes each message after it lands.
	OnDeliver func(board.Message)
}

// NewRunner binds a runner to a session and transport.
func NewRunner(s *Session, asker Asker) *Runner {
	return &Runner{session: s, asker: asker}
}

// outcome is what a worker goroutine hands back. Only the Run loop turns it
// into a Delivery, so ids, clocks and the journal stay on one goroutine.
type outcome struct {
	step   *ScheduledStep
	call   *AgentCall
	reply  string
	err    error
	notify bool
}

// Run executes d and returns the messages it delivered, in arrival order.
// Cancelling ctx abandons pending work. Stale deliveries are skipped.
func (r *Runner) Run(ctx context.Context, d Dispatch) ([]board.Message, error) {
	if d.Empty() || (len(d.Steps) == 0 && len(d.Calls) == 0 && d.NotifyURL == "") {
		return nil, nil
	}
	results := make(chan outcome)
	g, gctx := errgroup.WithContext(ctx)

	for _, step := range d.Steps {
		g.Go(func() error {
			timer := time.NewTimer(step.At)
			defer timer.Stop()
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-timer.C:
			}
			return send(gctx, results, outcome{step: &step})
		})
	}
	for _, call := range d.Calls {
		g.Go(func() error {
			reply, err := r.asker.Ask(gctx, call.Agent, call.Query)
			if errors.Is(err, context.Canceled) && gctx.Err() != nil {
				return gctx.Err()
			}
			return send(gctx, results, outcome{call: &call, reply: reply, err: err})
		})
	}
	if d.NotifyURL != "" {
		g.Go(func() error {
			err := r.asker.Notify(gctx, d.NotifyURL)
			if err == nil {
				return nil
			}
			return send(gctx, results, outcome{notify: true, err: err})
		})
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(results)
	}()

	var delivered []board.Message
	for out := range results {
		var delivery Delivery
		switch {
		case out.notify:
			r.session.journal.Warn("notify %s: %v", d.NotifyURL, out.err)
			continue
		case out.step != nil:
			delivery = r.session.StepDelivery(d, *out.step)
		default:
			delivery = r.session.ReplyDelivery(d, *out.call, out.reply, out.err)
		}
		if err := r.session.Deliver(delivery); err != nil {
			if errors.Is(err, ErrStale) {
				continue
			}
			// drain so the producers can exit
			for range results {
			}
			<-waitErr
			return delivered, err
		}
		delivered = append(delivered, delivery.Message)
		if r.OnDeliver != nil {
			r.OnDeliver(delivery.Message)
		}
	}
	return delivered, <-waitErr
}

func send(ctx context.Context, out chan<- outcome, o outcome) error {
	select {
	case out <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
