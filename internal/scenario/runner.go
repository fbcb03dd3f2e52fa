package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/node"
	"dynamokv/internal/quorum"
	"dynamokv/internal/sim"
	"dynamokv/internal/storage"
)

const (
	defaultRetryDelay = 50 * time.Millisecond
	checkInterval     = 10 * time.Millisecond
)

// errRequestFailed marks a client call that came back with ERROR, the only
// failure worth resubmitting.
var errRequestFailed = errors.New("request failed")

// Options configures a run.
type Options struct {
	Logger     *zap.Logger
	Observer   func(id cluster.NodeID) node.Observer
	OnFeedback sim.FeedbackFunc
	// RetryDelay is the pause before resubmitting a failed call.
	RetryDelay time.Duration
}

type runner struct {
	sc     *Scenario
	sys    *sim.System
	logger *zap.Logger
	delay  time.Duration

	mu      sync.Mutex
	clients map[int]*sim.Client

	async  *errgroup.Group
	report *Report
}

// Run executes a scenario against a fresh system. The report covers every
// step that ran, also when an error stops the run early.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}

	sys, err := sim.New(sim.Options{
		Config:     sc.Config,
		Logger:     opts.Logger,
		Observer:   opts.Observer,
		OnFeedback: opts.OnFeedback,
	})
	if err != nil {
		return nil, err
	}
	defer sys.Shutdown()

	r := &runner{
		sc:      sc,
		sys:     sys,
		logger:  opts.Logger.With(zap.String("scenario", sc.Name)),
		delay:   opts.RetryDelay,
		clients: make(map[int]*sim.Client),
		async:   &errgroup.Group{},
		report:  newReport(sc.Name),
	}
	defer r.report.finish()

	if err := sys.Bootstrap(ctx); err != nil {
		return r.report, fmt.Errorf("bootstrap: %w", err)
	}

	for i, st := range sc.Steps {
		r.logger.Info("step", zap.Int("step", i+1), zap.Stringer("action", st))
		if err := r.step(ctx, i+1, st); err != nil {
			_ = r.async.Wait()
			return r.report, fmt.Errorf("step %d (%s): %w", i+1, st, err)
		}
	}
	if err := r.async.Wait(); err != nil {
		return r.report, err
	}
	return r.report, nil
}

func (r *runner) step(ctx context.Context, idx int, st Step) error {
	switch st.Op {
	case OpCreate:
		return r.membership(idx, st, func() error {
			return r.sys.CreateNode(ctx, st.Node, st.peer())
		})
	case OpLeave:
		return r.membership(idx, st, func() error {
			return r.sys.NodeLeaves(ctx, st.Node)
		})
	case OpCrash:
		return r.membership(idx, st, func() error {
			return r.sys.CrashNode(st.Node)
		})
	case OpRecover:
		return r.membership(idx, st, func() error {
			return r.sys.RecoverNode(ctx, st.Node, st.peer())
		})
	case OpDelay:
		return r.membership(idx, st, func() error {
			return r.sys.SetDelay(st.Node, st.Delay)
		})
	case OpSleep:
		return sleep(ctx, st.Delay)
	case OpWait:
		err := r.async.Wait()
		r.async = &errgroup.Group{}
		return err
	case OpCheck:
		return r.check(ctx, idx, st)
	case OpGet, OpUpdate:
		if !st.Async {
			return r.call(ctx, idx, st)
		}
		r.async.Go(func() error {
			if err := sleep(ctx, st.After); err != nil {
				return err
			}
			if err := r.call(ctx, idx, st); err != nil {
				return fmt.Errorf("step %d (%s): %w", idx, st, err)
			}
			return nil
		})
		return nil
	}
	return fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, st.Op)
}

func (r *runner) membership(idx int, st Step, fn func() error) error {
	err := fn()
	r.report.add(StepResult{Step: idx, Action: st.String(), Err: err})
	return err
}

// call sends a client request and resubmits it while it fails, up to the
// step's retry budget.
func (r *runner) call(ctx context.Context, idx int, st Step) error {
	client := r.client(st.Client)
	kind := quorum.Get
	if st.Op == OpUpdate {
		kind = quorum.Update
	}

	var (
		last     message.Feedback
		attempts uint
	)
	err := retry.Do(func() error {
		attempts++
		start := time.Now()

		var (
			fb  message.Feedback
			err error
		)
		if kind == quorum.Update {
			fb, err = r.sys.UpdateSync(ctx, client, st.Node, st.Key, st.Value)
		} else {
			fb, err = r.sys.GetSync(ctx, client, st.Node, st.Key)
		}
		if err != nil {
			return retry.Unrecoverable(err)
		}

		last = fb
		r.report.latency(kind, time.Since(start))
		if !fb.Succeeded() {
			return errRequestFailed
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(st.Retries+1),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errRequestFailed)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Info("resubmitting request",
				zap.Int("step", idx),
				zap.Uint("attempt", n+2),
				zap.Error(err))
		}),
	)
	if err != nil && !errors.Is(err, errRequestFailed) {
		r.report.add(StepResult{Step: idx, Action: st.String(), Client: client.ID(), Attempts: attempts, Err: err})
		return err
	}

	res := StepResult{Step: idx, Action: st.String(), Client: client.ID(), Attempts: attempts, Feedback: &last}
	res.Err = matchFeedback(st.Expect, last)
	r.report.add(res)
	return res.Err
}

// check polls a node's store until it matches the expectation or the
// expectation's deadline passes.
func (r *runner) check(ctx context.Context, idx int, st Step) error {
	within := st.Expect.Within
	if within <= 0 {
		within = r.sc.Config.ClientWait()
	}
	cctx, cancel := context.WithTimeout(ctx, within)
	defer cancel()

	var mismatch error
	err := retry.Do(func() error {
		snap, err := r.sys.Store(st.Node)
		if err != nil {
			mismatch = nil
			return retry.Unrecoverable(err)
		}
		vv, ok := snap.Get(st.Key)
		var got *storage.VersionedValue
		if ok {
			got = &vv
		}
		mismatch = matchValue(st.Expect, got)
		return mismatch
	},
		retry.Context(cctx),
		retry.Attempts(0),
		retry.Delay(checkInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil && mismatch != nil {
		err = mismatch
	}

	r.report.add(StepResult{Step: idx, Action: st.String(), Err: err})
	return err
}

func (r *runner) client(id int) *sim.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c
	}
	c := r.sys.NewClient()
	r.clients[id] = c
	return c
}

func matchFeedback(exp *Expectation, fb message.Feedback) error {
	if exp == nil {
		return nil
	}
	if exp.Status != "" && exp.Status != fb.Status.String() {
		return fmt.Errorf("%w: got %s, want %s", ErrExpectation, fb, exp.Status)
	}
	if exp.Value == nil && exp.Version == nil && !exp.Absent {
		return nil
	}
	return matchValue(exp, fb.Value)
}

func matchValue(exp *Expectation, got *storage.VersionedValue) error {
	present := got != nil && got.Value != nil
	switch {
	case exp.Absent && present:
		return fmt.Errorf("%w: got %s, want no value", ErrExpectation, got)
	case exp.Absent:
		return nil
	case !present && (exp.Value != nil || exp.Version != nil):
		return fmt.Errorf("%w: no value stored", ErrExpectation)
	}
	if exp.Value != nil && *exp.Value != *got.Value {
		return fmt.Errorf("%w: got %s, want value %q", ErrExpectation, got, *exp.Value)
	}
	if exp.Version != nil && *exp.Version != int64(got.Version) {
		return fmt.Errorf("%w: got %s, want version %d", ErrExpectation, got, *exp.Version)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
