// Package refresh re-runs the default aggregation on a schedule and keeps the latest result.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/types"
)

// DefaultSchedule matches the freshness window of the response cache
const DefaultSchedule = "@every 15m"

// ErrBusy is returned by RefreshNow while another refresh is running
var ErrBusy = errors.New("refresh already in progress")

// Runner produces an aggregation for a selection
type Runner interface {
	Run(ctx context.Context, sel types.Selection) (*types.AggregationResult, error)
}

// ResultHandler is called after every successful refresh
type ResultHandler func(sel types.Selection, result *types.AggregationResult)

// Refresher runs the current selection on a cron schedule
type Refresher struct {
	runner   Runner
	schedule string
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logrus.Logger

	selection      types.Selection
	selectionMutex sync.RWMutex

	// Keep track of the last result
	last      *types.AggregationResult
	lastAt    time.Time
	lastMutex sync.RWMutex

	handler ResultHandler
	running sync.Mutex
	initial sync.WaitGroup
}

// New creates a refresher. Runs are bound to ctx and stop when it is cancelled.
func New(ctx context.Context, runner Runner, schedule string, sel types.Selection, log *logrus.Logger) *Refresher {
	childCtx, cancel := context.WithCancel(ctx)
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return &Refresher{
		runner:    runner,
		schedule:  schedule,
		cron:      cron.New(),
		ctx:       childCtx,
		cancel:    cancel,
		logger:    log,
		selection: copySelection(sel),
	}
}

// Start runs a refresh immediately and then on every tick of the schedule
func (r *Refresher) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		select {
		case <-r.ctx.Done():
			return
		default:
			r.refresh()
		}
	})
	if err != nil {
		return err
	}

	r.initial.Add(1)
	go func() {
		defer r.initial.Done()
		r.refresh()
	}()
	r.cron.Start()

	r.logger.WithField("schedule", r.schedule).Info("Refresher started")
	return nil
}

// Stop cancels any in-flight run and waits for the initial and scheduled runs
// to finish. No result handler is called once Stop returns.
func (r *Refresher) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
	r.initial.Wait()
	r.logger.Info("Refresher stopped")
}

func (r *Refresher) refresh() {
	if _, err := r.RefreshNow(); err != nil && !errors.Is(err, ErrBusy) {
		r.logger.WithError(err).Warn("Scheduled refresh failed")
	}
}

// RefreshNow runs the current selection and stores the result.
// It returns ErrBusy instead of queueing behind a running refresh.
func (r *Refresher) RefreshNow() (*types.AggregationResult, error) {
	if !r.running.TryLock() {
		return nil, ErrBusy
	}
	defer r.running.Unlock()

	sel := r.Selection()
	result, err := r.runner.Run(r.ctx, sel)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	r.lastMutex.Lock()
	r.last = result
	r.lastAt = time.Now()
	r.lastMutex.Unlock()

	if r.handler != nil {
		r.handler(sel, result)
	}
	return result, nil
}

// UpdateSelection changes what the next refresh aggregates
func (r *Refresher) UpdateSelection(sel types.Selection) {
	r.selectionMutex.Lock()
	defer r.selectionMutex.Unlock()

	r.selection = copySelection(sel)
	r.logger.WithFields(logrus.Fields{
		"assets":    r.selection.AssetIDs,
		"exchanges": r.selection.Exchanges,
	}).Info("Updated refresh selection")
}

// Selection returns the current selection
func (r *Refresher) Selection() types.Selection {
	r.selectionMutex.RLock()
	defer r.selectionMutex.RUnlock()
	return copySelection(r.selection)
}

// SetResultHandler sets the handler for new results. Call it before Start.
func (r *Refresher) SetResultHandler(handler ResultHandler) {
	r.handler = handler
}

// Last returns the latest result and when it was produced
func (r *Refresher) Last() (*types.AggregationResult, time.Time, bool) {
	r.lastMutex.RLock()
	defer r.lastMutex.RUnlock()
	return r.last, r.lastAt, r.last != nil
}

func copySelection(sel types.Selection) types.Selection {
	return types.Selection{
		AssetIDs:  append([]string(nil), sel.AssetIDs...),
		Exchanges: append([]string(nil), sel.Exchanges...),
	}
}
