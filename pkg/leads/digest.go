package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultDigestSchedule runs the digest every morning at 08:00.
const DefaultDigestSchedule = "0 8 * * *"

// Digest periodically logs lead statistics.
type Digest struct {
	store *Store
	cron  *cron.Cron
	log   zerolog.Logger
	now   func() time.Time

	// report receives each computed summary; tests hook it.
	report func(Stats)
}

// NewDigest schedules a stats summary on spec, a standard five-field cron
// expression.
func NewDigest(store *Store, spec string, logger zerolog.Logger) (*Digest, error) {
	if spec == "" {
		spec = DefaultDigestSchedule
	}
	d := &Digest{
		store: store,
		cron:  cron.New(),
		log:   logger.With().Str("component", "lead_digest").Logger(),
		now:   time.Now,
	}
	if _, err := d.cron.AddFunc(spec, d.run); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return d, nil
}

// Start begins the schedule in its own goroutine.
func (d *Digest) Start() {
	d.cron.Start()
	d.log.Info().Msg("lead digest scheduled")
}

// Stop halts the schedule and waits for a running digest to finish.
func (d *Digest) Stop() {
	<-d.cron.Stop().Done()
}

// RunOnce computes and logs a summary immediately.
func (d *Digest) RunOnce(ctx context.Context) (Stats, error) {
	st, err := d.store.Stats(ctx, d.now())
	if err != nil {
		return Stats{}, err
	}
	d.log.Info().
		Int("total", st.Total).
		Int("upcoming", st.Upcoming).
		Int("this_month", st.ThisMonth).
		Msg("lead digest")
	if d.report != nil {
		d.report(st)
	}
	return st, nil
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := d.RunOnce(ctx); err != nil {
		d.log.Error().Err(err).Msg("lead digest failed")
	}
}
