package report

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultWarmSpec runs at 02:00 on the first of every month.
const DefaultWarmSpec = "0 2 1 * *"

// Roster lists salespeople with sessions started in [from, to).
type Roster interface {
	Salespeople(ctx context.Context, from, to time.Time) ([]string, error)
}

// Scheduler precomputes last month's reports so the first request of the
// month hits the cache.
type Scheduler struct {
	svc    *Service
	roster Roster
	cron   *cron.Cron
	log    *log.Entry
}

func NewScheduler(svc *Service, roster Roster) *Scheduler {
	return &Scheduler{
		svc:    svc,
		roster: roster,
		cron:   cron.New(cron.WithLocation(svc.Location())),
		log:    log.WithField("component", "report_scheduler"),
	}
}

// Start registers the warm-up job under spec (DefaultWarmSpec when empty)
// and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultWarmSpec
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		previous := s.svc.MonthStart(s.svc.now()).AddDate(0, -1, 0)
		if err := s.Warm(ctx, previous); err != nil {
			s.log.WithError(err).Error("report warm-up failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("spec", spec).Info("report warm-up scheduled")
	return nil
}

// Warm builds and caches the month's report for every salesperson who
// tracked during it.
func (s *Scheduler) Warm(ctx context.Context, month time.Time) error {
	from := s.svc.MonthStart(month)
	ids, err := s.roster.Salespeople(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if _, err := s.svc.Monthly(ctx, id, from); err != nil {
			errs = append(errs, err)
			s.log.WithError(err).WithField("salesperson_id", id).Warn("warm-up failed for salesperson")
		}
	}
	s.log.WithFields(log.Fields{"month": from.Format(MonthLayout), "salespeople": len(ids), "failed": len(errs)}).Info("report warm-up done")
	return errors.Join(errs...)
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
