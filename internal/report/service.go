package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"backend-fieldroute/internal/metrics"
	"backend-fieldroute/internal/route"
	"backend-fieldroute/internal/shared/geo"
	"backend-fieldroute/internal/stops"
	"backend-fieldroute/internal/tracking"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultCacheTTL = 6 * time.Hour
	MonthLayout     = "2006-01"
)

// DayRoute is one calendar day of a salesperson's month.
type DayRoute struct {
	Date       string       `json:"date"`
	Stops      []stops.Stop `json:"stops"`
	Route      string       `json:"route"`
	TotalKm    float64      `json:"total_km"`
	SessionIDs []string     `json:"session_ids"`
}

type SessionSource interface {
	HistoricalSessions(ctx context.Context, salespersonID string, from, to time.Time) ([]tracking.Session, error)
	Session(ctx context.Context, id string) (tracking.Session, error)
}

type Service struct {
	sessions SessionSource
	detector *stops.Detector
	redis    *redis.Client
	loc      *time.Location
	minStop  int
	ttl      time.Duration
	now      func() time.Time
	log      *log.Entry
}

// NewService builds the report service. redisClient may be nil, in which
// case nothing is cached. Days are cut in loc (UTC when nil).
func NewService(sessions SessionSource, detector *stops.Detector, redisClient *redis.Client, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		sessions: sessions,
		detector: detector,
		redis:    redisClient,
		loc:      loc,
		minStop:  stops.DefaultMinStopMinutes,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
		log:      log.WithField("component", "report"),
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// MonthStart returns midnight on the first day of t's month in the report zone.
func (s *Service) MonthStart(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.loc)
}

func cacheKey(salespersonID string, month time.Time) string {
	return fmt.Sprintf("report:%s:%s", salespersonID, month.Format(MonthLayout))
}

// Monthly reconstructs every tracked day of the month containing month.
// Finished months are cached; the running month is always recomputed.
func (s *Service) Monthly(ctx context.Context, salespersonID string, month time.Time) ([]DayRoute, error) {
	from := s.MonthStart(month)
	to := from.AddDate(0, 1, 0)
	cacheable := s.redis != nil && !to.After(s.now())
	key := cacheKey(salespersonID, from)

	if cacheable {
		raw, err := s.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var days []DayRoute
			if err := json.Unmarshal(raw, &days); err == nil {
				metrics.ReportCacheTotal.WithLabelValues("hit").Inc()
				return days, nil
			}
			s.log.WithField("key", key).Warn("discarding unreadable cached report")
		case errors.Is(err, redis.Nil):
		default:
			s.log.WithError(err).Warn("report cache read failed")
		}
		metrics.ReportCacheTotal.WithLabelValues("miss").Inc()
	}

	sessions, err := s.sessions.HistoricalSessions(ctx, salespersonID, from, to)
	if err != nil {
		return nil, err
	}
	days := s.buildDays(sessions)

	if cacheable {
		if raw, err := json.Marshal(days); err == nil {
			if err := s.redis.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.log.WithError(err).Warn("report cache write failed")
			}
		}
	}
	return days, nil
}

type dayBucket struct {
	points     []geo.GpsPoint
	totalKm    float64
	sessionIDs []string
}

func (s *Service) buildDays(sessions []tracking.Session) []DayRoute {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	buckets := map[string]*dayBucket{}
	for _, session := range sessions {
		// split each session by local day so distance never spans midnight
		chunks := map[string][]geo.GpsPoint{}
		var order []string
		for _, p := range session.Points {
			day := p.Timestamp.In(s.loc).Format(time.DateOnly)
			if _, ok := chunks[day]; !ok {
				order = append(order, day)
			}
			chunks[day] = append(chunks[day], p)
		}
		for _, day := range order {
			b, ok := buckets[day]
			if !ok {
				b = &dayBucket{}
				buckets[day] = b
			}
			b.points = append(b.points, chunks[day]...)
			b.totalKm += geo.TrackKm(chunks[day])
			b.sessionIDs = append(b.sessionIDs, session.ID)
		}
	}

	dates := make([]string, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	days := make([]DayRoute, 0, len(dates))
	for _, d := range dates {
		b := buckets[d]
		found := s.detector.Detect(b.points, s.minStop)
		if found == nil {
			found = []stops.Stop{}
		}
		days = append(days, DayRoute{
			Date:       d,
			Stops:      found,
			Route:      route.Compose(found),
			TotalKm:    b.totalKm,
			SessionIDs: b.sessionIDs,
		})
	}
	return days
}

// SessionStops runs stop detection over one stored session.
func (s *Service) SessionStops(ctx context.Context, id string) (tracking.Session, []stops.Stop, error) {
	session, err := s.sessions.Session(ctx, id)
	if err != nil {
		return tracking.Session{}, nil, err
	}
	return session, s.detector.Detect(session.Points, s.minStop), nil
}
