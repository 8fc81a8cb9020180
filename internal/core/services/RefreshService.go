package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

type Job string

const (
	JobCalendar  Job = "calendar"
	JobStandings Job = "standings"
	JobLive      Job = "live"
	JobBaseline  Job = "baseline"
)

var Jobs = []Job{JobCalendar, JobStandings, JobLive, JobBaseline}

func ParseJob(name string) (Job, error) {
	for _, job := range Jobs {
		if string(job) == name {
			return job, nil
		}
	}
	return "", fmt.Errorf("unknown job %q", name)
}

// JobReport collects what one invocation wrote and which resources failed.
type JobReport struct {
	Job     Job
	RunID   string
	Skipped bool
	Written []string
	Failed  map[string]string
	Err     error

	mu sync.Mutex
}

func newJobReport(job Job) *JobReport {
	return &JobReport{
		Job:    job,
		RunID:  uuid.NewString(),
		Failed: make(map[string]string),
	}
}

func (r *JobReport) wrote(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written = append(r.Written, key)
}

func (r *JobReport) fail(resource string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed[resource] = err.Error()
}

func (r *JobReport) Outcome() string {
	switch {
	case r.Err != nil:
		return "failed"
	case len(r.Failed) > 0:
		return "partial"
	case r.Skipped:
		return "skipped"
	default:
		return "ok"
	}
}

type liveResource struct {
	name     string
	endpoint string
	key      func(sessionKey string) string
}

var liveResources = []liveResource{
	{name: "positions", endpoint: "position", key: domain.PositionsKey},
	{name: "intervals", endpoint: "intervals", key: domain.IntervalsKey},
	{name: "stints", endpoint: "stints", key: domain.StintsKey},
	{name: "weather", endpoint: "weather", key: domain.WeatherKey},
	{name: "race_control", endpoint: "race_control", key: domain.RaceControlKey},
	{name: "drivers", endpoint: "drivers", key: domain.DriversKey},
	{name: "laps", endpoint: "laps", key: func(sessionKey string) string {
		return domain.LapsKey(sessionKey, domain.AllDrivers)
	}},
}

type RefreshService struct {
	upstream    ports.Upstream
	store       ports.CacheStore
	logger      ports.LoggerPort
	metrics     ports.MetricsPort
	beforeStart time.Duration
	afterEnd    time.Duration
	now         func() time.Time
}

func NewRefreshService(
	upstream ports.Upstream,
	store ports.CacheStore,
	logger ports.LoggerPort,
	metrics ports.MetricsPort,
	beforeStart time.Duration,
	afterEnd time.Duration,
) *RefreshService {
	return &RefreshService{
		upstream:    upstream,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		beforeStart: beforeStart,
		afterEnd:    afterEnd,
		now:         time.Now,
	}
}

// Run executes one job invocation. Failures are logged and reported, never
// returned: a failed refresh leaves the previous cache entries in place.
// force bypasses the standings day-of-week gate.
func (s *RefreshService) Run(ctx context.Context, job Job, force bool) *JobReport {
	report := newJobReport(job)
	start := time.Now()

	s.logger.Info("Refresh job started", map[string]interface{}{
		"job":    job,
		"run_id": report.RunID,
	})

	switch job {
	case JobCalendar:
		s.refreshCalendar(ctx, report)
	case JobStandings:
		s.refreshStandings(ctx, report, force)
	case JobLive:
		s.refreshLiveData(ctx, report)
	case JobBaseline:
		s.refreshBaseline(ctx, report)
	default:
		report.Err = fmt.Errorf("unknown job %q", job)
	}

	outcome := report.Outcome()
	labels := map[string]string{"job": string(job), "outcome": outcome}
	s.metrics.IncrementCounter(ports.MetricRefreshJobRunsTotal, labels)
	s.metrics.RecordDuration(ports.MetricRefreshJobDuration, time.Since(start), labels)

	fields := map[string]interface{}{
		"job":         job,
		"run_id":      report.RunID,
		"outcome":     outcome,
		"written":     len(report.Written),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if len(report.Failed) > 0 {
		fields["failed"] = report.Failed
	}
	if report.Err != nil {
		fields["error"] = report.Err.Error()
		s.logger.Error("Refresh job failed", fields)
	} else {
		s.logger.Info("Refresh job finished", fields)
	}
	return report
}

func (s *RefreshService) RefreshCalendar(ctx context.Context) *JobReport {
	return s.Run(ctx, JobCalendar, false)
}

func (s *RefreshService) RefreshStandings(ctx context.Context) *JobReport {
	return s.Run(ctx, JobStandings, false)
}

func (s *RefreshService) RefreshLiveData(ctx context.Context) *JobReport {
	return s.Run(ctx, JobLive, false)
}

func (s *RefreshService) RefreshBaseline(ctx context.Context) *JobReport {
	return s.Run(ctx, JobBaseline, false)
}

func (s *RefreshService) refreshCalendar(ctx context.Context, report *JobReport) {
	year := s.now().Year()

	data, err := s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, "meetings",
		url.Values{"year": {strconv.Itoa(year)}}, "meetings", domain.MeetingsKey(year))
	if err != nil {
		report.Err = err
		return
	}

	var meetings []domain.Meeting
	if err := json.Unmarshal(data, &meetings); err != nil {
		report.Err = fmt.Errorf("decode meetings: %w", err)
		return
	}

	for _, meeting := range meetings {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			return
		}
		meetingKey := strconv.Itoa(meeting.MeetingKey)
		// per-meeting failures are recorded and skipped
		_, _ = s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, "sessions",
			url.Values{"meeting_key": {meetingKey}}, "sessions_"+meetingKey, domain.SessionsKey(meetingKey))
	}

	_, _ = s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, "sessions",
		url.Values{"year": {strconv.Itoa(year)}}, "sessions_year", domain.SessionsByYearKey(year))
}

func (s *RefreshService) refreshStandings(ctx context.Context, report *JobReport, force bool) {
	now := s.now()
	if !force && !domain.InStandingsWindow(now) {
		report.Skipped = true
		s.logger.Debug("Standings refresh outside race weekend window", map[string]interface{}{
			"weekday": now.UTC().Weekday().String(),
		})
		return
	}

	year := now.Year()
	var g errgroup.Group
	g.Go(func() error {
		_, _ = s.fetchAndWrite(ctx, report, domain.ProviderJolpica, fmt.Sprintf("%d/driverstandings.json", year),
			nil, "driver_standings", domain.DriverStandingsKey(year))
		return nil
	})
	g.Go(func() error {
		_, _ = s.fetchAndWrite(ctx, report, domain.ProviderJolpica, fmt.Sprintf("%d/constructorstandings.json", year),
			nil, "constructor_standings", domain.ConstructorStandingsKey(year))
		return nil
	})
	_ = g.Wait()

	if len(report.Written) == 0 {
		report.Err = fmt.Errorf("no standings refreshed")
	}
}

func (s *RefreshService) refreshLiveData(ctx context.Context, report *JobReport) {
	session, err := s.refreshLatestSession(ctx, report)
	if err != nil {
		report.Err = err
		return
	}

	if !domain.IsSessionInLiveWindow(session, s.now(), s.beforeStart, s.afterEnd) {
		report.Skipped = true
		fields := map[string]interface{}{}
		if session != nil {
			fields["session_key"] = session.SessionKey
			fields["date_start"] = session.DateStart
			fields["date_end"] = session.DateEnd
		}
		s.logger.Debug("Latest session not live, skipping live data", fields)
		return
	}

	sessionKey := strconv.Itoa(session.SessionKey)
	params := url.Values{"session_key": {sessionKey}}

	var g errgroup.Group
	for _, res := range liveResources {
		res := res
		g.Go(func() error {
			data, err := s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, res.endpoint, params, res.name, res.key(sessionKey))
			if err == nil && res.name == "drivers" {
				s.write(ctx, report, "drivers_latest", domain.DriversLatestKey, data)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *RefreshService) refreshBaseline(ctx context.Context, report *JobReport) {
	session, err := s.refreshLatestSession(ctx, report)
	if err != nil {
		report.Err = err
		return
	}
	if session == nil {
		return
	}

	sessionKey := strconv.Itoa(session.SessionKey)
	params := url.Values{"session_key": {sessionKey}}

	data, err := s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, "drivers", params, "drivers", domain.DriversKey(sessionKey))
	if err == nil {
		s.write(ctx, report, "drivers_latest", domain.DriversLatestKey, data)
	}

	_, _ = s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, "session_result", params, "result", domain.ResultKey(sessionKey))
}

// refreshLatestSession always writes latest_session and returns the decoded
// session, or nil when the provider returned none.
func (s *RefreshService) refreshLatestSession(ctx context.Context, report *JobReport) (*domain.Session, error) {
	data, err := s.fetchAndWrite(ctx, report, domain.ProviderOpenF1, "sessions",
		url.Values{"session_key": {"latest"}}, "latest_session", domain.LatestSessionKey)
	if err != nil {
		return nil, err
	}

	var sessions []domain.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode latest session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (s *RefreshService) fetchAndWrite(
	ctx context.Context,
	report *JobReport,
	provider domain.Provider,
	endpoint string,
	params url.Values,
	resource string,
	key string,
) (json.RawMessage, error) {
	data, err := s.upstream.FetchResource(ctx, provider, endpoint, params)
	if err != nil {
		report.fail(resource, err)
		s.logger.Warn("Upstream fetch failed", map[string]interface{}{
			"job":      report.Job,
			"run_id":   report.RunID,
			"resource": resource,
			"error":    err.Error(),
		})
		return nil, err
	}
	if err := s.write(ctx, report, resource, key, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RefreshService) write(ctx context.Context, report *JobReport, resource, key string, data json.RawMessage) error {
	if err := s.store.Write(ctx, key, data); err != nil {
		report.fail(resource, err)
		s.metrics.IncrementCounter(ports.MetricCacheWritesTotal, map[string]string{"resource": resource, "outcome": "error"})
		s.logger.Error("Failed to write cache entry", map[string]interface{}{
			"job":    report.Job,
			"run_id": report.RunID,
			"key":    key,
			"error":  err.Error(),
		})
		return err
	}
	report.wrote(key)
	s.metrics.IncrementCounter(ports.MetricCacheWritesTotal, map[string]string{"resource": resource, "outcome": "ok"})
	return nil
}
