package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

type Endpoint string

const (
	EndpointMeetings             Endpoint = "getMeetings"
	EndpointSessions             Endpoint = "getSessions"
	EndpointSessionsByYear       Endpoint = "getSessionsByYear"
	EndpointDrivers              Endpoint = "getDrivers"
	EndpointLatestDrivers        Endpoint = "getLatestDrivers"
	EndpointPositions            Endpoint = "getPositions"
	EndpointIntervals            Endpoint = "getIntervals"
	EndpointSessionResult        Endpoint = "getSessionResult"
	EndpointLaps                 Endpoint = "getLaps"
	EndpointWeather              Endpoint = "getWeather"
	EndpointRaceControl          Endpoint = "getRaceControl"
	EndpointStints               Endpoint = "getStints"
	EndpointLatestSession        Endpoint = "getLatestSession"
	EndpointDriverStandings      Endpoint = "getDriverStandings"
	EndpointConstructorStandings Endpoint = "getConstructorStandings"
)

const (
	yearRule         = "number,len=4"
	sessionKeyRule   = "required,alphanum,max=32"
	meetingKeyRule   = "required,alphanum,max=32"
	driverNumberRule = "max=3,eq=all|number"
)

// ParamError reports a missing or malformed query parameter. The store is
// never read when one is returned.
type ParamError struct {
	Param   string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Param, e.Message)
}

type ReadService struct {
	store    ports.CacheStore
	logger   ports.LoggerPort
	validate *validator.Validate
	now      func() time.Time
}

func NewReadService(store ports.CacheStore, logger ports.LoggerPort, validate *validator.Validate) *ReadService {
	return &ReadService{
		store:    store,
		logger:   logger,
		validate: validate,
		now:      time.Now,
	}
}

// CacheKey derives the store key an endpoint reads from its query parameters.
func (s *ReadService) CacheKey(endpoint Endpoint, params url.Values) (string, error) {
	switch endpoint {
	case EndpointMeetings:
		year, err := s.year(params)
		if err != nil {
			return "", err
		}
		return domain.MeetingsKey(year), nil

	case EndpointSessionsByYear:
		year, err := s.year(params)
		if err != nil {
			return "", err
		}
		return domain.SessionsByYearKey(year), nil

	case EndpointDriverStandings:
		year, err := s.year(params)
		if err != nil {
			return "", err
		}
		return domain.DriverStandingsKey(year), nil

	case EndpointConstructorStandings:
		year, err := s.year(params)
		if err != nil {
			return "", err
		}
		return domain.ConstructorStandingsKey(year), nil

	case EndpointSessions:
		meetingKey, err := s.param(params, "meeting_key", meetingKeyRule)
		if err != nil {
			return "", err
		}
		return domain.SessionsKey(meetingKey), nil

	case EndpointLatestDrivers:
		return domain.DriversLatestKey, nil

	case EndpointLatestSession:
		return domain.LatestSessionKey, nil

	case EndpointLaps:
		sessionKey, err := s.param(params, "session_key", sessionKeyRule)
		if err != nil {
			return "", err
		}
		driver := params.Get("driver_number")
		if driver == "" {
			driver = domain.AllDrivers
		}
		if err := s.validate.Var(driver, driverNumberRule); err != nil {
			return "", &ParamError{Param: "driver_number", Message: "must be a driver number or \"all\""}
		}
		return domain.LapsKey(sessionKey, driver), nil
	}

	build, ok := sessionScoped[endpoint]
	if !ok {
		return "", fmt.Errorf("unknown endpoint %q", endpoint)
	}
	sessionKey, err := s.param(params, "session_key", sessionKeyRule)
	if err != nil {
		return "", err
	}
	return build(sessionKey), nil
}

var sessionScoped = map[Endpoint]func(string) string{
	EndpointDrivers:       domain.DriversKey,
	EndpointPositions:     domain.PositionsKey,
	EndpointIntervals:     domain.IntervalsKey,
	EndpointSessionResult: domain.ResultKey,
	EndpointWeather:       domain.WeatherKey,
	EndpointRaceControl:   domain.RaceControlKey,
	EndpointStints:        domain.StintsKey,
}

// Get reads the single document behind an endpoint. A cache miss is not an
// error: the entry is nil.
func (s *ReadService) Get(ctx context.Context, endpoint Endpoint, params url.Values) (*domain.CacheEntry, error) {
	const op = "services.ReadService.Get"

	key, err := s.CacheKey(endpoint, params)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Read(ctx, key)
	if errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Debug("Cache miss", map[string]interface{}{
			"endpoint": endpoint,
			"key":      key,
		})
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to read cache entry", map[string]interface{}{
			"endpoint": endpoint,
			"key":      key,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}

func (s *ReadService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ReadService) year(params url.Values) (int, error) {
	raw := params.Get("year")
	if raw == "" {
		return s.now().Year(), nil
	}
	if err := s.validate.Var(raw, yearRule); err != nil {
		return 0, &ParamError{Param: "year", Message: "must be a four digit year"}
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Param: "year", Message: "must be a four digit year"}
	}
	return year, nil
}

func (s *ReadService) param(params url.Values, name, rule string) (string, error) {
	value := params.Get(name)
	if value == "" {
		return "", &ParamError{Param: name, Message: "is required"}
	}
	if err := s.validate.Var(value, rule); err != nil {
		return "", &ParamError{Param: name, Message: "is invalid"}
	}
	return value, nil
}
