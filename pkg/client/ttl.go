package client

import "time"

// Resources served by the read service.
const (
	ResourceMeetings             = "getMeetings"
	ResourceSessions             = "getSessions"
	ResourceSessionsByYear       = "getSessionsByYear"
	ResourceDrivers              = "getDrivers"
	ResourceLatestDrivers        = "getLatestDrivers"
	ResourcePositions            = "getPositions"
	ResourceIntervals            = "getIntervals"
	ResourceSessionResult        = "getSessionResult"
	ResourceLaps                 = "getLaps"
	ResourceWeather              = "getWeather"
	ResourceRaceControl          = "getRaceControl"
	ResourceStints               = "getStints"
	ResourceLatestSession        = "getLatestSession"
	ResourceDriverStandings      = "getDriverStandings"
	ResourceConstructorStandings = "getConstructorStandings"
)

const DefaultTTL = 5 * time.Minute

// TTLTable maps a resource to how long a cached copy counts as fresh. It is
// kept roughly in line with the server refresh cadence.
type TTLTable map[string]time.Duration

func DefaultTTLs() TTLTable {
	return TTLTable{
		ResourceMeetings:             24 * time.Hour,
		ResourceSessions:             24 * time.Hour,
		ResourceSessionsByYear:       24 * time.Hour,
		ResourceDriverStandings:      2 * time.Hour,
		ResourceConstructorStandings: 2 * time.Hour,
		ResourceDrivers:              3 * time.Hour,
		ResourceLatestDrivers:        3 * time.Hour,
		ResourceSessionResult:        3 * time.Hour,
		ResourceLatestSession:        time.Minute,
		ResourcePositions:            time.Minute,
		ResourceIntervals:            time.Minute,
		ResourceLaps:                 time.Minute,
		ResourceWeather:              time.Minute,
		ResourceRaceControl:          time.Minute,
		ResourceStints:               time.Minute,
	}
}

func (t TTLTable) For(resource string) time.Duration {
	if ttl, ok := t[resource]; ok {
		return ttl
	}
	return DefaultTTL
}

// Max is the longest TTL in the table. Persistent entries older than this
// are never fresh for any resource.
func (t TTLTable) Max() time.Duration {
	max := DefaultTTL
	for _, ttl := range t {
		if ttl > max {
			max = ttl
		}
	}
	return max
}
