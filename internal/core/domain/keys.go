package domain

import "fmt"

const (
	LatestSessionKey = "latest_session"
	DriversLatestKey = "drivers_latest"
	AllDrivers       = "all"
)

func MeetingsKey(year int) string {
	return fmt.Sprintf("meetings_%d", year)
}

func SessionsKey(meetingKey string) string {
	return "sessions_" + meetingKey
}

func SessionsByYearKey(year int) string {
	return fmt.Sprintf("sessions_year_%d", year)
}

func DriversKey(sessionKey string) string {
	return "drivers_" + sessionKey
}

func PositionsKey(sessionKey string) string {
	return "positions_" + sessionKey
}

func IntervalsKey(sessionKey string) string {
	return "intervals_" + sessionKey
}

func ResultKey(sessionKey string) string {
	return "result_" + sessionKey
}

func LapsKey(sessionKey, driverNumber string) string {
	if driverNumber == "" {
		driverNumber = AllDrivers
	}
	return fmt.Sprintf("laps_%s_%s", sessionKey, driverNumber)
}

func WeatherKey(sessionKey string) string {
	return "weather_" + sessionKey
}

func RaceControlKey(sessionKey string) string {
	return "race_control_" + sessionKey
}

func StintsKey(sessionKey string) string {
	return "stints_" + sessionKey
}

func DriverStandingsKey(year int) string {
	return fmt.Sprintf("driver_standings_%d", year)
}

func ConstructorStandingsKey(year int) string {
	return fmt.Sprintf("constructor_standings_%d", year)
}
