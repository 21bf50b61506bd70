package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

// GroupFanoutLimit caps concurrent per-member gains computations so a
// large group cannot flood the store.
const GroupFanoutLimit = 8

const (
	ShutdownTimeout = 5 * time.Second
)

// Scheduler cadences. Weekly and monthly runs are staggered a few
// minutes past midnight so the daily run finishes first when they land
// on the same night.
const (
	DailyGainsCron   = "0 0 * * *"
	WeeklyGainsCron  = "5 0 * * 1"
	MonthlyGainsCron = "10 0 1 * *"
)
