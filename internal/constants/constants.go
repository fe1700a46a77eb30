package constants

import "time"

const (
	DefaultTickInterval = 15 * time.Minute
	DefaultFetchTimeout = 15 * time.Second
	DefaultBaseURL      = "https://fortnite-api.com"
	StatsPath           = "/v2/stats/br/v2"
)

const (
	ExternalAPITimeout = 15 * time.Second
	DatabaseTimeout    = 5 * time.Second
	PublishTimeout     = 5 * time.Second
	ShutdownTimeout    = 20 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	SubscriberBuffer     = 16
	SnapshotStreamKey    = "fortnite.snapshots"
	SnapshotStreamMax    = 1000
	TickHistoryLimit     = 50
	TickHistoryMaxRows   = 500
	TickJournalRetention = 7 * 24 * time.Hour
)
