package config

const (
	DefaultTimeZone = "Africa/Kigali"

	// Statement upload ceilings. Files over either limit are rejected
	// before any row is materialized.
	MaxUploadBytes   = 16 << 20
	MaxStatementRows = 20000

	CommitBatchSize = 500

	// Staging retention job
	DefaultStagingSchedule = "30 2 * * *"
	StagingRetentionDays   = 30
)
