package sync

// Config holds the reconciliation cycle settings.
type Config struct {
	// EnrichWorkers bounds the parallelism of the enrichment step.
	EnrichWorkers int `mapstructure:"enrich_workers" default:"4"`
	// StaleAfterDays is the age after which enriched records are
	// re-fetched from the job board.
	StaleAfterDays int `mapstructure:"stale_after_days" default:"7"`
	// StaleBatchSize caps how many stale records one refresh pass takes.
	StaleBatchSize int `mapstructure:"stale_batch_size" default:"50"`
	// IntervalMinutes is the pause between scheduled cycles.
	IntervalMinutes int `mapstructure:"interval_minutes" default:"30"`
	// ArchiveReports uploads per-cycle reports to object storage.
	ArchiveReports bool `mapstructure:"archive_reports" default:"false"`
}
