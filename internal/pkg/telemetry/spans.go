package telemetry

// Span names used for instrumentation.
const (
	SpanRecordPing     = "density.record"
	SpanQueryDensity   = "density.query"
	SpanQueryDensities = "density.query_many"
	SpanDailyPath      = "path.daily"
	SpanTrackerSample  = "tracker.sample"
)
