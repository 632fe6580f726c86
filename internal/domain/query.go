package domain

// ListQuery selects stored events, most recent first.
type ListQuery struct {
	// Topic restricts results to one topic when non-empty.
	Topic string
	// Limit bounds the number of results.
	Limit int
	// Before, when non-zero, returns only events older than the event with
	// this sequence id.
	Before int64
}

type Stats struct {
	UniqueEventsStored int64
}
