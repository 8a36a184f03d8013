package domain

// Category identifies a queue lane. Each lane has its own priority
// ordering, worker pool and attempt ceiling.
type Category string

const (
	CategoryLiveMatch       Category = "live-match"
	CategoryHistoricalData  Category = "historical-data"
	CategoryUpcomingFixture Category = "upcoming-fixture"
	CategoryLeagueDiscovery Category = "league-discovery"
)

// Categories returns all registered lanes in priority order.
func Categories() []Category {
	return []Category{
		CategoryLiveMatch,
		CategoryUpcomingFixture,
		CategoryHistoricalData,
		CategoryLeagueDiscovery,
	}
}

// Valid reports whether c names a registered lane.
func (c Category) Valid() bool {
	switch c {
	case CategoryLiveMatch, CategoryHistoricalData, CategoryUpcomingFixture, CategoryLeagueDiscovery:
		return true
	}
	return false
}
