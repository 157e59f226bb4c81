package common

const (
	RedisStreamEngineEvents    = "cardflip.events"
	RedisStreamAnalysisRequest = "cardflip.analysis.request"

	RedisStreamGroup    = "engine-group"
	RedisStreamConsumer = "engine-consumer"
)

// Listing sources written by the scrape paths.
const (
	SourceMarketplaceMonitor = "marketplace_monitor"
	SourceMarketplaceScan    = "marketplace_scan"
)

// Feature reference types.
const (
	RefTypeListing = "listing"
	RefTypeSale    = "sale"
)
