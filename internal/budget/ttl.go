package budget

import "time"

// Endpoint classes drive cache lifetimes. Fixture lists and standings
// change daily; injuries move on news cycles; lineups are effectively
// immutable once published.
const (
	ClassFixtures  = "fixtures"
	ClassStandings = "standings"
	ClassInjuries  = "injuries"
	ClassStats     = "stats"
	ClassLineups   = "lineups"
	ClassOdds      = "odds"
)

const defaultTTL = 24 * time.Hour

var ttlByClass = map[string]time.Duration{
	ClassFixtures:  24 * time.Hour,
	ClassStandings: 24 * time.Hour,
	ClassInjuries:  2 * time.Hour,
	ClassStats:     12 * time.Hour,
	ClassLineups:   168 * time.Hour,
	ClassOdds:      30 * time.Minute,
}

// TTLFor returns the cache lifetime for an endpoint class.
func TTLFor(class string) time.Duration {
	if ttl, ok := ttlByClass[class]; ok {
		return ttl
	}
	return defaultTTL
}
