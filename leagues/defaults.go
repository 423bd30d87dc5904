package leagues

// DefaultLeagues returns the competitions Cassandra evaluates out of the
// box. Provider ids follow the fixtures provider's league numbering.
func DefaultLeagues() []League {
	return []League{
		// Top five European leagues plus the Champions League carry the
		// best data quality and the highest selection priority.
		{Key: "soccer_epl", Name: "Premier League", ProviderID: 39, TierMultiplier: 1.25, Premium: true, Active: true},
		{Key: "soccer_spain_la_liga", Name: "La Liga", ProviderID: 140, TierMultiplier: 1.25, Premium: true, Active: true},
		{Key: "soccer_italy_serie_a", Name: "Serie A", ProviderID: 135, TierMultiplier: 1.20, Premium: true, Active: true},
		{Key: "soccer_germany_bundesliga", Name: "Bundesliga", ProviderID: 78, TierMultiplier: 1.20, Premium: true, Active: true},
		{Key: "soccer_france_ligue_one", Name: "Ligue 1", ProviderID: 61, TierMultiplier: 1.15, Premium: true, Active: true},
		{Key: "soccer_uefa_champs_league", Name: "Champions League", ProviderID: 2, TierMultiplier: 1.30, Premium: true, Active: true},

		{Key: "soccer_efl_champ", Name: "English Championship", ProviderID: 40, TierMultiplier: 1.05, Active: true},
		{Key: "soccer_netherlands_eredivisie", Name: "Eredivisie", ProviderID: 88, TierMultiplier: 1.05, Active: true},
		{Key: "soccer_portugal_primeira_liga", Name: "Primeira Liga", ProviderID: 94, TierMultiplier: 1.05, Active: true},
		{Key: "soccer_belgium_first_div", Name: "Belgian First Division", ProviderID: 144, TierMultiplier: 1.00, Active: true},
		{Key: "soccer_scotland_premiership", Name: "Scottish Premiership", ProviderID: 179, TierMultiplier: 0.95, Active: true},
		{Key: "soccer_turkey_super_league", Name: "Turkish Super League", ProviderID: 203, TierMultiplier: 0.95, Active: true},
		{Key: "soccer_brazil_serie_a", Name: "Brazilian Serie A", ProviderID: 71, TierMultiplier: 1.00, Active: true},
		{Key: "soccer_argentina_primera_division", Name: "Argentinian Primera Division", ProviderID: 128, TierMultiplier: 0.95, Active: true},
		{Key: "soccer_usa_mls", Name: "Major League Soccer", ProviderID: 253, TierMultiplier: 0.90, Active: true},
		{Key: "soccer_japan_j_league", Name: "Japanese J1 League", ProviderID: 98, TierMultiplier: 0.90, Active: true},
	}
}

// NewDefaultRegistry builds a registry pre-loaded with DefaultLeagues.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, l := range DefaultLeagues() {
		// Keys in DefaultLeagues are unique; Register cannot fail here.
		_ = r.Register(l)
	}
	return r
}
