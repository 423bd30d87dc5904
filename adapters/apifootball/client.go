// Package apifootball adapts the API-Football v3 REST API to the
// FixtureProvider contract. Every call is metered through the request
// budget and served from the response cache whenever possible.
package apifootball

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/XavierBriggs/Cassandra/internal/budget"
	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	baseURL   = "https://v3.football.api-sports.io"
	userAgent = "Cassandra/1.0 (Football Prediction Engine)"
	timeout   = 15 * time.Second

	// ProviderName keys this adapter's request budget and cache rows.
	ProviderName = "api_football"
)

// Client implements contracts.FixtureProvider.
type Client struct {
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	budget     *budget.Manager
	cache      *budget.Cache
	log        *logrus.Entry

	// Spacing between live requests keeps burst traffic off the
	// upstream; cache hits skip it entirely.
	minSpacing  time.Duration
	lastRequest time.Time
	mu          sync.Mutex
}

var _ contracts.FixtureProvider = (*Client)(nil)

func NewClient(apiKey string, budgetMgr *budget.Manager, cache *budget.Cache, minSpacing time.Duration, log *logrus.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    ProviderName,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		budget:     budgetMgr,
		cache:      cache,
		minSpacing: minSpacing,
		log:        log.WithField("adapter", ProviderName),
	}
}

// FixturesByDate retrieves all fixtures scheduled on the given day.
func (c *Client) FixturesByDate(ctx context.Context, day time.Time) ([]models.Fixture, error) {
	date := day.UTC().Format("2006-01-02")
	params := url.Values{}
	params.Set("date", date)

	body, err := c.fetch(ctx, "/fixtures", params, budget.ClassFixtures, "date:"+date)
	if err != nil {
		return nil, err
	}

	var resp fixturesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse fixtures response: %w", err)
	}

	fixtures := make([]models.Fixture, 0, len(resp.Response))
	for _, f := range resp.Response {
		fixtures = append(fixtures, models.Fixture{
			FixtureID:   f.Fixture.ID,
			LeagueID:    f.League.ID,
			HomeTeam:    f.Teams.Home.Name,
			AwayTeam:    f.Teams.Away.Name,
			HomeTeamID:  f.Teams.Home.ID,
			AwayTeamID:  f.Teams.Away.ID,
			KickoffTime: f.Fixture.Date,
			Status:      f.Fixture.Status.Short,
		})
	}
	return fixtures, nil
}

// RecentResults retrieves a team's last n completed games.
func (c *Client) RecentResults(ctx context.Context, teamID, n int) ([]models.MatchResult, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("last", strconv.Itoa(n))
	params.Set("status", "FT")

	key := fmt.Sprintf("team:%d:last:%d", teamID, n)
	body, err := c.fetch(ctx, "/fixtures", params, budget.ClassStats, key)
	if err != nil {
		return nil, err
	}
	return parseResults(body)
}

// HeadToHead retrieves prior meetings between two teams.
func (c *Client) HeadToHead(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error) {
	params := url.Values{}
	params.Set("h2h", fmt.Sprintf("%d-%d", homeTeamID, awayTeamID))
	params.Set("status", "FT")

	key := fmt.Sprintf("h2h:%d-%d", homeTeamID, awayTeamID)
	body, err := c.fetch(ctx, "/fixtures/headtohead", params, budget.ClassStats, key)
	if err != nil {
		return nil, err
	}
	return parseResults(body)
}

// Injuries retrieves the current injury report for a team.
func (c *Client) Injuries(ctx context.Context, teamID int) (*models.InjuryReport, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("season", strconv.Itoa(currentSeason(time.Now())))

	key := fmt.Sprintf("team:%d", teamID)
	body, err := c.fetch(ctx, "/injuries", params, budget.ClassInjuries, key)
	if err != nil {
		return nil, err
	}

	var resp injuriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse injuries response: %w", err)
	}

	report := &models.InjuryReport{TeamID: teamID, FetchedAt: time.Now().UTC()}
	for _, inj := range resp.Response {
		report.TeamName = inj.Team.Name
		report.PlayersOut++
		if inj.Player.Type == "Missing Fixture" {
			report.KeyPlayersOut++
		}
	}
	return report, nil
}

// Lineups reports whether confirmed lineups exist for a fixture.
func (c *Client) Lineups(ctx context.Context, fixtureID int) (*models.LineupStatus, error) {
	params := url.Values{}
	params.Set("fixture", strconv.Itoa(fixtureID))

	key := fmt.Sprintf("fixture:%d", fixtureID)
	body, err := c.fetch(ctx, "/fixtures/lineups", params, budget.ClassLineups, key)
	if err != nil {
		return nil, err
	}

	var resp lineupsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse lineups response: %w", err)
	}

	return &models.LineupStatus{
		FixtureID: fixtureID,
		Confirmed: len(resp.Response) >= 2,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// FixtureResult retrieves the final score of a fixture. Returns nil
// without error while the fixture has not finished.
func (c *Client) FixtureResult(ctx context.Context, fixtureID int) (*models.MatchResult, error) {
	params := url.Values{}
	params.Set("id", strconv.Itoa(fixtureID))

	// Result polls use the short odds TTL so an in-play response does
	// not stick in the cache for hours.
	key := fmt.Sprintf("result:%d", fixtureID)
	body, err := c.fetch(ctx, "/fixtures", params, budget.ClassOdds, key)
	if err != nil {
		return nil, err
	}

	var resp fixturesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse fixture response: %w", err)
	}

	for _, f := range resp.Response {
		if !finishedStatus(f.Fixture.Status.Short) {
			continue
		}
		if f.Goals.Home == nil || f.Goals.Away == nil {
			continue
		}
		return &models.MatchResult{
			HomeTeam:  f.Teams.Home.Name,
			AwayTeam:  f.Teams.Away.Name,
			HomeGoals: *f.Goals.Home,
			AwayGoals: *f.Goals.Away,
			Date:      f.Fixture.Date,
		}, nil
	}
	return nil, nil
}

func finishedStatus(short string) bool {
	switch short {
	case "FT", "AET", "PEN":
		return true
	}
	return false
}

// fetch is the shared path: cache, then budget, then the wire.
func (c *Client) fetch(ctx context.Context, path string, params url.Values, class, cacheKey string) ([]byte, error) {
	if payload, err := c.cache.Get(ctx, ProviderName, class, cacheKey); err == nil {
		return payload, nil
	} else if err != budget.ErrCacheMiss {
		c.log.WithError(err).WithField("key", cacheKey).Warn("cache read failed, going to the wire")
	}

	if err := c.budget.Reserve(ctx, ProviderName); err != nil {
		return nil, err
	}

	if err := c.waitSpacing(ctx); err != nil {
		return nil, err
	}

	fullURL := fmt.Sprintf("%s%s?%s", baseURL, path, params.Encode())
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, fullURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	body := result.([]byte)

	if err := c.cache.Put(ctx, ProviderName, class, cacheKey, body); err != nil {
		if err == budget.ErrEmptyPayload {
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}
		c.log.WithError(err).WithField("key", cacheKey).Warn("cache write failed")
	}
	return body, nil
}

// waitSpacing enforces the minimum gap between live requests.
func (c *Client) waitSpacing(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minSpacing - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseResults(body []byte) ([]models.MatchResult, error) {
	var resp fixturesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse results response: %w", err)
	}

	results := make([]models.MatchResult, 0, len(resp.Response))
	for _, f := range resp.Response {
		if f.Goals.Home == nil || f.Goals.Away == nil {
			continue
		}
		results = append(results, models.MatchResult{
			HomeTeam:  f.Teams.Home.Name,
			AwayTeam:  f.Teams.Away.Name,
			HomeGoals: *f.Goals.Home,
			AwayGoals: *f.Goals.Away,
			Date:      f.Fixture.Date,
		})
	}
	// Form and head-to-head windows take the first n entries, so most
	// recent games must come first regardless of API ordering.
	sort.Slice(results, func(i, j int) bool {
		return results[i].Date.After(results[j].Date)
	})
	return results, nil
}

// currentSeason maps a date to the API's season year: the year the
// season started, rolling over in July.
func currentSeason(now time.Time) int {
	if now.Month() >= time.July {
		return now.Year()
	}
	return now.Year() - 1
}

// API response structures matching the API-Football JSON format.

type fixturesResponse struct {
	Response []fixtureEntry `json:"response"`
}

type fixtureEntry struct {
	Fixture struct {
		ID     int       `json:"id"`
		Date   time.Time `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID int `json:"id"`
	} `json:"league"`
	Teams struct {
		Home teamRef `json:"home"`
		Away teamRef `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

type teamRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type injuriesResponse struct {
	Response []struct {
		Player struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"player"`
		Team teamRef `json:"team"`
	} `json:"response"`
}

type lineupsResponse struct {
	Response []struct {
		Team teamRef `json:"team"`
	} `json:"response"`
}
