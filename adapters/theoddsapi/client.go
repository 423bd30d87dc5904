// Package theoddsapi adapts The Odds API v4 to the OddsProvider
// contract. Odds calls are the scarcest budget in the system, so every
// request runs through the budget manager and the response cache.
package theoddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/XavierBriggs/Cassandra/internal/budget"
	"github.com/XavierBriggs/Cassandra/pkg/contracts"
	"github.com/XavierBriggs/Cassandra/pkg/models"
)

const (
	baseURL    = "https://api.the-odds-api.com"
	apiVersion = "v4"
	userAgent  = "Cassandra/1.0 (Football Prediction Engine)"
	timeout    = 10 * time.Second

	// ProviderName keys this adapter's request budget and cache rows.
	ProviderName = "theoddsapi"
)

// Client implements contracts.OddsProvider for soccer markets.
type Client struct {
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	budget     *budget.Manager
	cache      *budget.Cache
	log        *logrus.Entry
}

var _ contracts.OddsProvider = (*Client)(nil)

func NewClient(apiKey string, budgetMgr *budget.Manager, cache *budget.Cache, log *logrus.Logger) *Client {
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
		log:        log.WithField("adapter", ProviderName),
	}
}

// MatchOdds retrieves current h2h and totals prices for a league's
// upcoming events, in decimal format.
func (c *Client) MatchOdds(ctx context.Context, leagueKey string) ([]models.MatchOdds, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("regions", "eu,uk")
	params.Set("markets", "h2h,totals")
	params.Set("oddsFormat", "decimal")
	params.Set("dateFormat", "iso")

	body, err := c.fetch(ctx, fmt.Sprintf("/%s/sports/%s/odds", apiVersion, leagueKey), params, "league:"+leagueKey)
	if err != nil {
		return nil, err
	}

	var apiResp []oddsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse odds response: %w", err)
	}
	return parseOdds(apiResp), nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values, cacheKey string) ([]byte, error) {
	if payload, err := c.cache.Get(ctx, ProviderName, budget.ClassOdds, cacheKey); err == nil {
		return payload, nil
	} else if err != budget.ErrCacheMiss {
		c.log.WithError(err).WithField("key", cacheKey).Warn("cache read failed, going to the wire")
	}

	if err := c.budget.Reserve(ctx, ProviderName); err != nil {
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

	if err := c.cache.Put(ctx, ProviderName, budget.ClassOdds, cacheKey, body); err != nil {
		if err == budget.ErrEmptyPayload {
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}
		c.log.WithError(err).WithField("key", cacheKey).Warn("cache write failed")
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

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

// parseOdds flattens the bookmaker/market/outcome nesting into one row
// per (event, market, selection, bookmaker).
func parseOdds(apiResp []oddsResponse) []models.MatchOdds {
	var out []models.MatchOdds
	for _, event := range apiResp {
		commence, err := time.Parse(time.RFC3339, event.CommenceTime)
		if err != nil {
			continue
		}

		for _, book := range event.Bookmakers {
			lastUpdate, err := time.Parse(time.RFC3339, book.LastUpdate)
			if err != nil {
				lastUpdate = commence
			}

			for _, market := range book.Markets {
				for _, outcome := range market.Outcomes {
					selection := outcome.Name
					if outcome.Point != nil {
						selection = fmt.Sprintf("%s %.1f", outcome.Name, *outcome.Point)
					}
					out = append(out, models.MatchOdds{
						MatchID:      event.ID,
						Market:       market.Key,
						Selection:    selection,
						Price:        outcome.Price,
						Bookmaker:    book.Key,
						LastUpdate:   lastUpdate,
						CommenceTime: commence,
					})
				}
			}
		}
	}
	return out
}

// API response structures matching The Odds API JSON format.

type oddsResponse struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime string      `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []bookmaker `json:"bookmakers"`
}

type bookmaker struct {
	Key        string   `json:"key"`
	LastUpdate string   `json:"last_update"`
	Markets    []market `json:"markets"`
}

type market struct {
	Key      string    `json:"key"`
	Outcomes []outcome `json:"outcomes"`
}

type outcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}
