package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"osrs-tracker/internal/config"
	"osrs-tracker/internal/domain"

	"github.com/valyala/fasthttp"
)

// StatsProvider is the upstream hiscores fetch boundary. Services hold
// this interface so tests can substitute a fake feed.
type StatsProvider interface {
	GetPlayerStats(ctx context.Context, username string) (*PlayerStatsResponse, error)
}

// HiscoresClient fetches raw player stats from the OSRS hiscores API.
type HiscoresClient struct {
	baseURL string
	client  *fasthttp.Client
}

// PlayerStatsResponse is the raw index_lite payload. Skills and
// activities arrive as positional arrays; the caller joins them onto
// the canonical catalogs by index.
type PlayerStatsResponse struct {
	Level      int           `json:"level"`
	XP         int64         `json:"xp"`
	Skills     []RawSkill    `json:"skills"`
	Activities []RawActivity `json:"activities"`
}

type RawSkill struct {
	Rank  int   `json:"rank"`
	Level int   `json:"level"`
	XP    int64 `json:"xp"`
}

type RawActivity struct {
	Rank  int `json:"rank"`
	Score int `json:"score"`
}

func NewHiscoresClient(cfg *config.Config) *HiscoresClient {
	return &HiscoresClient{
		baseURL: cfg.HiscoresBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// GetPlayerStats fetches the hiscores row for one player. A 404 means
// the player is not ranked; any other non-200 is an upstream fault.
// Fetches are never retried here, the caller owns that decision.
func (c *HiscoresClient) GetPlayerStats(ctx context.Context, username string) (*PlayerStatsResponse, error) {
	requestURL := fmt.Sprintf("%s/m=hiscore_oldschool/index_lite.json?player=%s",
		c.baseURL, url.QueryEscape(username))

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("hiscores request failed: %w", err)
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, fmt.Errorf("hiscores request failed: %w", err)
		}
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return nil, fmt.Errorf("%w: player %q is not on the hiscores", domain.ErrPlayerNotFound, username)
	default:
		return nil, fmt.Errorf("%w: %d", domain.ErrUpstreamStatus, resp.StatusCode())
	}

	var result PlayerStatsResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode hiscores response: %w", err)
	}
	return &result, nil
}
