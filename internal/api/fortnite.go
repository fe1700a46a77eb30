package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fortnite-tracker/internal/config"
	"fortnite-tracker/internal/constants"
	"fortnite-tracker/internal/domain"

	"github.com/valyala/fasthttp"
)

// Fetcher performs one remote lookup for one player.
type Fetcher interface {
	Fetch(ctx context.Context, player string) domain.Outcome
}

type FortniteClient struct {
	apiKey      string
	baseURL     string
	timeout     time.Duration
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewFortniteClient(cfg *config.Config) *FortniteClient {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = constants.ExternalAPITimeout
	}
	return &FortniteClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		timeout: timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     4,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *FortniteClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *FortniteClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	seen := false
	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
			seen = true
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
			seen = true
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
			seen = true
		}
	}
	if seen {
		c.rateLimit.UpdatedAt = time.Now()
	}
}

type rawResponse struct {
	status int
	body   []byte
	err    error
}

// Fetch looks up the overall battle-royale stats for player. It never
// returns an error; every failure is folded into the Outcome.
func (c *FortniteClient) Fetch(ctx context.Context, player string) domain.Outcome {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(c.baseURL + constants.StatsPath)
	req.URI().QueryArgs().Add("name", player)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	// fasthttp ignores ctx, so the call runs aside and the caller only
	// waits until ctx is done. The goroutine owns req/resp.
	done := make(chan rawResponse, 1)
	go func() {
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			done <- rawResponse{err: err}
			return
		}
		c.updateRateLimit(resp)
		done <- rawResponse{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
		}
	}()

	select {
	case <-ctx.Done():
		return domain.Outcome{Kind: domain.OutcomeTransport, Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
	case raw := <-done:
		if raw.err != nil {
			return domain.Outcome{Kind: domain.OutcomeTransport, Err: fmt.Errorf("request failed: %w", raw.err)}
		}
		return Classify(raw.status, raw.body)
	}
}

// Classify maps an HTTP status and body to an Outcome.
func Classify(status int, body []byte) domain.Outcome {
	switch status {
	case fasthttp.StatusOK:
		rec, err := parseStats(body)
		if err != nil {
			return domain.Outcome{Kind: domain.OutcomeMalformed, StatusCode: status, Err: err}
		}
		return domain.Outcome{Kind: domain.OutcomeSuccess, StatusCode: status, Record: rec}
	case fasthttp.StatusTooManyRequests:
		return domain.Outcome{Kind: domain.OutcomeRateLimited, StatusCode: status, Err: apiError(status, body)}
	case fasthttp.StatusNotFound:
		return domain.Outcome{Kind: domain.OutcomeNotFound, StatusCode: status, Err: apiError(status, body)}
	case fasthttp.StatusUnauthorized, fasthttp.StatusForbidden:
		return domain.Outcome{Kind: domain.OutcomeForbidden, StatusCode: status, Err: apiError(status, body)}
	default:
		return domain.Outcome{Kind: domain.OutcomeTransport, StatusCode: status, Err: apiError(status, body)}
	}
}

func apiError(status int, body []byte) error {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("API error: %d: %s", status, e.Error)
	}
	return fmt.Errorf("API error: %d", status)
}

func parseStats(body []byte) (*domain.StatRecord, error) {
	var res StatsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	if res.Data == nil || res.Data.Stats == nil || res.Data.Stats.All == nil || res.Data.Stats.All.Overall == nil {
		return nil, fmt.Errorf("response has no data.stats.all.overall block")
	}

	o := res.Data.Stats.All.Overall
	rec := &domain.StatRecord{
		Wins:    o.Wins,
		Kills:   o.Kills,
		Deaths:  o.Deaths,
		Matches: o.Matches,
	}
	// kd is derived from the overall kills/deaths; the upstream kd is not used.
	if o.Kills != nil && o.Deaths != nil {
		kd := domain.ComputeKD(*o.Kills, *o.Deaths)
		rec.KD = &kd
	}
	return rec, nil
}

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

type StatsResponse struct {
	Status int        `json:"status"`
	Data   *StatsData `json:"data"`
}

type StatsData struct {
	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"account"`
	BattlePass struct {
		Level    int `json:"level"`
		Progress int `json:"progress"`
	} `json:"battlePass"`
	Stats *struct {
		All *struct {
			Overall *OverallStats `json:"overall"`
		} `json:"all"`
	} `json:"stats"`
}

type OverallStats struct {
	Score         *int64   `json:"score"`
	Wins          *int64   `json:"wins"`
	Kills         *int64   `json:"kills"`
	Deaths        *int64   `json:"deaths"`
	KD            *float64 `json:"kd"`
	Matches       *int64   `json:"matches"`
	WinRate       *float64 `json:"winRate"`
	MinutesPlayed *int64   `json:"minutesPlayed"`
}
