// Package judge talks to the external judging service that ranks CODE challenge entries.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const leaderboardSchemaURL = "judge://weekly_leaderboard.schema.json"

const leaderboardSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["week", "leaderboard"],
  "properties": {
    "week": {"type": "string"},
    "leaderboard": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["user"],
        "properties": {
          "user": {"type": "string", "minLength": 1},
          "rank": {"type": ["integer", "null"], "minimum": 1},
          "score": {"type": ["number", "null"]}
        }
      }
    }
  }
}`

// Entry is one ranked participant as reported by the judging service.
type Entry struct {
	UserRef string   `json:"user"`
	Rank    *int     `json:"rank"`
	Score   *float64 `json:"score"`
}

// Leaderboard is the judging service's ranking for one week.
type Leaderboard struct {
	WeekRef string  `json:"week"`
	Entries []Entry `json:"leaderboard"`
}

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client fetches weekly leaderboards.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	schema  *jsonschema.Schema
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewClient validates the configuration and compiles the payload schema.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("judge base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(leaderboardSchemaURL, strings.NewReader(leaderboardSchema)); err != nil {
		return nil, fmt.Errorf("load leaderboard schema: %w", err)
	}
	schema, err := compiler.Compile(leaderboardSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile leaderboard schema: %w", err)
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		schema:  schema,
		tracer:  otel.Tracer("github.com/noah-isme/challenge-api/pkg/judge"),
		logger:  cfg.Logger.With().Str("component", "judge_client").Logger(),
	}, nil
}

// WeeklyLeaderboard fetches and validates the ranking for weekRef.
func (c *Client) WeeklyLeaderboard(parent context.Context, weekRef string) (Leaderboard, error) {
	ctx, span := c.tracer.Start(parent, "judge.weekly_leaderboard", trace.WithAttributes(
		attribute.String("judge.week", weekRef),
	))
	defer span.End()

	endpoint := fmt.Sprintf("%s/api/reco/judge/leaderboard/%s", c.baseURL, url.PathEscape(weekRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Leaderboard{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-AI-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request_failed")
		return Leaderboard{}, fmt.Errorf("judge leaderboard request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		span.RecordError(err)
		return Leaderboard{}, fmt.Errorf("read judge leaderboard: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("judge leaderboard returned status %d", resp.StatusCode)
		c.logger.Warn().Int("status", resp.StatusCode).Str("week", weekRef).Str("body", truncate(string(body), 500)).Msg("judge leaderboard request rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, "non_2xx")
		return Leaderboard{}, err
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		span.RecordError(err)
		return Leaderboard{}, fmt.Errorf("decode judge leaderboard: %w", err)
	}
	if err := c.schema.Validate(document); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema_violation")
		return Leaderboard{}, fmt.Errorf("judge leaderboard payload invalid: %w", err)
	}

	var board Leaderboard
	if err := json.Unmarshal(body, &board); err != nil {
		return Leaderboard{}, fmt.Errorf("decode judge leaderboard: %w", err)
	}

	span.SetAttributes(attribute.Int("judge.entries", len(board.Entries)))
	c.logger.Info().Str("week", weekRef).Int("entries", len(board.Entries)).Msg("judge leaderboard fetched")
	return board, nil
}

func truncate(value string, max int) string {
	trimmed := strings.Join(strings.Fields(value), " ")
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "...(truncated)"
}
