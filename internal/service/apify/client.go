package apify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	drepo "MarketBrief/internal/domain/repository"
	xhttp "MarketBrief/pkg/http"
	applogger "MarketBrief/pkg/logger"
)

// Client implements a JobRunner backed by the Apify run-sync API. A Run call
// starts the actor and blocks until its default dataset is returned.
type Client struct {
	token   string
	baseURL string
	http    *xhttp.Client
	logger  *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-run HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(d))
	}
}

// New creates a new Apify client.
func New(token string, lgr *applogger.Logger, opts ...Option) drepo.JobRunner {
	c := &Client{
		token:   token,
		baseURL: "https://api.apify.com",
		http:    xhttp.NewClient(xhttp.WithTimeout(5 * time.Minute)),
		logger:  lgr,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run starts the actor, waits for it to finish, and returns the items of its
// default dataset.
func (c *Client) Run(ctx context.Context, jobID string, input map[string]any, memoryMB int) ([]map[string]any, error) {
	start := time.Now()

	var items []map[string]any
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", c.baseURL, actorPath(jobID)),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.token,
			"Content-Type":  "application/json",
		},
		QueryParams: map[string][]string{
			"memory": {strconv.Itoa(memoryMB)},
			"format": {"json"},
		},
		Body: input,
	}, &items)
	if err != nil {
		c.logger.Error("actor run failed",
			applogger.String("actor", jobID),
			applogger.Error(err))
		return nil, fmt.Errorf("run actor %s: %w", jobID, err)
	}

	c.logger.Info("actor run finished",
		applogger.String("actor", jobID),
		applogger.Int("items", len(items)),
		applogger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return items, nil
}

// actorPath converts "user/actor-name" to the "user~actor-name" form the
// REST API expects in path segments.
func actorPath(id string) string {
	return strings.ReplaceAll(id, "/", "~")
}
