package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tylerhslee/gw2tp/internal/gw2api"
)

const (
	defaultMaxRetries = 10
	defaultBackoff    = time.Second
	defaultMaxBackoff = time.Minute
)

// FetchReport summarizes a completed fetch phase.
type FetchReport struct {
	MaxPage        int
	Records        int
	TransformSkips int
	Retries        int
}

// Controller drives a full ingestion fetch: one page-bound discovery,
// then fetch rounds that resume from the minimum pending page after a
// transport failure, with exponential backoff and a retry ceiling. Only
// transport errors retry; everything else is fatal.
type Controller struct {
	Fetcher    *Fetcher
	MaxRetries int           // resume rounds before giving up, default 10
	Backoff    time.Duration // initial inter-retry delay, default 1s
	MaxBackoff time.Duration // backoff cap, default 1m
	Log        *logrus.Entry
}

func (c *Controller) logger() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Run fetches pages 0 through the discovered maximum into batch.
func (c *Controller) Run(ctx context.Context, path []string, batch Batch) (*FetchReport, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := c.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	maxPage, err := c.Fetcher.Client.MaxPage(ctx, path...)
	if err != nil {
		return nil, err
	}
	c.logger().WithField("max_page", maxPage).Info("discovered page bound")

	report := &FetchReport{MaxPage: maxPage}
	pending := make([]int, 0, maxPage+1)
	for page := 0; page <= maxPage; page++ {
		pending = append(pending, page)
	}

	for {
		res, err := c.Fetcher.FetchRange(ctx, path, pending, batch)
		if err != nil {
			return nil, err
		}
		report.TransformSkips += res.TransformSkips

		done := make(map[int]bool, len(res.Done))
		for _, page := range res.Done {
			done[page] = true
		}
		next := pending[:0]
		for _, page := range pending {
			if !done[page] {
				next = append(next, page)
			}
		}
		if len(next) == 0 {
			break
		}

		var terr *gw2api.TransportError
		if res.FirstErr != nil && !errors.As(res.FirstErr, &terr) {
			return nil, res.FirstErr
		}

		report.Retries++
		if report.Retries > maxRetries {
			return nil, fmt.Errorf("fetch gave up after %d retries at page %d: %w",
				maxRetries, next[0], res.FirstErr)
		}

		c.logger().WithFields(logrus.Fields{
			"resume_page": next[0],
			"pending":     len(next),
			"backoff":     backoff.String(),
		}).WithError(res.FirstErr).Warn("transport failure, resuming")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		pending = next
	}

	report.Records = batch.Len()
	c.logger().WithFields(logrus.Fields{
		"records": report.Records,
		"retries": report.Retries,
		"skipped": report.TransformSkips,
	}).Info("fetch complete")
	return report, nil
}
