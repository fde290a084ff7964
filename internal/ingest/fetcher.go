package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tylerhslee/gw2tp/internal/gw2api"
	"github.com/tylerhslee/gw2tp/internal/models"
)

// Progress receives incremental current/total updates for a long-running
// phase. Observability only; a nil Progress is fine.
type Progress func(phase string, current, total int)

// RangeResult describes one fetch round over a set of pages.
type RangeResult struct {
	Done           []int // pages fetched and transformed
	Failed         []int // pages that hit a transport error
	TransformSkips int   // records dropped by the transformer
	FirstErr       error // first transport error observed, if any
}

// Fetcher walks page indices through a bounded worker pool, feeding every
// decoded record to the shared batch. Page order is irrelevant to
// correctness since rows are keyed by identifier; Workers=1 gives the
// strict sequential baseline.
type Fetcher struct {
	Client   *gw2api.Client
	Workers  int // pool size, default 1
	PageSize int // default gw2api.DefaultPageSize
	Progress Progress
	Log      *logrus.Entry
}

func (f *Fetcher) logger() *logrus.Entry {
	if f.Log != nil {
		return f.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// FetchRange requests every page in pages. On the first transport error
// it stops handing out new pages, but records from already-succeeded
// pages stay in the batch and their page indices are reported as done so
// a resume never re-requests them. A parent-context cancellation aborts
// the round with the context's error.
func (f *Fetcher) FetchRange(ctx context.Context, path []string, pages []int, batch Batch) (*RangeResult, error) {
	workers := f.Workers
	if workers <= 0 {
		workers = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = gw2api.DefaultPageSize
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu  sync.Mutex
		res = &RangeResult{}
		wg  sync.WaitGroup
	)
	pageCh := make(chan int)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pageCh {
				if ctx.Err() != nil {
					continue
				}
				records, err := f.fetchPage(ctx, path, page, pageSize)
				if err != nil {
					mu.Lock()
					res.Failed = append(res.Failed, page)
					if res.FirstErr == nil {
						res.FirstErr = err
					}
					mu.Unlock()
					f.logger().WithField("page", page).WithError(err).Warn("page fetch failed")
					cancel()
					continue
				}

				skips := 0
				for _, record := range records {
					if addErr := batch.Add(record); addErr != nil {
						var terr *models.TransformError
						if errors.As(addErr, &terr) {
							skips++
							f.logger().WithField("page", page).WithError(addErr).Warn("skipping record")
							continue
						}
						mu.Lock()
						if res.FirstErr == nil {
							res.FirstErr = addErr
						}
						mu.Unlock()
						cancel()
						return
					}
				}

				mu.Lock()
				res.Done = append(res.Done, page)
				res.TransformSkips += skips
				done := len(res.Done)
				mu.Unlock()
				if f.Progress != nil {
					f.Progress("fetch", done, len(pages))
				}
			}
		}()
	}

	for _, page := range pages {
		if ctx.Err() != nil {
			break
		}
		select {
		case pageCh <- page:
		case <-ctx.Done():
		}
	}
	close(pageCh)
	wg.Wait()

	if parent.Err() != nil {
		return nil, parent.Err()
	}
	if res.FirstErr != nil && len(res.Failed) == 0 {
		// a non-transport failure surfaced inside a worker
		return nil, res.FirstErr
	}

	sort.Ints(res.Done)
	sort.Ints(res.Failed)
	return res, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, path []string, page, pageSize int) ([]json.RawMessage, error) {
	payload, err := f.Client.Get(ctx, map[string]string{
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	}, path...)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		// a list endpoint answered with something other than an array
		return nil, &gw2api.TransportError{Err: fmt.Errorf("page %d: decode record list: %w", page, err)}
	}
	return records, nil
}
