package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerhslee/gw2tp/internal/gw2api"
)

// fakeAPI serves a paginated catalog endpoint plus the out-of-range
// probe, with scriptable per-page failures.
type fakeAPI struct {
	maxPage int
	perPage int

	mu        sync.Mutex
	requested map[int]int // page -> request count
	failures  map[int]int // page -> failures left to serve
	srv       *httptest.Server
}

func newFakeAPI(maxPage, perPage int) *fakeAPI {
	f := &fakeAPI{
		maxPage:   maxPage,
		perPage:   perPage,
		requested: map[int]int{},
		failures:  map[int]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeAPI) close() { f.srv.Close() }

func (f *fakeAPI) failPage(page, times int) {
	f.mu.Lock()
	f.failures[page] = times
	f.mu.Unlock()
}

func (f *fakeAPI) requests(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[page]
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page > f.maxPage+1000 {
		// the discovery probe
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"text":"page out of range. Use page values 0 - %d."}`, f.maxPage)
		return
	}

	f.mu.Lock()
	f.requested[page]++
	fail := f.failures[page] > 0
	if fail {
		f.failures[page]--
	}
	f.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	records := make([]string, 0, f.perPage)
	for i := 0; i < f.perPage; i++ {
		id := page*1000 + i + 1
		records = append(records,
			fmt.Sprintf(`{"id":%d,"name":"Item %d","level":1,"rarity":"Basic","type":"MiniPet","icon":"i"}`, id, id))
	}
	fmt.Fprint(w, "["+strings.Join(records, ",")+"]")
}

func (f *fakeAPI) fetcher(workers int) *Fetcher {
	return &Fetcher{
		Client:   gw2api.NewClientWithBase("k", f.srv.URL, "v2"),
		Workers:  workers,
		PageSize: f.perPage,
	}
}

func pages(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}

func TestFetchRangeCleanPass(t *testing.T) {
	api := newFakeAPI(2, 3)
	defer api.close()

	batch := NewItemBatch()
	res, err := api.fetcher(1).FetchRange(context.Background(), []string{"items"}, pages(0, 2), batch)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, res.Done)
	assert.Empty(t, res.Failed)
	assert.NoError(t, res.FirstErr)
	assert.Equal(t, 9, batch.Len())
}

func TestFetchRangeStopsAtFailedPageAndKeepsRecords(t *testing.T) {
	api := newFakeAPI(2, 2)
	defer api.close()
	api.failPage(1, 1)

	batch := NewItemBatch()
	res, err := api.fetcher(1).FetchRange(context.Background(), []string{"items"}, pages(0, 2), batch)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, res.Done)
	assert.Equal(t, []int{1}, res.Failed)
	var terr *gw2api.TransportError
	require.ErrorAs(t, res.FirstErr, &terr)

	// page 0 records survive, page 2 was never dispatched
	assert.Equal(t, 2, batch.Len())
	assert.Equal(t, 0, api.requests(2))
}

func TestFetchRangeConcurrentWorkers(t *testing.T) {
	api := newFakeAPI(9, 5)
	defer api.close()

	batch := NewItemBatch()
	res, err := api.fetcher(4).FetchRange(context.Background(), []string{"items"}, pages(0, 9), batch)
	require.NoError(t, err)

	assert.Equal(t, pages(0, 9), res.Done)
	assert.Equal(t, 50, batch.Len())
	for p := 0; p <= 9; p++ {
		assert.Equal(t, 1, api.requests(p), "page %d", p)
	}
}

func TestFetchRangeCountsTransformSkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// second record has no id and cannot become a row
		fmt.Fprint(w, `[{"id":1,"name":"ok","type":"MiniPet"},{"name":"broken"}]`)
	}))
	defer srv.Close()

	f := &Fetcher{Client: gw2api.NewClientWithBase("k", srv.URL, "v2"), Workers: 1}
	batch := NewItemBatch()
	res, err := f.FetchRange(context.Background(), []string{"items"}, []int{0}, batch)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TransformSkips)
	assert.Equal(t, 1, batch.Len())
	assert.Equal(t, []int{0}, res.Done)
}

func TestFetchRangeNonArrayBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"text":"unexpected object"}`)
	}))
	defer srv.Close()

	f := &Fetcher{Client: gw2api.NewClientWithBase("k", srv.URL, "v2"), Workers: 1}
	res, err := f.FetchRange(context.Background(), []string{"items"}, []int{0}, NewItemBatch())
	require.NoError(t, err)

	assert.Equal(t, []int{0}, res.Failed)
	var terr *gw2api.TransportError
	require.ErrorAs(t, res.FirstErr, &terr)
}

func TestFetchRangeHonorsCancellation(t *testing.T) {
	api := newFakeAPI(5, 1)
	defer api.close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := api.fetcher(1).FetchRange(ctx, []string{"items"}, pages(0, 5), NewItemBatch())
	require.ErrorIs(t, err, context.Canceled)
}

func TestControllerResumesWithoutRefetchingDonePages(t *testing.T) {
	api := newFakeAPI(3, 2)
	defer api.close()
	api.failPage(2, 1)

	batch := NewItemBatch()
	controller := &Controller{Fetcher: api.fetcher(1), Backoff: time.Millisecond}
	report, err := controller.Run(context.Background(), []string{"items"}, batch)
	require.NoError(t, err)

	assert.Equal(t, 3, report.MaxPage)
	assert.Equal(t, 1, report.Retries)
	// merged record set equals a single clean pass: 4 pages x 2 records
	assert.Equal(t, 8, report.Records)

	// pages before the failure were fetched exactly once
	assert.Equal(t, 1, api.requests(0))
	assert.Equal(t, 1, api.requests(1))
	assert.Equal(t, 2, api.requests(2))
}

func TestControllerRetryCeiling(t *testing.T) {
	api := newFakeAPI(1, 1)
	defer api.close()
	api.failPage(0, 100)

	controller := &Controller{Fetcher: api.fetcher(1), MaxRetries: 2, Backoff: time.Millisecond}
	_, err := controller.Run(context.Background(), []string{"items"}, NewItemBatch())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gave up after 2 retries")
	var terr *gw2api.TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestControllerDiscoveryFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"text":"ArenaNet is on fire"}`)
	}))
	defer srv.Close()

	controller := &Controller{
		Fetcher: &Fetcher{Client: gw2api.NewClientWithBase("k", srv.URL, "v2")},
		Backoff: time.Millisecond,
	}
	_, err := controller.Run(context.Background(), []string{"items"}, NewItemBatch())

	var derr *gw2api.DiscoveryError
	require.ErrorAs(t, err, &derr)
}
