package gw2api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInjectsCredentialAndJoinsPath(t *testing.T) {
	var gotPath, gotKey, gotIDs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apikey")
		gotIDs = r.URL.Query().Get("ids")
		fmt.Fprint(w, `[{"id":811},{"id":421}]`)
	}))
	defer srv.Close()

	client := NewClientWithBase("secret", srv.URL, "v2")
	payload, err := client.Get(context.Background(), map[string]string{"ids": "811,421"}, "commerce", "prices")
	require.NoError(t, err)

	assert.Equal(t, "/v2/commerce/prices", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "811,421", gotIDs)
	assert.JSONEq(t, `[{"id":811},{"id":421}]`, string(payload))
}

func TestGetNonSuccessStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClientWithBase("k", srv.URL, "v2")
	_, err := client.Get(context.Background(), nil, "items")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
}

func TestGetMalformedBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"truncated":`)
	}))
	defer srv.Close()

	client := NewClientWithBase("k", srv.URL, "v2")
	_, err := client.Get(context.Background(), nil, "items")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestGetNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClientWithBase("k", srv.URL, "v2")
	_, err := client.Get(context.Background(), nil, "items")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Error(t, errors.Unwrap(terr))
}

func TestMaxPageParsesRangeFromErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9999", r.URL.Query().Get("page"))
		assert.Equal(t, "200", r.URL.Query().Get("page_size"))
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"text":"page out of range. Use page values 0 - 181."}`)
	}))
	defer srv.Close()

	client := NewClientWithBase("k", srv.URL, "v2")
	max, err := client.MaxPage(context.Background(), "items")
	require.NoError(t, err)
	assert.Equal(t, 181, max)
}

func TestMaxPageUnparsableTextIsDiscoveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"text":"no such endpoint"}`)
	}))
	defer srv.Close()

	client := NewClientWithBase("k", srv.URL, "v2")
	_, err := client.MaxPage(context.Background(), "items")

	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "items", derr.Endpoint)
}

func TestMaxPageNonJSONBodyIsDiscoveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway timeout</html>`)
	}))
	defer srv.Close()

	client := NewClientWithBase("k", srv.URL, "v2")
	_, err := client.MaxPage(context.Background(), "items")

	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
}
