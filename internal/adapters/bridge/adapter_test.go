package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/mlsync/internal/adapters"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

func testConfig(baseURL string) listings.ProviderConfig {
	return listings.ProviderConfig{
		ID:      "bridgeway",
		Name:    "Bridgeway Listings",
		Family:  listings.FamilyBridge,
		BaseURL: baseURL,
		Enabled: true,
		Credentials: listings.Credentials{
			Username: "apiuser",
			Password: "apipass",
			ClientID: "portal-7",
		},
		PageSize: 2,
	}
}

const goodRecord = `{
	"mlsNumber": "B900",
	"listPrice": 425000,
	"status": "underContract",
	"description": "Updated townhome near the greenway",
	"address": {"street": "41 Birch Ln", "city": "Boulder", "state": "co", "postalCode": "80302"},
	"details": {"bedrooms": 3, "bathrooms": 2.5, "livingAreaSqFt": 1850, "lotAcres": 0.08, "yearBuilt": 2015, "propertyType": "townhouse"},
	"photos": [
		{"url": "https://cdn.example/1.jpg", "caption": "Street view"},
		{"url": "https://cdn.example/2.jpg", "isPrimary": true}
	],
	"agent": {"id": "AG2", "name": "Sam Ortiz", "phone": "303-555-0100"},
	"office": {"id": "OF1", "name": "Peak Realty"},
	"dates": {"listed": "2024-01-05T00:00:00Z", "updated": "2024-03-10T16:45:00Z"}
}`

func loginHandler(t *testing.T, logins *atomic.Int32, token string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "apiuser", req.Username)
		assert.Equal(t, "apipass", req.Password)
		assert.Equal(t, "portal-7", req.ClientID)
		logins.Add(1)
		fmt.Fprintf(w, `{"token":%q,"expiresIn":%d}`, token, expiresIn)
	}
}

func TestAuthenticateCachesToken(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		loginHandler(t, &logins, "tok-1", 1800)(w, r)
	}))
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))
	require.NoError(t, client.Authenticate(ctx))

	assert.Equal(t, int32(1), logins.Load(), "a fresh token should not be re-requested")
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"message":"invalid credentials"}`)
	}))
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	err = client.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuthError(err))
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := testConfig("http://mls.example")
	cfg.Credentials = listings.Credentials{ClientID: "portal-7"}

	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCredentialsRequired)
}

func TestFetchPage(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(t, &logins, "tok-1", 1800))
	mux.HandleFunc("/api/v2/listings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "2", q.Get("pageSize"))
		fmt.Fprintf(w, `{"success":true,"total":3,"page":1,"pageSize":2,"listings":[%s,{"status":"active"}]}`, goodRecord)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	page, err := client.FetchPage(context.Background(), adapters.PageRequest{Number: 1, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Records, 1, "the record without an mlsNumber is skipped")
	require.Len(t, page.Issues, 1)

	got := page.Records[0]
	assert.Equal(t, "B900", got.MLSID)
	assert.Equal(t, int64(425000), got.Price)
	assert.Equal(t, listings.StatusPending, got.Status)
	assert.Equal(t, listings.PropertyTypeTownhouse, got.PropertyType)
	assert.Equal(t, "CO", got.Address.State)
	assert.Equal(t, 1850, got.SquareFeet)
	assert.Equal(t, time.Date(2024, 3, 10, 16, 45, 0, 0, time.UTC), got.UpdatedAt)

	require.Len(t, got.Media, 2)
	assert.False(t, got.Media[0].Primary)
	assert.True(t, got.Media[1].Primary, "the flagged photo stays primary")
}

func TestFetchPageUpdatedAfter(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(t, &logins, "tok-1", 1800))
	mux.HandleFunc("/api/v2/listings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-02T03:04:05Z", r.URL.Query().Get("updatedAfter"))
		fmt.Fprint(w, `{"success":true,"total":0,"listings":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	page, err := client.FetchPage(context.Background(), adapters.PageRequest{Number: 1, Size: 2, ModifiedSince: &since})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.False(t, page.HasMore)
}

func TestFetchPageEnvelopeFailure(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(t, &logins, "tok-1", 1800))
	mux.HandleFunc("/api/v2/listings", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"feed temporarily disabled"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), adapters.PageRequest{Number: 1, Size: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed temporarily disabled")
}

func TestFetchPageRefreshesRejectedToken(t *testing.T) {
	var (
		logins atomic.Int32
		valid  atomic.Value
	)
	valid.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		tok := fmt.Sprintf("tok-%d", logins.Add(1))
		valid.Store(tok)
		fmt.Fprintf(w, `{"token":%q,"expiresIn":1800}`, tok)
	})
	mux.HandleFunc("/api/v2/listings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"success":false,"message":"token expired"}`)
			return
		}
		fmt.Fprintf(w, `{"success":true,"total":1,"listings":[%s]}`, goodRecord)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))

	// The provider expires the token behind our back.
	valid.Store("revoked")

	page, err := client.FetchPage(ctx, adapters.PageRequest{Number: 1, Size: 2})
	require.NoError(t, err, "an expired token should be refreshed transparently")
	assert.Len(t, page.Records, 1)
	assert.Equal(t, int32(2), logins.Load())
}

func TestPropertyByID(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", loginHandler(t, &logins, "tok-1", 1800))
	mux.HandleFunc("/api/v2/listings/B900", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success":true,"listing":%s}`, goodRecord)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()

	got, err := client.PropertyByID(ctx, "B900")
	require.NoError(t, err)
	assert.Equal(t, "B900", got.MLSID)

	_, err = client.PropertyByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestStatusFromCamel(t *testing.T) {
	tests := []struct {
		status string
		want   listings.ListingStatus
	}{
		{"active", listings.StatusActive},
		{"comingSoon", listings.StatusActive},
		{"pending", listings.StatusPending},
		{"underContract", listings.StatusPending},
		{"sold", listings.StatusSold},
		{"closed", listings.StatusSold},
		{"withdrawn", listings.StatusWithdrawn},
		{"cancelled", listings.StatusWithdrawn},
		{"expired", listings.StatusExpired},
		{"archived", listings.StatusActive},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFromCamel(tt.status), "status %q", tt.status)
	}
}

func TestTypeFromCamel(t *testing.T) {
	tests := []struct {
		in   string
		want listings.PropertyType
	}{
		{"singleFamily", listings.PropertyTypeSingleFamily},
		{"condo", listings.PropertyTypeCondo},
		{"townhome", listings.PropertyTypeTownhouse},
		{"multiFamily", listings.PropertyTypeMultiFamily},
		{"land", listings.PropertyTypeLand},
		{"houseboat", listings.PropertyTypeOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, typeFromCamel(tt.in), "type %q", tt.in)
	}
}

func TestMediaFromPhotosPromotesFirst(t *testing.T) {
	media := mediaFromPhotos([]rawPhoto{
		{URL: "https://cdn.example/1.jpg"},
		{URL: "https://cdn.example/2.jpg"},
	})
	require.Len(t, media, 2)
	assert.True(t, media[0].Primary, "first photo is promoted when none is flagged")
	assert.False(t, media[1].Primary)
}
