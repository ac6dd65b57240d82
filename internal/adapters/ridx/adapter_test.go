package ridx

import (
	"context"
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
		ID:      "metro-mls",
		Name:    "Metro MLS",
		Family:  listings.FamilyRIDX,
		BaseURL: baseURL,
		Enabled: true,
		Credentials: listings.Credentials{
			Username: "feeduser",
			Password: "feedpass",
		},
		PageSize: 2,
	}
}

const goodRecord = `{
	"L_ListingID": "R100",
	"L_Class": "RES",
	"L_Status": "A",
	"L_AskingPrice": 250000,
	"L_Address": "123 Main St",
	"L_City": "Springfield",
	"L_State": "il",
	"L_Zip": "62704",
	"L_Bedrooms": 3,
	"L_Bathrooms": 2,
	"L_SquareFeet": 1400,
	"L_LotAcres": 0.25,
	"L_YearBuilt": 1999,
	"L_Remarks": "Tidy ranch close to schools",
	"L_ListingDate": "2024-03-01 09:30:00",
	"L_UpdateDate": "2024-04-02 10:00:00",
	"L_AgentID": "AG7",
	"L_AgentName": "Pat Lee",
	"L_PhotoURLs": "https://img.example/1.jpg, https://img.example/2.jpg"
}`

func loginHandler(logins *atomic.Int32, session string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, MaxAge: 1800})
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthenticateCachesSession(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "feeduser", r.FormValue("username"))
		assert.Equal(t, "feedpass", r.FormValue("password"))
		loginHandler(&logins, "sess-1")(w, r)
	}))
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))
	require.NoError(t, client.Authenticate(ctx))

	assert.Equal(t, int32(1), logins.Load(), "second authenticate should reuse the cached session")
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad credentials"}`)
	}))
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	err = client.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuthError(err))
}

func TestAuthenticateNoCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	err = client.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCredentialsInvalid)
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := testConfig("http://mls.example")
	cfg.Credentials = listings.Credentials{}

	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCredentialsRequired)
}

func TestFetchPage(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", loginHandler(&logins, "sess-1"))
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(sessionCookie)
		if err != nil || ck.Value != "sess-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `{"TotalCount":5,"Listings":[%s,{"L_Class":"RES"},{"L_ListingID":"R101","L_Status":"S","L_SoldDate":"2024-05-01"}]}`, goodRecord)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	page, err := client.FetchPage(context.Background(), adapters.PageRequest{Number: 1, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Records, 2, "the record without a listing id is skipped")
	require.Len(t, page.Issues, 1)

	got := page.Records[0]
	assert.Equal(t, "R100", got.MLSID)
	assert.Equal(t, listings.ProviderID("metro-mls"), got.ProviderID)
	assert.Equal(t, "IL", got.Address.State)
	assert.Equal(t, int64(250000), got.Price)
	assert.Equal(t, listings.PropertyTypeSingleFamily, got.PropertyType)
	assert.Equal(t, listings.StatusActive, got.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), got.ListedAt)
	require.Len(t, got.Media, 2)
	assert.True(t, got.Media[0].Primary)
	assert.False(t, got.Media[1].Primary)

	sold := page.Records[1]
	assert.Equal(t, listings.StatusSold, sold.Status)
	require.NotNil(t, sold.SoldAt)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *sold.SoldAt)
}

func TestFetchPageReloginOnExpiredSession(t *testing.T) {
	var (
		logins atomic.Int32
		valid  atomic.Value
	)
	valid.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		sess := fmt.Sprintf("sess-%d", logins.Add(1))
		valid.Store(sess)
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sess, MaxAge: 1800})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(sessionCookie)
		if err != nil || ck.Value != valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"session expired"}`)
			return
		}
		fmt.Fprintf(w, `{"TotalCount":1,"Listings":[%s]}`, goodRecord)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx))

	// The provider drops the session behind our back.
	valid.Store("revoked")

	page, err := client.FetchPage(ctx, adapters.PageRequest{Number: 1, Size: 2})
	require.NoError(t, err, "a stale session should be refreshed transparently")
	assert.Len(t, page.Records, 1)
	assert.Equal(t, int32(2), logins.Load())
}

func TestPropertyByID(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login", loginHandler(&logins, "sess-1"))
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("listing_id") == "R100" {
			fmt.Fprintf(w, `{"TotalCount":1,"Listings":[%s]}`, goodRecord)
			return
		}
		fmt.Fprint(w, `{"TotalCount":0,"Listings":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	ctx := context.Background()

	got, err := client.PropertyByID(ctx, "R100")
	require.NoError(t, err)
	assert.Equal(t, "R100", got.MLSID)

	_, err = client.PropertyByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestClassToType(t *testing.T) {
	tests := []struct {
		code string
		want listings.PropertyType
	}{
		{"RES", listings.PropertyTypeSingleFamily},
		{"res", listings.PropertyTypeSingleFamily},
		{"CND", listings.PropertyTypeCondo},
		{"TWN", listings.PropertyTypeTownhouse},
		{"MUL", listings.PropertyTypeMultiFamily},
		{"LND", listings.PropertyTypeLand},
		{"COMM", listings.PropertyTypeOther},
		{"", listings.PropertyTypeOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classToType(tt.code), "code %q", tt.code)
	}
}

func TestCodeToStatus(t *testing.T) {
	tests := []struct {
		code string
		want listings.ListingStatus
	}{
		{"A", listings.StatusActive},
		{"P", listings.StatusPending},
		{"S", listings.StatusSold},
		{"W", listings.StatusWithdrawn},
		{"X", listings.StatusExpired},
		{"Z", listings.StatusActive},
		{"", listings.StatusActive},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, codeToStatus(tt.code), "code %q", tt.code)
	}
}

func TestParseLegacyTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"datetime", "2024-03-01 09:30:00", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), false},
		{"rfc3339", "2024-03-01T09:30:00Z", time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), false},
		{"date only", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"empty", "", time.Time{}, false},
		{"garbage", "03/01/2024", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLegacyTime(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestMediaFromPhotoList(t *testing.T) {
	media := mediaFromPhotoList(" https://a.example/1.jpg ,, https://a.example/2.jpg")
	require.Len(t, media, 2)
	assert.Equal(t, "https://a.example/1.jpg", media[0].URL)
	assert.True(t, media[0].Primary)
	assert.False(t, media[1].Primary)

	assert.Nil(t, mediaFromPhotoList("  "))
}
