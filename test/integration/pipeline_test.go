// Package integration exercises the full pipeline through the public
// client: real adapters against fake provider servers, ingest,
// cross-provider duplicate detection, resolution, and persistence.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/mlsync"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/listings/files"
)

// Metro (RIDX) serves three listings over two pages. R100 is the same
// house K900 describes on the coastal feed, down to a street-suffix
// spelling and a small price drift.
const (
	metroR100 = `{
		"L_ListingID": "R100", "L_Class": "RES", "L_Status": "A",
		"L_AskingPrice": 250000,
		"L_Address": "123 Main St", "L_City": "Springfield", "L_State": "IL", "L_Zip": "62704",
		"L_Bedrooms": 3, "L_Bathrooms": 2, "L_SquareFeet": 1500, "L_YearBuilt": 1999,
		"L_Remarks": "Tidy ranch close to schools",
		"L_ListingDate": "2024-03-01 09:30:00", "L_UpdateDate": "2024-04-02 10:00:00",
		"L_AgentName": "Pat Lee",
		"L_PhotoURLs": "https://img.metro.example/r100-1.jpg"
	}`
	metroR101 = `{
		"L_ListingID": "R101", "L_Class": "RES", "L_Status": "A",
		"L_AskingPrice": 180000,
		"L_Address": "400 Oak Avenue", "L_City": "Peoria", "L_State": "IL", "L_Zip": "61602",
		"L_Bedrooms": 2, "L_Bathrooms": 1, "L_SquareFeet": 950, "L_YearBuilt": 1962,
		"L_ListingDate": "2024-01-15 08:00:00", "L_UpdateDate": "2024-03-20 16:45:00"
	}`
	metroR102 = `{
		"L_ListingID": "R102", "L_Class": "RES", "L_Status": "P",
		"L_AskingPrice": 725000,
		"L_Address": "77 Birch Lane", "L_City": "Naperville", "L_State": "IL", "L_Zip": "60540",
		"L_Bedrooms": 5, "L_Bathrooms": 4, "L_SquareFeet": 4100, "L_YearBuilt": 2015,
		"L_ListingDate": "2024-02-10 11:00:00", "L_UpdateDate": "2024-04-01 09:15:00"
	}`

	coastalK900 = `{
		"ListingKey": "K900",
		"StandardStatus": "Active",
		"PropertyType": "Residential",
		"PropertySubType": "Single Family Residence",
		"ListPrice": 252000,
		"UnparsedAddress": "123 Main Street",
		"City": "Springfield", "StateOrProvince": "IL", "PostalCode": "62704",
		"BedroomsTotal": 3, "BathroomsTotalDecimal": 2,
		"LivingArea": 1520, "YearBuilt": 1999,
		"PublicRemarks": "Updated ranch near downtown",
		"ListAgentFullName": "Dana Ortiz",
		"ListingContractDate": "2024-03-05",
		"ModificationTimestamp": "2024-04-10T08:00:00Z",
		"Media": [{"MediaURL": "https://img.coastal.example/k900-1.jpg", "Order": 1}]
	}`

	sunbeltB550 = `{
		"mlsNumber": "B-550",
		"listPrice": 640000,
		"status": "active",
		"description": "Corner lot near the river trail",
		"address": {"street": "901 Rio Grande Blvd", "city": "Austin", "state": "TX", "postalCode": "78701"},
		"details": {"bedrooms": 4, "bathrooms": 3, "livingAreaSqFt": 2600, "yearBuilt": 2008, "propertyType": "singleFamily"},
		"photos": [{"url": "https://img.sunbelt.example/b550-1.jpg", "isPrimary": true}],
		"dates": {"listed": "2024-02-20T00:00:00Z", "updated": "2024-04-05T12:00:00Z"}
	}`
)

// metroServer fakes a RIDX gateway: form login issuing a session
// cookie, cookie-gated search, two pages of listings.
func metroServer(t *testing.T, logins *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("username") != "metrouser" || r.FormValue("password") != "metropass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "RIDX-Session", Value: "sess-metro", MaxAge: 1800})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("RIDX-Session")
		if err != nil || ck.Value != "sess-metro" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"TotalCount":3,"Listings":[%s,%s]}`, metroR100, metroR101)
		case "2":
			fmt.Fprintf(w, `{"TotalCount":3,"Listings":[%s]}`, metroR102)
		default:
			fmt.Fprint(w, `{"TotalCount":3,"Listings":[]}`)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// coastalServer fakes a RESO Web API: client-credentials token
// endpoint, bearer-gated OData property collection.
func coastalServer(t *testing.T, tokens *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "coastal-id" || secret != "coastal-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		tokens.Add(1)
		fmt.Fprint(w, `{"access_token":"tok-coastal","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/Property", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-coastal" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"@odata.count":1,"value":[%s]}`, coastalK900)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// sunbeltServer fakes a Bridge gateway: JSON login issuing an access
// token, token-gated nested listing payloads.
func sunbeltServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":"tok-sunbelt","expiresIn":3600}`)
	})
	mux.HandleFunc("/api/v2/listings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != "tok-sunbelt" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"success":true,"total":1,"page":1,"pageSize":100,"listings":[%s]}`, sunbeltB550)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func metroConfig(baseURL string) listings.ProviderConfig {
	return listings.ProviderConfig{
		ID:      "metro",
		Name:    "Metro Regional MLS",
		Family:  listings.FamilyRIDX,
		BaseURL: baseURL,
		Enabled: true,
		Credentials: listings.Credentials{
			Username: "metrouser",
			Password: "metropass",
		},
		PageSize: 2,
	}
}

func coastalConfig(baseURL string) listings.ProviderConfig {
	return listings.ProviderConfig{
		ID:      "coastal",
		Name:    "Coastal Board of Realtors",
		Family:  listings.FamilyRESO,
		BaseURL: baseURL,
		Enabled: true,
		Credentials: listings.Credentials{
			ClientID:     "coastal-id",
			ClientSecret: "coastal-secret",
		},
	}
}

func sunbeltConfig(baseURL string) listings.ProviderConfig {
	return listings.ProviderConfig{
		ID:      "sunbelt",
		Name:    "Sunbelt Listing Exchange",
		Family:  listings.FamilyBridge,
		BaseURL: baseURL,
		Enabled: true,
		Credentials: listings.Credentials{
			Username: "sunbeltuser",
			Password: "sunbeltpass",
		},
	}
}

func TestPipelineAcrossProviders(t *testing.T) {
	var logins, tokens atomic.Int32
	metro := metroConfig(metroServer(t, &logins).URL)
	coastal := coastalConfig(coastalServer(t, &tokens).URL)
	sunbelt := sunbeltConfig(sunbeltServer(t).URL)

	client, err := mlsync.New(mlsync.WithProviders(metro, coastal, sunbelt))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, client.Close()) })

	var added atomic.Int32
	client.OnPropertyAdded(func(listings.Property) { added.Add(1) })

	ctx := context.Background()
	opts := listings.SyncOptions{FullSync: true, ValidateData: true}

	metroRun, err := client.Sync(ctx, "metro", opts)
	require.NoError(t, err)
	require.Equal(t, listings.RunStatusCompleted, metroRun.Status)
	assert.Equal(t, 3, metroRun.Counters.Processed)
	assert.Equal(t, 3, metroRun.Counters.Created)
	assert.Equal(t, 0, metroRun.Counters.Failed)
	assert.Equal(t, int32(1), logins.Load(), "one login should cover both search pages")

	coastalRun, err := client.Sync(ctx, "coastal", opts)
	require.NoError(t, err)
	require.Equal(t, listings.RunStatusCompleted, coastalRun.Status)
	assert.Equal(t, 1, coastalRun.Counters.Created)
	assert.Equal(t, 1, coastalRun.Counters.Duplicates,
		"the coastal record should match the metro record already in the catalog")
	assert.Equal(t, int32(1), tokens.Load())

	sunbeltRun, err := client.Sync(ctx, "sunbelt", opts)
	require.NoError(t, err)
	require.Equal(t, listings.RunStatusCompleted, sunbeltRun.Status)
	assert.Equal(t, 1, sunbeltRun.Counters.Created)
	assert.Equal(t, 0, sunbeltRun.Counters.Duplicates)

	count, err := client.Catalog().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, int32(5), added.Load())
	assert.Len(t, client.Runs(), 3)

	candidates, err := client.Duplicates(ctx, false)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	cand := candidates[0]
	assert.GreaterOrEqual(t, cand.Confidence, 0.95)
	assert.Equal(t, listings.ActionMerge, cand.SuggestedAction)
	assert.ElementsMatch(t,
		[]string{"metro/R100", "coastal/K900"},
		[]string{cand.Source.Key(), cand.Target.Key()})
	require.NotNil(t, cand.Merged)

	resolved, err := client.ResolveDuplicate(ctx, cand.ID, listings.ActionMerge)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, listings.ActionMerge, resolved.ResolvedAction)

	count, err = client.Catalog().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "the merge should collapse the pair into one record")

	// The coastal side is newer, so the merge is keyed on it and the
	// metro side is retired.
	survivor, err := client.Catalog().Property(ctx, "coastal", "K900")
	require.NoError(t, err)
	assert.Len(t, survivor.Media, 2, "merged media should union both feeds' photos")
	assert.Equal(t, "Dana Ortiz", survivor.Agent.Name)

	_, err = client.Catalog().Property(ctx, "metro", "R100")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	remaining, err := client.Duplicates(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPipelineSavesAndReloads(t *testing.T) {
	dir := t.TempDir()

	store, err := files.New(dir)
	require.NoError(t, err)

	sunbelt := sunbeltConfig(sunbeltServer(t).URL)
	client, err := mlsync.New(mlsync.WithStore(store), mlsync.WithProviders(sunbelt))
	require.NoError(t, err)

	ctx := context.Background()
	run, err := client.Sync(ctx, "sunbelt", listings.SyncOptions{FullSync: true})
	require.NoError(t, err)
	require.Equal(t, listings.RunStatusCompleted, run.Status)

	require.NoError(t, client.Save(ctx))
	require.NoError(t, client.Close())

	reloaded, err := files.New(dir)
	require.NoError(t, err)

	got, err := reloaded.Property(ctx, "sunbelt", "B-550")
	require.NoError(t, err)
	assert.Equal(t, "901 Rio Grande Blvd", got.Address.Street)
	assert.Equal(t, int64(640000), got.Price)
	assert.Equal(t, listings.PropertyTypeSingleFamily, got.PropertyType)

	count, err := reloaded.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
