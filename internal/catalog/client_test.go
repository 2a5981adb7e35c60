package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-ordering/internal/catalog"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *catalog.Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return catalog.NewClient(server.URL, &http.Client{Timeout: 2 * time.Second}, logger.NewLogger())
}

func TestGetCanteen(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/canteens/cant_1", r.URL.Path)
		json.NewEncoder(w).Encode(models.Canteen{
			CanteenID: "cant_1",
			Name:      "North Mess",
			Open:      true,
			Approved:  true,
		})
	})

	canteen, err := client.GetCanteen("cant_1")
	require.NoError(t, err)
	assert.Equal(t, "North Mess", canteen.Name)
	assert.True(t, canteen.Open)
}

func TestGetCanteenNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.GetCanteen("cant_missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/canteens/cant_1/items", r.URL.Path)
		assert.Equal(t, "item_a,item_b", r.URL.Query().Get("ids"))
		json.NewEncoder(w).Encode([]models.MenuItem{
			{ItemID: "item_a", CanteenID: "cant_1", Name: "Masala Dosa", Price: 60.0, Stock: 20},
			{ItemID: "item_b", CanteenID: "cant_1", Name: "Filter Coffee", Price: 25.0, Stock: 50},
		})
	})

	items, err := client.GetItems("cant_1", []string{"item_a", "item_b"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 60.0, items["item_a"].Price)
	assert.Equal(t, "Filter Coffee", items["item_b"].Name)
}

func TestGetItemsPartialResponse(t *testing.T) {
	// An unknown id is simply absent from the snapshot, not an error here.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.MenuItem{
			{ItemID: "item_a", CanteenID: "cant_1", Name: "Masala Dosa", Price: 60.0, Stock: 20},
		})
	})

	items, err := client.GetItems("cant_1", []string{"item_a", "item_ghost"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	_, ok := items["item_ghost"]
	assert.False(t, ok)
}

func TestGetCanteenServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetCanteen("cant_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNotFound)
}
