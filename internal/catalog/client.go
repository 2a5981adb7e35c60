package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
)

var ErrNotFound = errors.New("catalog entity not found")

// Client reads canteen and menu data from the catalog service. This core only
// reads the catalog: prices are snapshotted into the order at checkout, so
// later catalog changes never touch existing orders.
type Client struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewClient(baseURL string, client *http.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("CATALOG", fmt.Sprintf("GET %s returned status %d", path, resp.StatusCode))
		return fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) GetCanteen(canteenID string) (*models.Canteen, error) {
	var canteen models.Canteen
	if err := c.get("/api/v1/canteens/"+url.PathEscape(canteenID), &canteen); err != nil {
		return nil, err
	}
	return &canteen, nil
}

// GetItems fetches the current menu snapshot for the given items. Items
// missing from the response are simply absent from the map; the pricing
// layer rejects carts that reference them.
func (c *Client) GetItems(canteenID string, itemIDs []string) (map[string]models.MenuItem, error) {
	path := fmt.Sprintf("/api/v1/canteens/%s/items?ids=%s",
		url.PathEscape(canteenID), url.QueryEscape(strings.Join(itemIDs, ",")))

	var items []models.MenuItem
	if err := c.get(path, &items); err != nil {
		return nil, err
	}

	snapshot := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		snapshot[item.ItemID] = item
	}
	return snapshot, nil
}
