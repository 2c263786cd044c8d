// Package marketprovider реализует клиент карточного API Wildberries:
// по артикулу возвращает текущую цену, суммарный остаток и рейтинг.
package marketprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/magabrotheeeer/marketplace-analytics/internal/models"
)

// Client клиент карточного API маркетплейса.
type Client struct {
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент карточного API.
func NewClient(apiURL string, timeout time.Duration) *Client {
	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot запрашивает карточку товара и возвращает снапшот его
// текущего состояния. Любой сбой запроса или пустой ответ оборачивается
// в models.ErrFetchFailed, сохранённый снапшот при этом не трогается.
func (c *Client) FetchSnapshot(ctx context.Context, itemID string) (models.Snapshot, error) {
	const op = "marketprovider.FetchSnapshot"

	reqURL := fmt.Sprintf("%s?appType=1&curr=rub&dest=-1257786&nm=%s",
		c.apiURL, url.QueryEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w: %w", op, models.ErrFetchFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w: %w", op, models.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Snapshot{}, fmt.Errorf("%s: %w: unexpected status %s",
			op, models.ErrFetchFailed, resp.Status)
	}

	var card cardResponse
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w: %w", op, models.ErrFetchFailed, err)
	}
	if len(card.Data.Products) == 0 {
		return models.Snapshot{}, fmt.Errorf("%s: %w: item %s not found",
			op, models.ErrFetchFailed, itemID)
	}

	product := card.Data.Products[0]
	return models.Snapshot{
		Price:      product.SalePriceU / 100,
		Stock:      product.totalStock(),
		Rating:     product.ReviewRating,
		CapturedAt: time.Now(),
	}, nil
}
