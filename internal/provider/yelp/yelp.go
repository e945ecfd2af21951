// Package yelp adapts the Yelp Fusion business API. Ratings are already on
// the canonical 0 to 5 scale; price arrives as a dollar-sign run and is
// converted at record construction.
package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"venuehub/internal/normalize"
	"venuehub/internal/provider"
	"venuehub/internal/registry"
	"venuehub/internal/venue"
)

const defaultSearchLimit = 20

type Adapter struct {
	cfg    registry.ProviderConfig
	client *provider.Client
	now    func() time.Time
}

func New(cfg registry.ProviderConfig) *Adapter {
	return &Adapter{cfg: cfg, client: provider.NewClient(cfg), now: time.Now}
}

func (a *Adapter) ID() string {
	return a.cfg.ID
}

type business struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Price       string   `json:"price"`
	Phone       string   `json:"phone"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"image_url"`
	Categories  []struct {
		Alias string `json:"alias"`
		Title string `json:"title"`
	} `json:"categories"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

type searchResponse struct {
	Businesses []json.RawMessage `json:"businesses"`
}

func (a *Adapter) Search(ctx context.Context, query venue.SearchQuery) ([]venue.RawRecord, error) {
	params := url.Values{}
	if query.Term != "" {
		params.Set("term", query.Term)
	}
	if query.HasLoc {
		params.Set("latitude", strconv.FormatFloat(query.Lat, 'f', -1, 64))
		params.Set("longitude", strconv.FormatFloat(query.Lng, 'f', -1, 64))
		if query.RadiusM > 0 {
			params.Set("radius", strconv.Itoa(query.RadiusM))
		}
	}
	if len(query.Categories) > 0 {
		params.Set("categories", strings.Join(query.Categories, ","))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params.Set("limit", strconv.Itoa(limit))

	return a.search(ctx, params)
}

func (a *Adapter) ByLocation(ctx context.Context, lat, lng float64, radiusM int) ([]venue.RawRecord, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(radiusM))
	params.Set("limit", strconv.Itoa(defaultSearchLimit))

	return a.search(ctx, params)
}

func (a *Adapter) search(ctx context.Context, params url.Values) ([]venue.RawRecord, error) {
	u, err := a.client.BuildURL("/v3/businesses/search", params)
	if err != nil {
		return nil, fmt.Errorf("build search URL: %w", err)
	}

	var resp searchResponse
	if err := a.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	records := make([]venue.RawRecord, 0, len(resp.Businesses))
	for _, raw := range resp.Businesses {
		var b business
		if err := json.Unmarshal(raw, &b); err != nil {
			// One malformed business drops that record, not the page.
			continue
		}
		records = append(records, a.toRecord(b, raw))
	}
	return records, nil
}

func (a *Adapter) Details(ctx context.Context, externalID string) (*venue.RawRecord, error) {
	u, err := a.client.BuildURL("/v3/businesses/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, fmt.Errorf("build details URL: %w", err)
	}

	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, u, &raw); err != nil {
		return nil, err
	}
	var b business
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, provider.NewError(provider.ErrorData, a.cfg.ID, "malformed business payload", err)
	}
	rec := a.toRecord(b, raw)
	return &rec, nil
}

func (a *Adapter) toRecord(b business, raw json.RawMessage) venue.RawRecord {
	rec := venue.RawRecord{
		Source:      a.cfg.ID,
		ExternalID:  b.ID,
		Name:        b.Name,
		Address:     strings.Join(b.Location.DisplayAddress, ", "),
		Rating:      normalize.ClampRating(b.Rating),
		ReviewCount: b.ReviewCount,
		Phone:       b.Phone,
		Website:     b.URL,
		RawPayload:  raw,
		FetchedAt:   a.now(),
	}
	if b.Coordinates.Latitude != 0 || b.Coordinates.Longitude != 0 {
		rec.Coordinates = venue.Coordinates{
			Lat:     b.Coordinates.Latitude,
			Lng:     b.Coordinates.Longitude,
			Present: true,
		}
	}
	if len(b.Categories) > 0 {
		rec.Category = b.Categories[0].Title
		for _, c := range b.Categories[1:] {
			rec.Features = append(rec.Features, c.Title)
		}
	}
	if price, err := normalize.ParsePriceSymbol(b.Price); err == nil {
		rec.PriceLevel = price
	}
	if b.ImageURL != "" {
		rec.ImageURLs = []string{b.ImageURL}
	}
	return rec
}
