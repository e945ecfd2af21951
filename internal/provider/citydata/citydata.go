// Package citydata adapts a municipal open-data venue feed. The endpoint is
// public, carries no ratings or pricing, and returns coordinates as strings,
// so records from this source mostly corroborate identity fields.
package citydata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"venuehub/internal/provider"
	"venuehub/internal/registry"
	"venuehub/internal/venue"
)

const defaultSearchLimit = 50

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

type listing struct {
	BusinessID string `json:"business_id"`
	Name       string `json:"business_name"`
	Address    string `json:"address"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	Category   string `json:"category"`
	Phone      string `json:"phone"`
	Website    string `json:"website"`
}

func (a *Adapter) Search(ctx context.Context, query venue.SearchQuery) ([]venue.RawRecord, error) {
	params := url.Values{}
	if query.Term != "" {
		params.Set("$q", query.Term)
	}
	if query.HasLoc && query.RadiusM > 0 {
		params.Set("$where", withinCircle(query.Lat, query.Lng, query.RadiusM))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params.Set("$limit", strconv.Itoa(limit))

	return a.fetch(ctx, params)
}

func (a *Adapter) ByLocation(ctx context.Context, lat, lng float64, radiusM int) ([]venue.RawRecord, error) {
	params := url.Values{}
	params.Set("$where", withinCircle(lat, lng, radiusM))
	params.Set("$limit", strconv.Itoa(defaultSearchLimit))

	return a.fetch(ctx, params)
}

func (a *Adapter) Details(ctx context.Context, externalID string) (*venue.RawRecord, error) {
	params := url.Values{}
	params.Set("business_id", externalID)
	params.Set("$limit", "1")

	records, err := a.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, provider.NewError(provider.ErrorClient, a.cfg.ID, "no listing for id", provider.ErrNotFound)
	}
	return &records[0], nil
}

func (a *Adapter) fetch(ctx context.Context, params url.Values) ([]venue.RawRecord, error) {
	u, err := a.client.BuildURL("/resource/venues.json", params)
	if err != nil {
		return nil, fmt.Errorf("build URL: %w", err)
	}

	var rows []json.RawMessage
	if err := a.client.GetJSON(ctx, u, &rows); err != nil {
		return nil, err
	}

	records := make([]venue.RawRecord, 0, len(rows))
	for _, raw := range rows {
		var l listing
		if err := json.Unmarshal(raw, &l); err != nil {
			continue
		}
		records = append(records, a.toRecord(l, raw))
	}
	return records, nil
}

func (a *Adapter) toRecord(l listing, raw json.RawMessage) venue.RawRecord {
	rec := venue.RawRecord{
		Source:     a.cfg.ID,
		ExternalID: l.BusinessID,
		Name:       l.Name,
		Address:    l.Address,
		Category:   l.Category,
		Phone:      l.Phone,
		Website:    l.Website,
		RawPayload: raw,
		FetchedAt:  a.now(),
	}
	lat, latErr := strconv.ParseFloat(l.Latitude, 64)
	lng, lngErr := strconv.ParseFloat(l.Longitude, 64)
	if latErr == nil && lngErr == nil {
		rec.Coordinates = venue.Coordinates{Lat: lat, Lng: lng, Present: true}
	}
	return rec
}

// withinCircle renders the SoQL geo filter used by open-data portals.
func withinCircle(lat, lng float64, radiusM int) string {
	return fmt.Sprintf("within_circle(location, %f, %f, %d)", lat, lng, radiusM)
}
