// Package foursquare adapts the Foursquare Places API. Its native rating is
// on a 0 to 10 scale and is rescaled to the canonical 0 to 5 at record
// construction; price is already the canonical 1 to 4 tier.
package foursquare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"venuehub/internal/normalize"
	"venuehub/internal/provider"
	"venuehub/internal/registry"
	"venuehub/internal/venue"
)

const (
	nativeRatingMax    = 10
	defaultSearchLimit = 20
)

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

type place struct {
	FsqID      string  `json:"fsq_id"`
	Name       string  `json:"name"`
	Rating     float64 `json:"rating"`
	Price      int     `json:"price"`
	Tel        string  `json:"tel"`
	Website    string  `json:"website"`
	Descr      string  `json:"description"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Geocodes struct {
		Main struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
	Location struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"location"`
	Stats struct {
		TotalRatings int `json:"total_ratings"`
	} `json:"stats"`
	Hours struct {
		Display string `json:"display"`
	} `json:"hours"`
	Features []string `json:"features"`
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

func (a *Adapter) Search(ctx context.Context, query venue.SearchQuery) ([]venue.RawRecord, error) {
	params := url.Values{}
	if query.Term != "" {
		params.Set("query", query.Term)
	}
	if query.HasLoc {
		params.Set("ll", fmt.Sprintf("%f,%f", query.Lat, query.Lng))
		if query.RadiusM > 0 {
			params.Set("radius", strconv.Itoa(query.RadiusM))
		}
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
	params.Set("ll", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", strconv.Itoa(radiusM))
	params.Set("limit", strconv.Itoa(defaultSearchLimit))

	return a.search(ctx, params)
}

func (a *Adapter) search(ctx context.Context, params url.Values) ([]venue.RawRecord, error) {
	u, err := a.client.BuildURL("/v3/places/search", params)
	if err != nil {
		return nil, fmt.Errorf("build search URL: %w", err)
	}

	var resp searchResponse
	if err := a.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	records := make([]venue.RawRecord, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var p place
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		records = append(records, a.toRecord(p, raw))
	}
	return records, nil
}

func (a *Adapter) Details(ctx context.Context, externalID string) (*venue.RawRecord, error) {
	u, err := a.client.BuildURL("/v3/places/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, fmt.Errorf("build details URL: %w", err)
	}

	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, u, &raw); err != nil {
		return nil, err
	}
	var p place
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, provider.NewError(provider.ErrorData, a.cfg.ID, "malformed place payload", err)
	}
	rec := a.toRecord(p, raw)
	return &rec, nil
}

func (a *Adapter) toRecord(p place, raw json.RawMessage) venue.RawRecord {
	rec := venue.RawRecord{
		Source:      a.cfg.ID,
		ExternalID:  p.FsqID,
		Name:        p.Name,
		Address:     p.Location.FormattedAddress,
		Rating:      normalize.ScaleRating(p.Rating, nativeRatingMax),
		ReviewCount: p.Stats.TotalRatings,
		Phone:       p.Tel,
		Website:     p.Website,
		Description: p.Descr,
		Features:    p.Features,
		RawPayload:  raw,
		FetchedAt:   a.now(),
	}
	if p.Geocodes.Main.Latitude != 0 || p.Geocodes.Main.Longitude != 0 {
		rec.Coordinates = venue.Coordinates{
			Lat:     p.Geocodes.Main.Latitude,
			Lng:     p.Geocodes.Main.Longitude,
			Present: true,
		}
	}
	if len(p.Categories) > 0 {
		rec.Category = p.Categories[0].Name
		for _, c := range p.Categories[1:] {
			rec.Features = append(rec.Features, c.Name)
		}
	}
	if p.Price >= 1 && p.Price <= 4 {
		rec.PriceLevel = p.Price
	}
	if p.Hours.Display != "" {
		rec.Hours = map[string]string{"display": p.Hours.Display}
	}
	return rec
}
