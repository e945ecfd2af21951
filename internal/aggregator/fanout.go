package aggregator

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"venuehub/internal/cache"
	"venuehub/internal/normalize"
	"venuehub/internal/provider"
	"venuehub/internal/venue"
)

// clusterRadiusM is how far apart two same-named records can sit and still
// describe one venue. Wider than that is treated as a chain location.
const clusterRadiusM = 150.0

// availableAdapters filters to providers that may be called right now:
// enabled in the registry and not blocked by their breaker.
func (o *Orchestrator) availableAdapters() []provider.Adapter {
	var out []provider.Adapter
	for _, a := range o.adapters {
		cfg, ok := o.registry.Get(a.ID())
		if !ok || !cfg.Enabled {
			continue
		}
		if !a.Available() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// fanOut issues one task per adapter and waits for all to settle. A failed
// provider contributes nothing and its error is recorded; it never cancels
// the siblings or fails the query. Each provider's raw page is cached under
// the raw TTL class, with concurrent identical fetches collapsed.
func (o *Orchestrator) fanOut(
	ctx context.Context,
	adapters []provider.Adapter,
	operation, queryKey string,
	call func(ctx context.Context, a provider.Adapter) ([]venue.RawRecord, error),
) ([]venue.RawRecord, map[string]string) {
	var (
		mu       sync.Mutex
		records  []venue.RawRecord
		failures = make(map[string]string)
	)

	var g errgroup.Group
	for _, a := range adapters {
		g.Go(func() error {
			rawKey := cache.RawKey(a.ID(), operation, queryKey)
			data, _, err := o.cache.GetOrFetch(ctx, rawKey, cache.ClassRaw, []string{cache.ProviderTag(a.ID())},
				func(ctx context.Context) ([]byte, error) {
					recs, err := call(ctx, a)
					if err != nil {
						return nil, err
					}
					return json.Marshal(recs)
				})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[a.ID()] = err.Error()
				return nil
			}
			var recs []venue.RawRecord
			if err := json.Unmarshal(data, &recs); err != nil {
				failures[a.ID()] = "undecodable raw cache entry: " + err.Error()
				return nil
			}
			records = append(records, recs...)
			return nil
		})
	}
	_ = g.Wait() // goroutines always return nil; errors are in failures

	return records, failures
}

// groupRecords clusters the fan-out output into per-venue groups by
// normalized name and proximity. Records without coordinates join the first
// cluster with a matching name.
func groupRecords(records []venue.RawRecord) [][]venue.RawRecord {
	type cluster struct {
		fingerprint string
		seed        venue.Coordinates
		hasSeed     bool
		records     []venue.RawRecord
	}

	var clusters []*cluster
next:
	for _, rec := range records {
		fp := normalize.NameFingerprint(rec.Name)
		for _, c := range clusters {
			if c.fingerprint != fp {
				continue
			}
			if !rec.Coordinates.Present || !c.hasSeed {
				c.records = append(c.records, rec)
				if !c.hasSeed && rec.Coordinates.Present {
					c.seed = rec.Coordinates
					c.hasSeed = true
				}
				continue next
			}
			if venue.DistanceMeters(c.seed, rec.Coordinates) <= clusterRadiusM {
				c.records = append(c.records, rec)
				continue next
			}
		}
		c := &cluster{fingerprint: fp, records: []venue.RawRecord{rec}}
		if rec.Coordinates.Present {
			c.seed = rec.Coordinates
			c.hasSeed = true
		}
		clusters = append(clusters, c)
	}

	groups := make([][]venue.RawRecord, 0, len(clusters))
	for _, c := range clusters {
		groups = append(groups, c.records)
	}
	return groups
}
