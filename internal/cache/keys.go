package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"venuehub/internal/venue"
)

// Key namespaces. Tag names reuse these so a provider's cached results can
// be flushed wholesale after a configuration reload.
const (
	prefixSearch = "search:"
	prefixVenue  = "venue:"
	prefixGeo    = "geo:"
	prefixRaw    = "raw:"
)

// SearchKey fingerprints a search query. Category order is irrelevant, so
// categories are sorted before hashing.
func SearchKey(q venue.SearchQuery) string {
	cats := append([]string(nil), q.Categories...)
	sort.Strings(cats)

	var b strings.Builder
	fmt.Fprintf(&b, "term=%s", strings.ToLower(strings.TrimSpace(q.Term)))
	if q.HasLoc {
		fmt.Fprintf(&b, "|loc=%s,%s,%d", roundCoord(q.Lat), roundCoord(q.Lng), q.RadiusM)
	}
	fmt.Fprintf(&b, "|cats=%s|limit=%d|offset=%d|sort=%s",
		strings.Join(cats, ","), q.Limit, q.Offset, q.SortBy)

	return prefixSearch + fingerprint(b.String())
}

// VenueKey addresses one canonical venue by id.
func VenueKey(id string) string {
	return prefixVenue + id
}

// GeoKey fingerprints a by-location query. Coordinates are rounded to three
// decimals (~100m) and the radius to the nearest meter so near-duplicate
// queries share an entry instead of fragmenting the cache.
func GeoKey(lat, lng float64, radiusM int) string {
	return prefixGeo + fingerprint(fmt.Sprintf("%s,%s,%d", roundCoord(lat), roundCoord(lng), radiusM))
}

// RawKey addresses one provider's unmerged response for an operation.
func RawKey(providerID, operation, fingerprintable string) string {
	return prefixRaw + providerID + ":" + operation + ":" + fingerprint(fingerprintable)
}

// ProviderTag is the invalidation tag attached to everything cached from one
// provider.
func ProviderTag(providerID string) string {
	return "provider:" + providerID
}

func roundCoord(v float64) string {
	return fmt.Sprintf("%.3f", math.Round(v*1000)/1000)
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
