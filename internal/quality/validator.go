// Package quality scores canonical venues after merging. Findings are
// advisory response metadata and never block a result from being returned.
package quality

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"venuehub/internal/normalize"
	"venuehub/internal/venue"
)

// Severity classifies how actionable a finding is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single validation finding against one field.
type Issue struct {
	Field        string   `json:"field"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Report is the full validation outcome for one canonical venue.
type Report struct {
	Score        float64            `json:"score"`
	Completeness float64            `json:"completeness"`
	Consistency  float64            `json:"consistency"`
	Confidence   float64            `json:"confidence"`
	FieldScores  map[string]float64 `json:"field_scores"`
	Issues       []Issue            `json:"issues,omitempty"`
	StaleSources []string           `json:"stale_sources,omitempty"`
}

// Field weights. Critical identity fields dominate; contact fields are
// nice-to-have.
const (
	weightName        = 0.20
	weightAddress     = 0.20
	weightCoordinates = 0.20
	weightCategory    = 0.15
	weightRating      = 0.10
	weightPhone       = 0.05
	weightWebsite     = 0.05
	weightDescription = 0.05
)

// Cross-source tolerances.
const (
	coordAgreementMeters = 100.0
	ratingVarianceLimit  = 0.5
	maxCoordDecimals     = 10
)

const corroborationBonus = 0.05

// Validator runs field and cross-source rules over merged venues. It holds
// no per-venue state and is safe for concurrent use.
type Validator struct {
	now func() time.Time
}

func New() *Validator {
	return &Validator{now: time.Now}
}

// Validate scores the canonical venue and, when the contributing raw records
// are supplied, checks cross-source agreement and freshness.
func (v *Validator) Validate(c *venue.Canonical, records []venue.RawRecord) Report {
	rep := Report{FieldScores: make(map[string]float64, 8)}

	type rule struct {
		field  string
		weight float64
		check  func(*venue.Canonical) (float64, *Issue)
	}
	rules := []rule{
		{"name", weightName, checkName},
		{"address", weightAddress, checkAddress},
		{"coordinates", weightCoordinates, checkCoordinates},
		{"category", weightCategory, checkCategory},
		{"rating", weightRating, checkRating},
		{"phone", weightPhone, checkPhone},
		{"website", weightWebsite, checkWebsite},
		{"description", weightDescription, checkDescription},
	}

	var weighted float64
	for _, r := range rules {
		score, issue := r.check(c)
		rep.FieldScores[r.field] = score
		weighted += score * r.weight
		if issue != nil {
			issue.Field = r.field
			rep.Issues = append(rep.Issues, *issue)
		}
	}
	rep.Score = weighted

	rep.Completeness = completeness(c)
	rep.Consistency = v.consistency(records, &rep)
	rep.Confidence = confidence(records)

	now := v.now()
	for _, rec := range records {
		if rec.Stale(now) {
			rep.StaleSources = append(rep.StaleSources, rec.Source)
			rep.Issues = append(rep.Issues, Issue{
				Field:        "freshness",
				Severity:     SeverityInfo,
				Message:      fmt.Sprintf("record from %s is older than %s", rec.Source, venue.StaleAfter),
				SuggestedFix: "refetch from provider",
			})
		}
	}

	return rep
}

func checkName(c *venue.Canonical) (float64, *Issue) {
	name := strings.TrimSpace(c.Name)
	switch {
	case name == "":
		return 0, &Issue{Severity: SeverityError, Message: "name is empty"}
	case len(name) < 3:
		return 0.5, &Issue{Severity: SeverityWarning, Message: "name is suspiciously short"}
	default:
		return 1, nil
	}
}

func checkAddress(c *venue.Canonical) (float64, *Issue) {
	addr := strings.TrimSpace(c.Address)
	if addr == "" {
		return 0, &Issue{Severity: SeverityError, Message: "address is empty"}
	}
	if !strings.ContainsAny(addr, "0123456789") {
		return 0.7, &Issue{
			Severity:     SeverityWarning,
			Message:      "address has no street number",
			SuggestedFix: "prefer a source with a full street address",
		}
	}
	return 1, nil
}

func checkCoordinates(c *venue.Canonical) (float64, *Issue) {
	if !c.Coordinates.Present {
		return 0, &Issue{Severity: SeverityError, Message: "coordinates missing"}
	}
	lat, lng := c.Coordinates.Lat, c.Coordinates.Lng
	if lat < -90 || lat > 90 {
		return 0, &Issue{Severity: SeverityError, Message: "latitude out of range"}
	}
	if lng < -180 || lng > 180 {
		return 0, &Issue{Severity: SeverityError, Message: "longitude out of range"}
	}
	if decimalDigits(lat) > maxCoordDecimals || decimalDigits(lng) > maxCoordDecimals {
		return 0.5, &Issue{
			Severity:     SeverityWarning,
			Message:      "coordinate precision exceeds plausible GPS accuracy, likely synthetic",
			SuggestedFix: "cross-check against another source",
		}
	}
	return 1, nil
}

func checkCategory(c *venue.Canonical) (float64, *Issue) {
	if strings.TrimSpace(c.Category) == "" {
		return 0, &Issue{Severity: SeverityError, Message: "category is empty"}
	}
	if _, ok := normalize.MapCategory(c.Category); !ok {
		return 0.7, &Issue{
			Severity:     SeverityInfo,
			Message:      "category not in canonical taxonomy",
			SuggestedFix: "add a taxonomy mapping for this provider category",
		}
	}
	return 1, nil
}

func checkRating(c *venue.Canonical) (float64, *Issue) {
	switch {
	case c.Rating < 0 || c.Rating > 5:
		return 0, &Issue{Severity: SeverityError, Message: "rating outside [0,5]"}
	case c.Rating == 0:
		return 0.3, &Issue{Severity: SeverityInfo, Message: "no rating available"}
	case c.ReviewCount < 5:
		return 0.7, &Issue{Severity: SeverityInfo, Message: "rating backed by very few reviews"}
	default:
		return 1, nil
	}
}

func checkPhone(c *venue.Canonical) (float64, *Issue) {
	if c.Phone == "" {
		return 0, &Issue{Severity: SeverityInfo, Message: "phone missing"}
	}
	if _, err := normalize.NormalizePhone(c.Phone); err != nil {
		return 0.3, &Issue{
			Severity:     SeverityWarning,
			Message:      "phone does not normalize to a dialable number",
			SuggestedFix: "drop the value or refetch from provider details",
		}
	}
	return 1, nil
}

func checkWebsite(c *venue.Canonical) (float64, *Issue) {
	if c.Website == "" {
		return 0, &Issue{Severity: SeverityInfo, Message: "website missing"}
	}
	if !strings.HasPrefix(c.Website, "http://") && !strings.HasPrefix(c.Website, "https://") {
		return 0.5, &Issue{
			Severity:     SeverityWarning,
			Message:      "website URL has no scheme",
			SuggestedFix: "prefix with https://",
		}
	}
	return 1, nil
}

func checkDescription(c *venue.Canonical) (float64, *Issue) {
	desc := strings.TrimSpace(c.Description)
	switch {
	case desc == "":
		return 0, &Issue{Severity: SeverityInfo, Message: "description missing"}
	case len(desc) < 20:
		return 0.5, &Issue{Severity: SeverityInfo, Message: "description too short to be useful"}
	default:
		return 1, nil
	}
}

// completeness is the fraction of the eight scored fields that are present at
// all, ignoring how well each one scored.
func completeness(c *venue.Canonical) float64 {
	present := 0
	for _, ok := range []bool{
		strings.TrimSpace(c.Name) != "",
		strings.TrimSpace(c.Address) != "",
		c.Coordinates.Present,
		strings.TrimSpace(c.Category) != "",
		c.Rating > 0,
		c.Phone != "",
		c.Website != "",
		strings.TrimSpace(c.Description) != "",
	} {
		if ok {
			present++
		}
	}
	return float64(present) / 8
}

// consistency checks cross-source agreement for name, coordinates and rating.
// With fewer than two sources there is nothing to disagree, so it reports 1.
func (v *Validator) consistency(records []venue.RawRecord, rep *Report) float64 {
	if len(records) < 2 {
		return 1
	}

	checks, agreed := 0, 0

	// Name: exact after fingerprinting.
	fp := normalize.NameFingerprint(records[0].Name)
	namesAgree := true
	for _, rec := range records[1:] {
		if normalize.NameFingerprint(rec.Name) != fp {
			namesAgree = false
			break
		}
	}
	checks++
	if namesAgree {
		agreed++
	} else {
		rep.Issues = append(rep.Issues, Issue{
			Field:    "name",
			Severity: SeverityWarning,
			Message:  "sources disagree on venue name",
		})
	}

	// Coordinates: every located pair within the agreement radius.
	var located []venue.Coordinates
	for _, rec := range records {
		if rec.Coordinates.Present && normalize.ValidCoordinates(rec.Coordinates) {
			located = append(located, rec.Coordinates)
		}
	}
	if len(located) >= 2 {
		coordsAgree := true
		for i := 1; i < len(located); i++ {
			if venue.DistanceMeters(located[0], located[i]) > coordAgreementMeters {
				coordsAgree = false
				break
			}
		}
		checks++
		if coordsAgree {
			agreed++
		} else {
			rep.Issues = append(rep.Issues, Issue{
				Field:    "coordinates",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("source coordinates spread beyond %.0fm", coordAgreementMeters),
			})
		}
	}

	// Rating: variance across rated sources below the tolerance.
	var ratings []float64
	for _, rec := range records {
		if rec.Rating > 0 {
			ratings = append(ratings, rec.Rating)
		}
	}
	if len(ratings) >= 2 {
		checks++
		if variance(ratings) < ratingVarianceLimit {
			agreed++
		} else {
			rep.Issues = append(rep.Issues, Issue{
				Field:    "rating",
				Severity: SeverityWarning,
				Message:  "source ratings diverge beyond tolerance",
			})
		}
	}

	return float64(agreed) / float64(checks)
}

// confidence blends mean per-source confidence with a small bonus per
// corroborating source, mirroring how the merge scores records.
func confidence(records []venue.RawRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range records {
		sum += normalize.SourceConfidence(rec)
	}
	conf := sum/float64(len(records)) + corroborationBonus*float64(len(records)-1)
	return math.Min(conf, 1)
}

func variance(vs []float64) float64 {
	var mean float64
	for _, v := range vs {
		mean += v
	}
	mean /= float64(len(vs))
	var sq float64
	for _, v := range vs {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(len(vs))
}

// decimalDigits counts fractional digits in the shortest decimal rendering of
// f. GPS hardware tops out well below ten, so more is a synthetic tell.
func decimalDigits(f float64) int {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
