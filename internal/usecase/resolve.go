package usecase

import (
	"regexp"
	"strings"

	"adlens/internal/domain"
)

// embedding the numeric campaign ID in a UTM tag is the recommended
// practice; six digits is the minimum width of a real campaign ID
var embeddedIDPattern = regexp.MustCompile(`\b\d{6,}\b`)

// NameIndex maps a campaign display name (or short name) to the IDs of
// the campaigns carrying it. More than one ID means the name is
// ambiguous and exact-name resolution refuses it.
type NameIndex map[string][]string

func BuildNameIndex(campaigns map[string]domain.Campaign) NameIndex {
	idx := NameIndex{}
	register := func(name, id string) {
		if name == "" {
			return
		}
		for _, existing := range idx[name] {
			if existing == id {
				return
			}
		}
		idx[name] = append(idx[name], id)
	}
	for id, c := range campaigns {
		register(c.Name, id)
		register(c.ShortName, id)
	}
	return idx
}

// ResolveCampaignID maps a free-text join key to a campaign ID. Embedded
// numeric IDs take strict priority over name matching; an unknown or
// ambiguous key resolves to "" and the caller accounts for it in the
// unclassified remainder.
func ResolveCampaignID(joinKey string, campaigns map[string]domain.Campaign, index NameIndex) string {
	for _, candidate := range embeddedIDPattern.FindAllString(joinKey, -1) {
		if _, ok := campaigns[candidate]; ok {
			return candidate
		}
	}
	if ids := index[joinKey]; len(ids) == 1 {
		return ids[0]
	}
	return ""
}

// TypeClassifier infers a campaign's traffic type from its display name.
// The heuristic is locale-specific, so it is pluggable rather than
// baked into the join engine.
type TypeClassifier func(name string) string

// DefaultTypeClassifier recognizes the naming convention of splitting
// campaigns into search and ad-network variants.
func DefaultTypeClassifier(name string) string {
	low := strings.ToLower(name)
	if strings.Contains(low, "поиск") || strings.Contains(low, "search") {
		return domain.CampaignTypeSearch
	}
	if strings.Contains(low, "рся") || strings.Contains(low, "rsya") || strings.Contains(low, "network") {
		return domain.CampaignTypeNetwork
	}
	return ""
}

// short display names cut here to keep chart legends readable
const shortNameLimit = 38

// SplitCampaignName derives a short display name and a sub-name from a
// full campaign name, splitting on the common " - " convention.
func SplitCampaignName(name string) (short, sub string) {
	parts := strings.SplitN(name, " - ", 2)
	short = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		sub = strings.TrimSpace(parts[1])
	}
	if r := []rune(short); len(r) > shortNameLimit {
		short = string(r[:shortNameLimit-3]) + "…"
	}
	return short, sub
}
