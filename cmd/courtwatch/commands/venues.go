package commands

import (
	"fmt"
	"strconv"
	"strings"

	"courtwatch/lib/slots"

	"github.com/antzucaro/matchr"
)

// minVenueSimilarity is the lowest Jaro-Winkler similarity accepted
// for a venue given by name.
const minVenueSimilarity = 0.75

// matchVenue resolves a venue given by id or by (approximate) name.
func matchVenue(known []slots.Venue, query string) (slots.Venue, error) {
	query = strings.TrimSpace(query)
	if id, err := strconv.Atoi(query); err == nil {
		for _, v := range known {
			if v.ID == id {
				return v, nil
			}
		}
		return slots.Venue{}, fmt.Errorf("no venue with id %d", id)
	}

	var best slots.Venue
	var bestSimilarity float64
	for _, v := range known {
		similarity := matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(v.Name), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = v
		}
	}
	if bestSimilarity < minVenueSimilarity {
		return slots.Venue{}, fmt.Errorf("no venue resembles %q", query)
	}
	return best, nil
}

// selectVenues narrows known down to the queried venues, all of known
// when there are no queries.
func selectVenues(known []slots.Venue, queries []string) ([]slots.Venue, error) {
	if len(queries) == 0 {
		return known, nil
	}
	seen := map[int]bool{}
	var out []slots.Venue
	for _, q := range queries {
		v, err := matchVenue(known, q)
		if err != nil {
			return nil, err
		}
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		out = append(out, v)
	}
	return out, nil
}
