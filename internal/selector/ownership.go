package selector

// AOIPairs is the candidate pairs produced for one AOI.
type AOIPairs struct {
	AOIID    string
	Priority int
	Pairs    []*CandidatePair
}

type claim struct {
	aoi      string
	priority int
}

// ResolveOwnership gives each acquisition to the highest-priority AOI that
// selected it; among equal priorities the AOI listed first keeps it. Pairs
// that use an acquisition owned by another AOI are removed. The input is not
// modified and the number of removed pairs is returned.
func ResolveOwnership(sets []AOIPairs) ([]AOIPairs, int) {
	owners := make(map[string]claim)
	for _, set := range sets {
		for _, pair := range set.Pairs {
			for _, id := range pair.Acquisitions() {
				cur, ok := owners[id]
				if !ok || set.Priority > cur.priority {
					owners[id] = claim{aoi: set.AOIID, priority: set.Priority}
				}
			}
		}
	}

	out := make([]AOIPairs, len(sets))
	removed := 0
	for i, set := range sets {
		out[i] = AOIPairs{AOIID: set.AOIID, Priority: set.Priority}
		for _, pair := range set.Pairs {
			if ownsAll(owners, set.AOIID, pair) {
				out[i].Pairs = append(out[i].Pairs, pair)
			} else {
				removed++
			}
		}
	}
	return out, removed
}

func ownsAll(owners map[string]claim, aoi string, pair *CandidatePair) bool {
	for _, id := range pair.Acquisitions() {
		if owners[id].aoi != aoi {
			return false
		}
	}
	return true
}
