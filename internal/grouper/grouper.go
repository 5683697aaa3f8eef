// Package grouper partitions acquisitions by track and then by acquisition
// day or absolute orbit.
//
// Output order is part of the contract: tracks appear in the order their
// first acquisition arrived, clusters within a track likewise, and ids within
// a cluster keep upstream arrival order. Tie-breaks downstream depend on it.
package grouper

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
)

// Mode selects the second-level bucket key.
type Mode int

const (
	// ByDate buckets on the UTC day of the start time.
	ByDate Mode = iota
	// ByOrbit buckets on the absolute orbit number.
	ByOrbit
)

// DateKeyLayout formats ByDate cluster keys.
const DateKeyLayout = "2006-01-02"

func (m Mode) String() string {
	if m == ByOrbit {
		return "orbit"
	}
	return "date"
}

// ParseMode accepts "date" or "orbit".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "date":
		return ByDate, nil
	case "orbit":
		return ByOrbit, nil
	default:
		return ByDate, fmt.Errorf("unknown grouping mode %q, must be one of: date, orbit", s)
	}
}

// Cluster is the ordered set of acquisition ids sharing a (track, key) pair.
type Cluster struct {
	Track int
	Key   string
	IDs   []string
}

// Track holds one track's clusters in arrival order.
type Track struct {
	Number   int
	Clusters []*Cluster

	byKey map[string]*Cluster
}

// IDs returns every acquisition id of the track, cluster by cluster.
func (t *Track) IDs() []string {
	var ids []string
	for _, c := range t.Clusters {
		ids = append(ids, c.IDs...)
	}
	return ids
}

// Cluster returns the cluster with the given key, or nil.
func (t *Track) Cluster(key string) *Cluster {
	return t.byKey[key]
}

// SortedClusters returns the clusters ordered by key, most recent first. This
// is the order clusters are evaluated and logged in.
func (t *Track) SortedClusters() []*Cluster {
	out := slices.Clone(t.Clusters)
	slices.SortStableFunc(out, func(a, b *Cluster) int {
		return strings.Compare(b.Key, a.Key)
	})
	return out
}

// Grouping is the result of one grouping pass.
type Grouping struct {
	Mode    Mode
	Tracks  []*Track
	Index   map[string]acquisition.Acquisition
	Dropped []string

	byTrack map[int]*Track
}

// Track returns the track with the given number, or nil.
func (g *Grouping) Track(number int) *Track {
	return g.byTrack[number]
}

// Acquisitions resolves ids against the index, skipping unknown ids.
func (g *Grouping) Acquisitions(ids []string) []acquisition.Acquisition {
	out := make([]acquisition.Acquisition, 0, len(ids))
	for _, id := range ids {
		if a, ok := g.Index[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Len is the number of grouped acquisitions.
func (g *Grouping) Len() int {
	return len(g.Index)
}

// Grouper buckets acquisitions.
type Grouper struct {
	mode   Mode
	logger *slog.Logger
}

// New creates a Grouper for the given mode.
func New(mode Mode, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{mode: mode, logger: logger}
}

// Group partitions acqs. Acquisitions without a usable track number, or
// without an orbit number in ByOrbit mode, are listed in Dropped. A repeated
// id keeps its first record.
func (gr *Grouper) Group(acqs []acquisition.Acquisition) *Grouping {
	g := &Grouping{
		Mode:    gr.mode,
		Index:   make(map[string]acquisition.Acquisition, len(acqs)),
		byTrack: make(map[int]*Track),
	}

	for _, a := range acqs {
		if _, seen := g.Index[a.ID]; seen {
			gr.logger.Warn("duplicate acquisition ignored", slog.String("id", a.ID))
			continue
		}

		key, ok := gr.key(a)
		if a.TrackNumber <= 0 || !ok {
			gr.logger.Warn("dropping acquisition without usable track or orbit",
				slog.String("id", a.ID),
				slog.Int("track", a.TrackNumber),
				slog.Int("orbit", a.OrbitNumber),
			)
			g.Dropped = append(g.Dropped, a.ID)
			continue
		}

		t := g.byTrack[a.TrackNumber]
		if t == nil {
			t = &Track{Number: a.TrackNumber, byKey: make(map[string]*Cluster)}
			g.byTrack[a.TrackNumber] = t
			g.Tracks = append(g.Tracks, t)
		}

		c := t.byKey[key]
		if c == nil {
			c = &Cluster{Track: a.TrackNumber, Key: key}
			t.byKey[key] = c
			t.Clusters = append(t.Clusters, c)
		}

		c.IDs = append(c.IDs, a.ID)
		g.Index[a.ID] = a
	}

	gr.logger.Debug("grouped acquisitions",
		slog.String("mode", gr.mode.String()),
		slog.Int("acquisitions", len(g.Index)),
		slog.Int("tracks", len(g.Tracks)),
		slog.Int("dropped", len(g.Dropped)),
	)
	return g
}

func (gr *Grouper) key(a acquisition.Acquisition) (string, bool) {
	if gr.mode == ByOrbit {
		if a.OrbitNumber <= 0 {
			return "", false
		}
		return strconv.Itoa(a.OrbitNumber), true
	}
	if a.StartTime.IsZero() {
		return "", false
	}
	return a.StartTime.UTC().Format(DateKeyLayout), true
}
