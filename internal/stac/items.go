package stac

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robert-malhotra/ifg-pair-selector/internal/report"
	"github.com/robert-malhotra/ifg-pair-selector/internal/selector"
	"github.com/robert-malhotra/ifg-pair-selector/internal/translate"
)

// CollectionID is the collection every pair item belongs to.
const CollectionID = "ifg-candidate-pairs"

// Properties specific to candidate pairs.
const (
	PropAOI          = "ifg:aoi"
	PropPriority     = "ifg:priority"
	PropClusterKey   = "ifg:cluster_key"
	PropMasterScenes = "ifg:master_scenes"
	PropSlaveScenes  = "ifg:slave_scenes"
	PropDEMType      = "ifg:dem_type"
	PropDegenerate   = "ifg:degenerate"
	PropRelativeOrb  = "sat:relative_orbit"
)

// ItemID is the stable id of a pair's item.
func ItemID(p *selector.CandidatePair) string {
	return fmt.Sprintf("%s-T%03d-%s", p.AOIID, p.Track, p.Key)
}

// PairItem renders one candidate pair. When baseURL is set the item links to
// its AOI's decision log.
func PairItem(p *selector.CandidatePair, baseURL string) (*Item, error) {
	if p.UnionGeoJSON == nil {
		return nil, fmt.Errorf("pair %s has no footprint", ItemID(p))
	}
	bbox, err := p.UnionGeoJSON.BBox()
	if err != nil {
		return nil, fmt.Errorf("pair %s bbox: %w", ItemID(p), err)
	}

	item := NewItem(ItemID(p), CollectionID)
	item.Geometry = p.UnionGeoJSON
	item.Bbox = bbox
	item.Properties["datetime"] = nil
	item.Properties["start_datetime"] = translate.FormatTime(p.StartTime)
	item.Properties["end_datetime"] = translate.FormatTime(p.EndTime)
	item.Properties[PropRelativeOrb] = p.Track
	item.Properties[PropAOI] = p.AOIID
	item.Properties[PropPriority] = p.Priority
	item.Properties[PropClusterKey] = p.Key
	item.Properties[PropMasterScenes] = p.MasterAcqs
	item.Properties[PropSlaveScenes] = p.SlaveAcqs
	item.Properties[PropDEMType] = p.DEMType
	if p.Degenerate {
		item.Properties[PropDegenerate] = true
	}

	if baseURL != "" {
		base := strings.TrimRight(baseURL, "/")
		item.Links = append(item.Links, &Link{
			Rel:  "describedby",
			Href: base + "/reports/" + url.PathEscape(p.AOIID),
			Type: "text/csv",
		})
		item.Assets["decision_log"] = &Asset{
			Href:  base + "/reports/" + url.PathEscape(p.AOIID),
			Title: report.FileName(p.AOIID),
			Type:  "text/csv",
			Roles: []string{"metadata"},
		}
	}
	return item, nil
}

// PairCollection renders pairs in order. A self link to the run is added
// when baseURL is set.
func PairCollection(pairs []*selector.CandidatePair, runID, baseURL string) (*ItemCollection, error) {
	items := make([]*Item, 0, len(pairs))
	for _, p := range pairs {
		item, err := PairItem(p, baseURL)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	ic := NewItemCollection(items)
	if baseURL != "" && runID != "" {
		ic.AddLink("self", strings.TrimRight(baseURL, "/")+"/selections/"+url.PathEscape(runID), "application/geo+json")
	}
	return ic, nil
}
