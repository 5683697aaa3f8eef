package geojson_test

import (
	"fmt"

	"github.com/robert-malhotra/ifg-pair-selector/pkg/geojson"
)

func ExampleGeometry_BBox() {
	g, _ := geojson.NewPolygon([][][]float64{
		{{-118.5, 34.0}, {-118.0, 34.0}, {-118.0, 34.5}, {-118.5, 34.5}, {-118.5, 34.0}},
	})

	bbox, err := g.BBox()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Printf("west=%.1f south=%.1f east=%.1f north=%.1f\n", bbox[0], bbox[1], bbox[2], bbox[3])
	// Output: west=-118.5 south=34.0 east=-118.0 north=34.5
}

func ExampleToWKT() {
	g, _ := geojson.NewPolygon([][][]float64{
		{{-118.5, 34.0}, {-118.0, 34.0}, {-118.0, 34.5}, {-118.5, 34.0}},
	})

	wkt, err := geojson.ToWKT(g)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(wkt)
	// Output: POLYGON((-118.5 34,-118 34,-118 34.5,-118.5 34))
}

func ExampleFromWKT() {
	g, err := geojson.FromWKT("MULTIPOLYGON(((0 0,1 0,1 1,0 0)),((5 5,6 5,6 6,5 5)))")
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	polygons, _ := g.Polygons()
	fmt.Println(g.Type, len(polygons))
	// Output: MultiPolygon 2
}
