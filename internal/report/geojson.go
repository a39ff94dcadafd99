package report

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// WriteGeoJSON writes rows with a parseable polygon as a FeatureCollection.
// It returns the number of rows skipped for missing or invalid geometry.
func WriteGeoJSON(w io.Writer, rows []model.ParcelRow) (int, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}

	skipped := 0
	for _, r := range rows {
		if r.PolygonAsText == nil {
			skipped++
			continue
		}
		g, err := wkt.Unmarshal(*r.PolygonAsText)
		if err != nil {
			zap.L().Warn("report: skipping invalid WKT",
				zap.Int64("result_id", r.ID),
				zap.Error(err),
			)
			skipped++
			continue
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.FormatInt(r.ID, 10),
			Geometry:   g,
			Properties: properties(r),
		})
	}

	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return skipped, eris.Wrap(err, "report: geojson encode")
	}
	return skipped, nil
}

func properties(r model.ParcelRow) map[string]any {
	props := map[string]any{
		"id":        r.ID,
		"origin_id": r.OriginID,
	}
	set := func(key string, v *string) {
		if v != nil {
			props[key] = *v
		} else {
			props[key] = nil
		}
	}
	set("parcel_id", r.ParcelID)
	set("state", r.State)
	set("apn", r.APN)
	set("acreage", r.Acreage)
	set("parcel_address", r.ParcelAddress)
	set("parcel_owner", r.ParcelOwner)
	return props
}
