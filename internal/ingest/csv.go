// Package ingest loads coordinate records from CSV files.
package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// headerAliases maps accepted column names onto the canonical lat/lng keys.
var headerAliases = map[string]string{
	"lat":       "lat",
	"latitude":  "lat",
	"y":         "lat",
	"lng":       "lng",
	"lon":       "lng",
	"long":      "lng",
	"longitude": "lng",
	"x":         "lng",
}

type coordRow struct {
	Lat string `csv:"lat"`
	Lng string `csv:"lng"`
}

// Result is the outcome of reading a coordinate CSV.
type Result struct {
	Coordinates []model.Coordinate
	Skipped     int
}

// ReadFile opens path and reads coordinates from it.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Read(f)
}

// Read decodes a CSV with a header row holding lat and lng columns (aliases
// such as latitude/longitude are accepted). Extra columns are ignored. Rows
// with blank or out-of-range values are skipped and counted.
func Read(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Result{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}
	header, err := normalizeHeader(raw)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: csv decoder")
	}

	log := zap.L().With(zap.String("component", "ingest.csv"))
	res := &Result{}
	line := 1
	for {
		var row coordRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: decode line %d", line)
		}

		c, ok := parseRow(row)
		if !ok {
			log.Warn("skipping invalid coordinate row",
				zap.Int("line", line),
				zap.String("lat", row.Lat),
				zap.String("lng", row.Lng),
			)
			res.Skipped++
			continue
		}
		res.Coordinates = append(res.Coordinates, c)
	}

	return res, nil
}

func normalizeHeader(raw []string) ([]string, error) {
	header := make([]string, len(raw))
	var hasLat, hasLng bool
	for i, h := range raw {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := headerAliases[key]; ok && !(canon == "lat" && hasLat) && !(canon == "lng" && hasLng) {
			key = canon
			hasLat = hasLat || canon == "lat"
			hasLng = hasLng || canon == "lng"
		}
		header[i] = key
	}
	if !hasLat || !hasLng {
		return nil, eris.Errorf("ingest: csv header must include lat and lng columns, got %v", raw)
	}
	return header, nil
}

func parseRow(row coordRow) (model.Coordinate, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(row.Lat), 64)
	if err != nil || lat < -90 || lat > 90 {
		return model.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(row.Lng), 64)
	if err != nil || lng < -180 || lng > 180 {
		return model.Coordinate{}, false
	}
	return model.Coordinate{Lat: lat, Lng: lng, Status: model.StatusTodo}, true
}
