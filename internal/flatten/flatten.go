// Package flatten extracts a fixed set of parcel fields from stored lookup payloads.
package flatten

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// ParsePayload decodes a stored payload into its parcel objects.
// Empty input, malformed JSON, and non-array JSON all yield nil; malformed
// JSON is logged.
func ParsePayload(data string) []map[string]any {
	if strings.TrimSpace(data) == "" {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		zap.L().Error("flatten: decode payload", zap.Error(err))
		return nil
	}
	// The payload must be exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		zap.L().Error("flatten: decode payload", zap.Error(err))
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		zap.L().Warn("flatten: payload is not an array", zap.String("type", jsonKind(v)))
		return nil
	}

	parcels := make([]map[string]any, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		parcels = append(parcels, obj)
	}
	return parcels
}

// Extract reads the fixed field set from the first parcel's parcel_data.
// Later parcels are ignored; an empty payload yields all nulls.
func Extract(parcels []map[string]any) model.ParcelFields {
	if len(parcels) == 0 {
		return model.ParcelFields{}
	}

	pd, _ := parcels[0]["parcel_data"].(map[string]any)
	if pd == nil {
		return model.ParcelFields{}
	}

	polygon := field(pd, "geom_as_wkt")
	if polygon == nil {
		polygon = field(pd, "polygon_as_text")
	}

	return model.ParcelFields{
		ParcelID:      field(pd, "parcel_id"),
		State:         field(pd, "state"),
		APN:           field(pd, "apn"),
		Acreage:       field(pd, "acreage"),
		ParcelAddress: field(pd, "parcel_address"),
		ParcelOwner:   field(pd, "parcel_owner"),
		PolygonAsText: polygon,
	}
}

// Flatten turns a stored result into one report row.
func Flatten(r model.Result) model.ParcelRow {
	return model.ParcelRow{
		ID:           r.ID,
		OriginID:     r.OriginID,
		ParcelFields: Extract(ParsePayload(r.Data)),
	}
}

// FlattenAll flattens results in order.
func FlattenAll(results []model.Result) []model.ParcelRow {
	rows := make([]model.ParcelRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, Flatten(r))
	}
	return rows
}

// Raw re-encodes a result's payload compactly for the raw export.
// It returns false when the payload does not parse.
func Raw(r model.Result) (model.RawRow, bool) {
	if strings.TrimSpace(r.Data) == "" {
		return model.RawRow{}, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(r.Data)); err != nil {
		zap.L().Error("flatten: decode payload", zap.Int64("result_id", r.ID), zap.Error(err))
		return model.RawRow{}, false
	}
	return model.RawRow{ID: r.ID, OriginID: r.OriginID, Data: buf.String()}, true
}

// field renders pd[key] as text; absent and JSON null map to nil.
func field(pd map[string]any, key string) *string {
	v, ok := pd[key]
	if !ok || v == nil {
		return nil
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	return &s
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}
