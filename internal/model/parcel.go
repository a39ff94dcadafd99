package model

import "strconv"

// ParcelFields is the fixed field set extracted from a parcel payload.
// Nil means the field was absent.
type ParcelFields struct {
	ParcelID      *string `json:"parcel_id" csv:"parcel_id"`
	State         *string `json:"state" csv:"state"`
	APN           *string `json:"apn" csv:"apn"`
	Acreage       *string `json:"acreage" csv:"acreage"`
	ParcelAddress *string `json:"parcel_address" csv:"parcel_address"`
	ParcelOwner   *string `json:"parcel_owner" csv:"parcel_owner"`
	PolygonAsText *string `json:"polygon_as_text" csv:"polygon_as_text"`
}

// IsEmpty reports whether every field is null.
func (f ParcelFields) IsEmpty() bool {
	return f.ParcelID == nil && f.State == nil && f.APN == nil && f.Acreage == nil &&
		f.ParcelAddress == nil && f.ParcelOwner == nil && f.PolygonAsText == nil
}

// ParcelRow is one line of the flattened report.
type ParcelRow struct {
	ID       int64 `json:"id" csv:"id"`
	OriginID int64 `json:"origin_id" csv:"origin_id"`
	ParcelFields
}

// RawRow is one line of the raw export: a result whose payload parsed.
type RawRow struct {
	ID       int64  `csv:"id"`
	OriginID int64  `csv:"origin_id"`
	Data     string `csv:"data"`
}

// Columns returns the report header in output order.
func Columns() []string {
	return []string{"id", "origin_id", "parcel_id", "state", "apn", "acreage", "parcel_address", "parcel_owner", "polygon_as_text"}
}

// Values returns the row's cells in Columns order. Nulls render as "".
func (r ParcelRow) Values() []string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return []string{
		strconv.FormatInt(r.ID, 10), strconv.FormatInt(r.OriginID, 10),
		str(r.ParcelID), str(r.State), str(r.APN), str(r.Acreage),
		str(r.ParcelAddress), str(r.ParcelOwner), str(r.PolygonAsText),
	}
}
