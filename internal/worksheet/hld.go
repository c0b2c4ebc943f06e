package worksheet

import (
	"time"

	"datahub/domain/sheet"
	"datahub/ports"
)

// HLDPole is a planned pole from the high level design sheet.
type HLDPole struct {
	Label         string
	Type          *string
	Subtype       *string
	Spec          *string
	Dim1          *string
	Dim2          *string
	CableCapacity *string
	Connector     *string
	Status        *string
	Owner         *string
	Lat           *float64
	Lon           *float64
	Address       *string
	PonNo         *int64
	ZoneNo        *int64
	Subplace      *string
	MainPlace     *string
	Municipality  *string
	DateCreated   *time.Time
	CreatedBy     *string
	DateEdited    *time.Time
	EditedBy      *string
	Comments      *string
	raw           sheet.Record
}

func newHLDPole(rec sheet.Record) (HLDPole, bool) {
	label := rec.String("label_1")
	if label == "" {
		return HLDPole{}, false
	}
	return HLDPole{
		Label:         label,
		Type:          text(rec["type_1"]),
		Subtype:       text(rec["subtyp_1"]),
		Spec:          text(rec["spec_1"]),
		Dim1:          text(rec["dim1"]),
		Dim2:          text(rec["dim2"]),
		CableCapacity: text(rec["cblcpty1"]),
		Connector:     text(rec["conntr1"]),
		Status:        text(rec["status"]),
		Owner:         text(rec["cmpownr"]),
		Lat:           decimal(rec["lat"]),
		Lon:           decimal(rec["lon"]),
		Address:       text(rec["address"]),
		PonNo:         integer(rec["pon_no"]),
		ZoneNo:        integer(rec["zone_no"]),
		Subplace:      text(rec["subplace"]),
		MainPlace:     text(rec["mainplce"]),
		Municipality:  text(rec["mun"]),
		DateCreated:   timestamp(rec["datecrtd"]),
		CreatedBy:     text(rec["crtdby"]),
		DateEdited:    timestamp(rec["date_edt"]),
		EditedBy:      text(rec["editby"]),
		Comments:      text(rec["comments"]),
		raw:           rec,
	}, true
}

func (p HLDPole) Key() string           { return p.Label }
func (p HLDPole) Payload() sheet.Record { return p.raw }
func (HLDPole) isRow()                  {}

func (p HLDPole) Columns() []ports.Column {
	return []ports.Column{
		{Name: "label_1", Value: p.Label},
		{Name: "type_1", Value: val(p.Type)},
		{Name: "subtyp_1", Value: val(p.Subtype)},
		{Name: "spec_1", Value: val(p.Spec)},
		{Name: "dim1", Value: val(p.Dim1)},
		{Name: "dim2", Value: val(p.Dim2)},
		{Name: "cblcpty1", Value: val(p.CableCapacity)},
		{Name: "conntr1", Value: val(p.Connector)},
		{Name: "status", Value: val(p.Status)},
		{Name: "cmpownr", Value: val(p.Owner)},
		{Name: "lat", Value: val(p.Lat)},
		{Name: "lon", Value: val(p.Lon)},
		{Name: "address", Value: val(p.Address)},
		{Name: "pon_no", Value: val(p.PonNo)},
		{Name: "zone_no", Value: val(p.ZoneNo)},
		{Name: "subplace", Value: val(p.Subplace)},
		{Name: "mainplce", Value: val(p.MainPlace)},
		{Name: "mun", Value: val(p.Municipality)},
		{Name: "datecrtd", Value: val(p.DateCreated)},
		{Name: "crtdby", Value: val(p.CreatedBy)},
		{Name: "date_edt", Value: val(p.DateEdited)},
		{Name: "editby", Value: val(p.EditedBy)},
		{Name: "comments", Value: val(p.Comments)},
	}
}

// HLDHome is a planned home drop from the high level design sheet.
type HLDHome struct {
	Label         string
	Type          *string
	Subtype       *string
	Spec          *string
	Dim1          *string
	Dim2          *string
	CableCapacity *string
	Connector     *string
	NetworkPoint  *string
	Owner         *string
	StartFeature  *string
	EndFeature    *string
	Lat           *float64
	Lon           *float64
	Address       *string
	PonNo         *int64
	ZoneNo        *int64
	Subplace      *string
	MainPlace     *string
	Municipality  *string
	DateCreated   *time.Time
	CreatedBy     *string
	DateEdited    *time.Time
	EditedBy      *string
	Comments      *string
	raw           sheet.Record
}

// hldHomeUpdateColumns are the columns refreshed on re-sync; design metadata
// captured at insert time is kept.
var hldHomeUpdateColumns = []string{
	"type", "subtyp", "strtfeat", "lat", "lon", "address", "pon_no", "zone_no", "mainplce", "mun",
}

func newHLDHome(rec sheet.Record) (HLDHome, bool) {
	label := rec.String("label")
	if label == "" {
		return HLDHome{}, false
	}
	return HLDHome{
		Label:         label,
		Type:          text(rec["type"]),
		Subtype:       text(rec["subtyp"]),
		Spec:          text(rec["spec"]),
		Dim1:          text(rec["dim1"]),
		Dim2:          text(rec["dim2"]),
		CableCapacity: text(rec["cblcpty"]),
		Connector:     text(rec["conntr"]),
		NetworkPoint:  text(rec["ntwrkptn"]),
		Owner:         text(rec["cmpownr"]),
		StartFeature:  text(rec["strtfeat"]),
		EndFeature:    text(rec["endfeat"]),
		Lat:           decimal(rec["lat"]),
		Lon:           decimal(rec["lon"]),
		Address:       text(rec["address"]),
		PonNo:         integer(rec["pon_no"]),
		ZoneNo:        integer(rec["zone_no"]),
		Subplace:      text(rec["subplace"]),
		MainPlace:     text(rec["mainplce"]),
		Municipality:  text(rec["mun"]),
		DateCreated:   timestamp(rec["datecrtd"]),
		CreatedBy:     text(rec["crtdby"]),
		DateEdited:    timestamp(rec["date_edt"]),
		EditedBy:      text(rec["editby"]),
		Comments:      text(rec["comments"]),
		raw:           rec,
	}, true
}

func (h HLDHome) Key() string           { return h.Label }
func (h HLDHome) Payload() sheet.Record { return h.raw }
func (HLDHome) isRow()                  {}

func (h HLDHome) Columns() []ports.Column {
	return []ports.Column{
		{Name: "label", Value: h.Label},
		{Name: "type", Value: val(h.Type)},
		{Name: "subtyp", Value: val(h.Subtype)},
		{Name: "spec", Value: val(h.Spec)},
		{Name: "dim1", Value: val(h.Dim1)},
		{Name: "dim2", Value: val(h.Dim2)},
		{Name: "cblcpty", Value: val(h.CableCapacity)},
		{Name: "conntr", Value: val(h.Connector)},
		{Name: "ntwrkptn", Value: val(h.NetworkPoint)},
		{Name: "cmpownr", Value: val(h.Owner)},
		{Name: "strtfeat", Value: val(h.StartFeature)},
		{Name: "endfeat", Value: val(h.EndFeature)},
		{Name: "lat", Value: val(h.Lat)},
		{Name: "lon", Value: val(h.Lon)},
		{Name: "address", Value: val(h.Address)},
		{Name: "pon_no", Value: val(h.PonNo)},
		{Name: "zone_no", Value: val(h.ZoneNo)},
		{Name: "subplace", Value: val(h.Subplace)},
		{Name: "mainplce", Value: val(h.MainPlace)},
		{Name: "mun", Value: val(h.Municipality)},
		{Name: "datecrtd", Value: val(h.DateCreated)},
		{Name: "crtdby", Value: val(h.CreatedBy)},
		{Name: "date_edt", Value: val(h.DateEdited)},
		{Name: "editby", Value: val(h.EditedBy)},
		{Name: "comments", Value: val(h.Comments)},
	}
}
