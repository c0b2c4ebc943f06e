package worksheet

import (
	"time"

	"datahub/domain/sheet"
	"datahub/ports"
)

// oneMapFields are the columns shared by the 1Map installation and pole exports.
type oneMapFields struct {
	PropertyID      string
	NADID           *string
	JobID           *string
	Status          *string
	FlowNameGroups  *string
	Site            *string
	Sections        *string
	Pons            *string
	LocationAddress *string
	Latitude        *float64
	Longitude       *float64
	LastModifiedBy  *string
	LastModifiedAt  *time.Time
	StatusChangedAt *time.Time
	PoleNumber      *string
	Language        *string
	SurveyDate      *time.Time
	raw             sheet.Record
}

func newOneMapFields(propertyID string, rec sheet.Record) oneMapFields {
	return oneMapFields{
		PropertyID:      propertyID,
		NADID:           text(rec.First("1map_nad_id", "_1map_nad_id")),
		JobID:           text(rec["job_id"]),
		Status:          text(rec["status"]),
		FlowNameGroups:  text(rec["flow_name_groups"]),
		Site:            text(rec["site"]),
		Sections:        text(rec["sections"]),
		Pons:            text(rec["pons"]),
		LocationAddress: text(rec["location_address"]),
		Latitude:        decimal(rec["actual_device_location_latitude"]),
		Longitude:       decimal(rec["actual_device_location_longitude"]),
		LastModifiedBy:  text(rec["lst_mod_by"]),
		LastModifiedAt:  timestamp(rec["lst_mod_dt"]),
		StatusChangedAt: timestamp(rec["date_status_changed"]),
		PoleNumber:      text(rec["pole_number"]),
		Language:        text(rec["language"]),
		SurveyDate:      timestamp(rec["survey_date"]),
		raw:             rec,
	}
}

func (f oneMapFields) columns() []ports.Column {
	return []ports.Column{
		{Name: "property_id", Value: f.PropertyID},
		{Name: "onemap_nad_id", Value: val(f.NADID)},
		{Name: "job_id", Value: val(f.JobID)},
		{Name: "status", Value: val(f.Status)},
		{Name: "flow_name_groups", Value: val(f.FlowNameGroups)},
		{Name: "site", Value: val(f.Site)},
		{Name: "sections", Value: val(f.Sections)},
		{Name: "pons", Value: val(f.Pons)},
		{Name: "location_address", Value: val(f.LocationAddress)},
		{Name: "actual_device_location_latitude", Value: val(f.Latitude)},
		{Name: "actual_device_location_longitude", Value: val(f.Longitude)},
		{Name: "lst_mod_by", Value: val(f.LastModifiedBy)},
		{Name: "lst_mod_dt", Value: val(f.LastModifiedAt)},
		{Name: "date_status_changed", Value: val(f.StatusChangedAt)},
		{Name: "pole_number", Value: val(f.PoleNumber)},
		{Name: "language", Value: val(f.Language)},
		{Name: "survey_date", Value: val(f.SurveyDate)},
	}
}

// OneMapInstall is a home installation record from the 1Map field app.
type OneMapInstall struct {
	oneMapFields
	DropNumber *string
}

func newOneMapInstall(rec sheet.Record) (OneMapInstall, bool) {
	id := rec.String("property_id")
	if id == "" {
		return OneMapInstall{}, false
	}
	return OneMapInstall{
		oneMapFields: newOneMapFields(id, rec),
		DropNumber:   text(rec["drop_number"]),
	}, true
}

func (i OneMapInstall) Key() string           { return i.PropertyID }
func (i OneMapInstall) Payload() sheet.Record { return i.raw }
func (OneMapInstall) isRow()                  {}

func (i OneMapInstall) Columns() []ports.Column {
	return append(i.columns(), ports.Column{Name: "drop_number", Value: val(i.DropNumber)})
}

// OneMapPole is a pole permission record from the 1Map field app. Poles are
// identified by their 1Map feature id when present, else by property id.
type OneMapPole struct {
	oneMapFields
}

func newOneMapPole(rec sheet.Record) (OneMapPole, bool) {
	id := sheet.Text(rec.First("onemapfid", "property_id"))
	if id == "" {
		return OneMapPole{}, false
	}
	f := newOneMapFields(id, rec)
	f.Latitude = decimal(rec.First("planned_location_latitude", "actual_device_location_latitude"))
	f.Longitude = decimal(rec.First("planned_location_longitude", "actual_device_location_longitude"))
	f.PoleNumber = text(rec.First("label", "pole_number"))
	return OneMapPole{oneMapFields: f}, true
}

func (p OneMapPole) Key() string           { return p.PropertyID }
func (p OneMapPole) Payload() sheet.Record { return p.raw }
func (OneMapPole) isRow()                  {}

func (p OneMapPole) Columns() []ports.Column {
	return p.columns()
}
