package worksheet

import (
	"regexp"
	"time"

	"datahub/domain/sheet"
	"datahub/ports"
)

// dropNumberPattern accepts real drop numbers and rejects header fragments
// repeated further down the QA sheets.
var dropNumberPattern = regexp.MustCompile(`^(DR|\d+$)`)

// qaStep maps a photo-verification column to the headers it appears under.
// Later headers are fallbacks used by sheets whose step numbering shifted.
type qaStep struct {
	column  string
	headers []string
}

var qaSteps = []qaStep{
	{"step_1_property_frontage", []string{"step_1_property_frontage_house_street_number_visible", "step_1_property_frontage"}},
	{"step_2_location_on_wall", []string{"step_2_location_on_wall_before_install"}},
	{"step_3_outside_cable_span", []string{"step_3_outside_cable_span_pole_pigtail_screw"}},
	{"step_4_home_entry_outside", []string{"step_4_home_entry_point_outside"}},
	{"step_5_home_entry_inside", []string{"step_5_home_entry_point_inside"}},
	{"step_6_fibre_entry_to_ont", []string{"step_6_fibre_entry_to_ont_after_install"}},
	{"step_7_work_area_completion", []string{"step_7_overall_work_area_after_completion"}},
	{"step_8_ont_barcode", []string{"step_8_ont_barcode_scan_barcode_photo_of_label", "step_7_ont_barcode_scan_barcode_photo_of_label"}},
	{"step_9_mini_ups_serial", []string{"step_9_mini_ups_serial_number_gizzu", "step_8_mini_ups_serial_number_gizzu"}},
	{"step_10_powermeter_before_activation", []string{"step_10_powermeter_at_ont_before_activation", "step_9_powermeter_at_ont_before_activation"}},
	{"step_11_active_broadband_light", []string{"step_11_active_broadband_light"}},
	{"step_12_customer_signature", []string{"step_12_customer_signature", "step_10_customer_signature"}},
}

// qaFields is a photo-verification checklist for one installed drop.
type qaFields struct {
	DropNumber            string
	Source                string
	Date                  *time.Time
	Steps                 [12]*bool
	CompletedPhotos       *bool
	OutstandingPhotos     *string
	UserName              *string
	OutstandingLoaded1Map *bool
	CompletedLoadedSP     *bool
	Comment               *string
	raw                   sheet.Record
}

func newQAFields(rec sheet.Record, source string) (qaFields, bool) {
	drop := rec.String("drop_number")
	if !dropNumberPattern.MatchString(drop) {
		return qaFields{}, false
	}
	raw := rec.Clone()
	raw["_source"] = source

	f := qaFields{
		DropNumber:            drop,
		Source:                source,
		Date:                  timestamp(rec["date"]),
		CompletedPhotos:       boolean(rec["completed_photos"]),
		OutstandingPhotos:     text(rec["x_outstanding_photos"]),
		UserName:              text(rec["user"]),
		OutstandingLoaded1Map: boolean(rec["outstanding_photos_loaded_onto_1map"]),
		CompletedLoadedSP:     boolean(rec["qa_completed_loaded_to_sp"]),
		Comment:               text(rec["comment"]),
		raw:                   raw,
	}
	for i, step := range qaSteps {
		f.Steps[i] = boolean(rec.First(step.headers...))
	}
	return f, true
}

func (f qaFields) columns() []ports.Column {
	cols := []ports.Column{
		{Name: "drop_number", Value: f.DropNumber},
		{Name: "source", Value: f.Source},
		{Name: "date", Value: val(f.Date)},
	}
	for i, step := range qaSteps {
		cols = append(cols, ports.Column{Name: step.column, Value: val(f.Steps[i])})
	}
	return append(cols,
		ports.Column{Name: "completed_photos", Value: val(f.CompletedPhotos)},
		ports.Column{Name: "outstanding_photos", Value: val(f.OutstandingPhotos)},
		ports.Column{Name: "user_name", Value: val(f.UserName)},
		ports.Column{Name: "outstanding_photos_loaded_1map", Value: val(f.OutstandingLoaded1Map)},
		ports.Column{Name: "qa_completed_loaded_sp", Value: val(f.CompletedLoadedSP)},
		ports.Column{Name: "comment", Value: val(f.Comment)},
	)
}

// LawleyQA is a QA checklist from the Lawley project workbook.
type LawleyQA struct {
	qaFields
}

func lawleyQA(source string) func(sheet.Record) (LawleyQA, bool) {
	return func(rec sheet.Record) (LawleyQA, bool) {
		f, ok := newQAFields(rec, source)
		return LawleyQA{qaFields: f}, ok
	}
}

func (q LawleyQA) Key() string             { return q.DropNumber }
func (q LawleyQA) Payload() sheet.Record   { return q.raw }
func (q LawleyQA) Columns() []ports.Column { return q.columns() }
func (LawleyQA) isRow()                    {}

// MohadinQA is a QA checklist from the Mohadin project workbook, which also
// records the zone and PON of each drop.
type MohadinQA struct {
	qaFields
	ZoneNo *int64
	PonNo  *int64
}

func mohadinQA(source string) func(sheet.Record) (MohadinQA, bool) {
	return func(rec sheet.Record) (MohadinQA, bool) {
		f, ok := newQAFields(rec, source)
		if !ok {
			return MohadinQA{}, false
		}
		return MohadinQA{
			qaFields: f,
			ZoneNo:   integer(rec.First("zone", "zone_no")),
			PonNo:    integer(rec.First("pon", "pon_no")),
		}, true
	}
}

func (q MohadinQA) Key() string           { return q.DropNumber }
func (q MohadinQA) Payload() sheet.Record { return q.raw }
func (MohadinQA) isRow()                  {}

func (q MohadinQA) Columns() []ports.Column {
	return append(q.columns(),
		ports.Column{Name: "zone_no", Value: val(q.ZoneNo)},
		ports.Column{Name: "pon_no", Value: val(q.PonNo)},
	)
}
