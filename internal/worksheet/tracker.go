package worksheet

import (
	"datahub/domain/sheet"
	"datahub/ports"
)

// TrackerPole is a pole on the build tracker. The tracker is wide and
// changes often, so only the identifiers are promoted.
type TrackerPole struct {
	Label  string
	PonNo  *int64
	ZoneNo *int64
	raw    sheet.Record
}

func newTrackerPole(rec sheet.Record) (TrackerPole, bool) {
	label := rec.String("label_1")
	if label == "" {
		return TrackerPole{}, false
	}
	return TrackerPole{
		Label:  label,
		PonNo:  integer(rec["pon_no"]),
		ZoneNo: integer(rec["zone_no"]),
		raw:    rec,
	}, true
}

func (p TrackerPole) Key() string           { return p.Label }
func (p TrackerPole) Payload() sheet.Record { return p.raw }
func (TrackerPole) isRow()                  {}

func (p TrackerPole) Columns() []ports.Column {
	return []ports.Column{
		{Name: "label_1", Value: p.Label},
		{Name: "pon_no", Value: val(p.PonNo)},
		{Name: "zone_no", Value: val(p.ZoneNo)},
	}
}

// TrackerHome is a home on the build tracker. Its sheet carries a formula
// row above the header, so headers are read from row 2.
type TrackerHome struct {
	Label               string
	PonNo               *int64
	ZoneNo              *int64
	SignUpDate          *string
	AllDates            *string
	DropDate            *string
	InstallCompleteDate *string
	ConnectedDate       *string
	DropInstallStatus   *string
	HLDPon              *string
	OpsPon              *string
	PonOpticalStatus    *string
	raw                 sheet.Record
}

func newTrackerHome(rec sheet.Record) (TrackerHome, bool) {
	label := rec.String("label")
	if label == "" {
		return TrackerHome{}, false
	}
	return TrackerHome{
		Label:               label,
		PonNo:               integer(rec["pon_no"]),
		ZoneNo:              integer(rec["zone_no"]),
		SignUpDate:          text(rec["home_sign_up_date"]),
		AllDates:            text(rec["home_all_dates"]),
		DropDate:            text(rec["home_drop_date"]),
		InstallCompleteDate: text(rec["home_install_complete_date"]),
		ConnectedDate:       text(rec["home_connected_date"]),
		DropInstallStatus:   text(rec.First("drop_install", "drop_install_status")),
		HLDPon:              text(rec["hld_pon"]),
		OpsPon:              text(rec["ops_pon"]),
		PonOpticalStatus:    text(rec["pon_optical_status"]),
		raw:                 rec,
	}, true
}

func (h TrackerHome) Key() string           { return h.Label }
func (h TrackerHome) Payload() sheet.Record { return h.raw }
func (TrackerHome) isRow()                  {}

func (h TrackerHome) Columns() []ports.Column {
	return []ports.Column{
		{Name: "label", Value: h.Label},
		{Name: "pon_no", Value: val(h.PonNo)},
		{Name: "zone_no", Value: val(h.ZoneNo)},
		{Name: "home_sign_up_date", Value: val(h.SignUpDate)},
		{Name: "home_all_dates", Value: val(h.AllDates)},
		{Name: "home_drop_date", Value: val(h.DropDate)},
		{Name: "home_install_complete_date", Value: val(h.InstallCompleteDate)},
		{Name: "home_connected_date", Value: val(h.ConnectedDate)},
		{Name: "drop_install_status", Value: val(h.DropInstallStatus)},
		{Name: "hld_pon", Value: val(h.HLDPon)},
		{Name: "ops_pon", Value: val(h.OpsPon)},
		{Name: "pon_optical_status", Value: val(h.PonOpticalStatus)},
	}
}
