package worksheet

import (
	"time"

	"datahub/domain/sheet"
	"datahub/ports"
)

// NokiaExport is an ONT activation measurement exported from the Nokia system.
type NokiaExport struct {
	DropNumber         string
	SerialNumber       *string
	Timestamp          *time.Time
	OLTAddress         *string
	ONTRxSignal        *float64
	LinkBudgetONTToOLT *float64
	OLTRxSignal        *float64
	LinkBudgetOLTToONT *float64
	Status             *string
	Latitude           *float64
	Longitude          *float64
	CurrentONTRx       *float64
	Team               *string
	Date               *time.Time
	raw                sheet.Record
}

func newNokiaExport(rec sheet.Record) (NokiaExport, bool) {
	drop := rec.String("drop_number")
	if drop == "" {
		return NokiaExport{}, false
	}
	return NokiaExport{
		DropNumber:         drop,
		SerialNumber:       text(rec["serial_number"]),
		Timestamp:          timestamp(rec["timestamp"]),
		OLTAddress:         text(rec["olt_address"]),
		ONTRxSignal:        decimal(rec["ont_rx_sig_dbm"]),
		LinkBudgetONTToOLT: decimal(rec.First("link_budget_ont_olt_db", "link_budget_ont_to_olt_db")),
		OLTRxSignal:        decimal(rec["olt_rx_sig_dbm"]),
		LinkBudgetOLTToONT: decimal(rec.First("link_budget_olt_ont_db", "link_budget_olt_to_ont_db")),
		Status:             text(rec["status"]),
		Latitude:           decimal(rec["latitude"]),
		Longitude:          decimal(rec["longitude"]),
		CurrentONTRx:       decimal(rec["current_ont_rx"]),
		Team:               text(rec["team"]),
		Date:               timestamp(rec["date"]),
		raw:                rec,
	}, true
}

func (n NokiaExport) Key() string           { return n.DropNumber }
func (n NokiaExport) Payload() sheet.Record { return n.raw }
func (NokiaExport) isRow()                  {}

func (n NokiaExport) Columns() []ports.Column {
	return []ports.Column{
		{Name: "drop_number", Value: n.DropNumber},
		{Name: "serial_number", Value: val(n.SerialNumber)},
		{Name: "timestamp", Value: val(n.Timestamp)},
		{Name: "olt_address", Value: val(n.OLTAddress)},
		{Name: "ont_rx_sig_dbm", Value: val(n.ONTRxSignal)},
		{Name: "link_budget_ont_to_olt_db", Value: val(n.LinkBudgetONTToOLT)},
		{Name: "olt_rx_sig_dbm", Value: val(n.OLTRxSignal)},
		{Name: "link_budget_olt_to_ont_db", Value: val(n.LinkBudgetOLTToONT)},
		{Name: "status", Value: val(n.Status)},
		{Name: "latitude", Value: val(n.Latitude)},
		{Name: "longitude", Value: val(n.Longitude)},
		{Name: "current_ont_rx", Value: val(n.CurrentONTRx)},
		{Name: "team", Value: val(n.Team)},
		{Name: "date", Value: val(n.Date)},
	}
}
