package worksheet

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"datahub/domain/sheet"
	"datahub/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSheet is an in-memory worksheet built from plain values; nil is an empty cell.
type fakeSheet struct {
	name string
	rows [][]any
}

func (f *fakeSheet) Name() string     { return f.name }
func (f *fakeSheet) RowCount() int    { return len(f.rows) }
func (f *fakeSheet) ColumnCount() int { return len(f.rows[0]) }

func (f *fakeSheet) Row(n int) (sheet.Row, error) {
	row := sheet.Row{Number: n}
	if n < 1 || n > len(f.rows) {
		return row, nil
	}
	for i, v := range f.rows[n-1] {
		if v == nil {
			continue
		}
		var raw sheet.RawValue
		switch t := v.(type) {
		case sheet.RawValue:
			raw = t
		default:
			raw = sheet.Primitive{V: t}
		}
		row.Cells = append(row.Cells, sheet.Cell{Col: i + 1, Value: raw})
	}
	return row, nil
}

func (f *fakeSheet) Rows() ([]sheet.Row, error) {
	var out []sheet.Row
	for i := range f.rows {
		r, _ := f.Row(i + 1)
		if len(r.Cells) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]map[string]ports.Row
}

func newMemStore() *memStore { return &memStore{rows: map[string]map[string]ports.Row{}} }

func (m *memStore) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, k := range keys {
		if _, ok := m.rows[table][k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) Insert(ctx context.Context, table string, row ports.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[table] == nil {
		m.rows[table] = map[string]ports.Row{}
	}
	m.rows[table][row.Key] = row
	return nil
}

func (m *memStore) Update(ctx context.Context, table, keyColumn string, row ports.Row, columns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[table][row.Key]; !ok {
		return fmt.Errorf("missing %s", row.Key)
	}
	m.rows[table][row.Key] = row
	return nil
}

func (m *memStore) Count(ctx context.Context, table string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table]), nil
}

func (m *memStore) CountBy(ctx context.Context, table, column string) (map[string]int, error) {
	return nil, nil
}

func (m *memStore) Reset(ctx context.Context, table string) (int64, error) { return 0, nil }
func (m *memStore) Ping(ctx context.Context) error                         { return nil }

func column(row ports.Row, name string) any {
	for _, c := range row.Columns {
		if c.Name == name {
			return c.Value
		}
	}
	return nil
}

func TestHLDPoleExtractSkipsBlankRows(t *testing.T) {
	ws := &fakeSheet{name: HLDPoleSheet, rows: [][]any{
		{"LABEL_1", "Lat", "Lon", "PON No"},
		{"P1", "-26.1", "28.5", 12.0},
		{"", "", "", nil},
		{"P2", "-26.2", "28.6", "7"},
		{nil, nil, "footer", nil},
	}}

	job, ok := NewCatalog().Lookup(HLDPoleSheet)
	require.True(t, ok)
	conn := job.(*Connector[HLDPole])

	poles, err := conn.Extract(context.Background(), ws)
	require.NoError(t, err)
	require.Len(t, poles, 2)

	assert.Equal(t, "P1", poles[0].Key())
	assert.Equal(t, "P2", poles[1].Key())
	require.NotNil(t, poles[0].Lat)
	assert.InDelta(t, -26.1, *poles[0].Lat, 1e-9)
	require.NotNil(t, poles[1].PonNo)
	assert.Equal(t, int64(7), *poles[1].PonNo)
	assert.Equal(t, "-26.1", poles[0].Payload()["lat"])
}

func TestTrackerHomeReadsHeaderFromSecondRow(t *testing.T) {
	ws := &fakeSheet{name: TrackerHomeSheet, rows: [][]any{
		{sheet.Formula{Expr: "COUNTA(A3:A9999)", Result: sheet.Primitive{V: 2.0}}, nil, nil},
		{"Label", "Drop Install", "Zone No"},
		{"H1", "Installed", 3.0},
		{"H2", nil, 4.0},
	}}

	job, _ := NewCatalog().Lookup(TrackerHomeSheet)
	homes, err := job.(*Connector[TrackerHome]).Extract(context.Background(), ws)

	require.NoError(t, err)
	require.Len(t, homes, 2)
	assert.Equal(t, "Installed", *homes[0].DropInstallStatus)
	assert.Nil(t, homes[1].DropInstallStatus)
	assert.Equal(t, int64(4), *homes[1].ZoneNo)
}

func TestQAExtractFiltersDropNumbers(t *testing.T) {
	ws := &fakeSheet{name: LawleyActivationsSheet, rows: [][]any{
		{"Date", "Drop Number", "Step 1: Property Frontage (house/street number visible)", "Completed Photos", "User"},
		{"2025-09-24", "DR1751832", true, "Yes", "thabo"},
		{nil, "Drop Number", nil, nil, nil},
		{"2025-09-25", 1751833.0, false, "no", nil},
		{"2025-09-25", "n/a", true, nil, nil},
	}}

	job, _ := NewCatalog().Lookup("lawley activations")
	records, err := job.(*Connector[LawleyQA]).Extract(context.Background(), ws)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "DR1751832", records[0].Key())
	assert.Equal(t, "1751833", records[1].Key())
	assert.Equal(t, "activations", records[0].Payload()["_source"])
	assert.True(t, *records[0].Steps[0])
	assert.False(t, *records[1].Steps[0])
	assert.True(t, *records[0].CompletedPhotos)
	assert.Equal(t, "thabo", *records[0].UserName)
	assert.Equal(t, time.Date(2025, 9, 24, 0, 0, 0, 0, time.UTC), *records[0].Date)
}

func TestMohadinQAUsesShiftedStepHeaders(t *testing.T) {
	rec := sheet.Record{
		"drop_number": "DR42",
		"step_7_ont_barcode_scan_barcode_photo_of_label": "x",
		"step_10_customer_signature":                     true,
		"zone":                                           "5",
		"pon":                                            11.0,
	}

	q, ok := mohadinQA("mohadin_activations")(rec)
	require.True(t, ok)

	assert.True(t, *q.Steps[7])
	assert.True(t, *q.Steps[11])
	assert.Nil(t, q.Steps[0])
	assert.Equal(t, int64(5), *q.ZoneNo)
	assert.Equal(t, int64(11), *q.PonNo)
	assert.Equal(t, "mohadin_activations", column(ports.Row{Columns: q.Columns()}, "source"))
	_, tagged := rec["_source"]
	assert.False(t, tagged, "building a row must not mutate the extracted record")
}

func TestOneMapPoleKeyFallback(t *testing.T) {
	withFID, ok := newOneMapPole(sheet.Record{
		"onemapfid": "F-100", "property_id": "PR-1", "label": "LAW.P.A001",
		"planned_location_latitude": -26.3, "actual_device_location_latitude": -26.9,
	})
	require.True(t, ok)
	assert.Equal(t, "F-100", withFID.Key())
	assert.Equal(t, "LAW.P.A001", *withFID.PoleNumber)
	assert.InDelta(t, -26.3, *withFID.Latitude, 1e-9)

	withProperty, ok := newOneMapPole(sheet.Record{"property_id": 55123.0, "pole_number": "LAW.P.B002"})
	require.True(t, ok)
	assert.Equal(t, "55123", withProperty.Key())
	assert.Equal(t, "LAW.P.B002", *withProperty.PoleNumber)

	_, ok = newOneMapPole(sheet.Record{"job_id": "J1"})
	assert.False(t, ok)
}

func TestNokiaExportRenamesLinkBudgets(t *testing.T) {
	n, ok := newNokiaExport(sheet.Record{
		"drop_number":            "DR9",
		"link_budget_ont_olt_db": "18.5",
		"link_budget_olt_ont_db": 19.25,
		"date":                   "2025-10-01T00:00:00.000Z",
	})
	require.True(t, ok)
	row := ports.Row{Columns: n.Columns()}
	assert.Equal(t, 18.5, column(row, "link_budget_ont_to_olt_db"))
	assert.Equal(t, 19.25, column(row, "link_budget_olt_to_ont_db"))
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), column(row, "date"))
	assert.Nil(t, column(row, "serial_number"))
}

func TestEveryConnectorProjectsItsKeyColumn(t *testing.T) {
	samples := map[string]sheet.Record{
		HLDPoleSheet:           {"label_1": "K"},
		HLDHomeSheet:           {"label": "K"},
		TrackerPoleSheet:       {"label_1": "K"},
		TrackerHomeSheet:       {"label": "K"},
		NokiaExportSheet:       {"drop_number": "K"},
		OneMapInstallSheet:     {"property_id": "K"},
		OneMapPoleSheet:        {"onemapfid": "K"},
		LawleyHistoricalSheet:  {"drop_number": "DRK"},
		LawleyActivationsSheet: {"drop_number": "DRK"},
		MohadinHistoricalSheet: {"drop_number": "DRK"},
		MohadinActivationSheet: {"drop_number": "DRK"},
	}

	catalog := NewCatalog()
	require.Len(t, catalog.All(), len(samples))

	for _, job := range catalog.All() {
		desc := job.Descriptor()
		rec := samples[desc.Name]
		require.NotNil(t, rec, desc.Name)

		row := buildRow(t, job, rec)
		seen := map[string]bool{}
		for _, c := range row.Columns {
			assert.False(t, seen[c.Name], "%s: duplicate column %s", desc.Name, c.Name)
			seen[c.Name] = true
		}
		assert.Equal(t, row.Key, column(row, desc.KeyColumn), desc.Name)
		for _, u := range desc.UpdateColumns {
			assert.True(t, seen[u], "%s: update column %s not projected", desc.Name, u)
		}
	}
}

func buildRow(t *testing.T, job Job, rec sheet.Record) ports.Row {
	t.Helper()
	project := func(r Row, ok bool) ports.Row {
		require.True(t, ok)
		return ports.Row{Key: r.Key(), Columns: r.Columns(), Payload: r.Payload()}
	}
	switch c := job.(type) {
	case *Connector[HLDPole]:
		return project(c.build(rec))
	case *Connector[HLDHome]:
		return project(c.build(rec))
	case *Connector[TrackerPole]:
		return project(c.build(rec))
	case *Connector[TrackerHome]:
		return project(c.build(rec))
	case *Connector[NokiaExport]:
		return project(c.build(rec))
	case *Connector[OneMapInstall]:
		return project(c.build(rec))
	case *Connector[OneMapPole]:
		return project(c.build(rec))
	case *Connector[LawleyQA]:
		return project(c.build(rec))
	case *Connector[MohadinQA]:
		return project(c.build(rec))
	}
	t.Fatalf("unknown connector %T", job)
	return ports.Row{}
}

func TestRunAppendOnlyKeepsFirstRecord(t *testing.T) {
	store := newMemStore()
	job, _ := NewCatalog().Lookup(LawleyActivationsSheet)
	opts := Options{ProjectID: "4f8e2c1a-0000-4000-8000-000000000001", SourceFile: "https://example.sharepoint.com/lawley.xlsx"}

	first := &fakeSheet{name: LawleyActivationsSheet, rows: [][]any{
		{"Drop Number", "Comment"},
		{"DR1", "first"},
		{"DR2", "first"},
	}}
	report, err := job.Run(context.Background(), first, store, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Inserted)

	second := &fakeSheet{name: LawleyActivationsSheet, rows: [][]any{
		{"Drop Number", "Comment"},
		{"DR2", "second"},
		{"DR3", "second"},
	}}
	report, err = job.Run(context.Background(), second, store, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 1, report.Skipped)

	dr2 := store.rows[LawleyQATable]["DR2"]
	assert.Equal(t, "first", column(dr2, "comment"))
	assert.Equal(t, opts.ProjectID, dr2.ProjectID)
	assert.Equal(t, opts.SourceFile, dr2.SourceFile)
	assert.False(t, dr2.SyncedAt.IsZero())
}

func TestExtractFailsWithoutHeaders(t *testing.T) {
	ws := &fakeSheet{name: HLDPoleSheet, rows: [][]any{{nil, nil}, {"P1", "x"}}}
	job, _ := NewCatalog().Lookup(HLDPoleSheet)
	_, err := job.Run(context.Background(), ws, newMemStore(), Options{})
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()

	for _, name := range []string{"HLD_Pole", "hld pole", "1map_pole", "Mohadin_Activations"} {
		_, ok := c.Lookup(name)
		assert.True(t, ok, name)
	}
	_, ok := c.Lookup("Unknown")
	assert.False(t, ok)

	var order []string
	for _, j := range c.DefaultSync() {
		order = append(order, j.Descriptor().Name)
	}
	assert.Equal(t, []string{
		"HLD_Pole", "HLD_Home", "Tracker_Pole", "Tracker_Home", "Nokia_Exp",
		"1Map_Ins", "1Map_Pole", "Lawley Activations", "Mohadin Activations",
	}, order)
	assert.Len(t, c.Tables(), 9)

	home, _ := c.Lookup(TrackerHomeSheet)
	assert.Equal(t, 2, home.Descriptor().HeaderRow)
	qa, _ := c.Lookup(MohadinHistoricalSheet)
	assert.True(t, qa.Descriptor().AppendOnly())
	assert.Equal(t, FileMohadin, qa.Descriptor().File)
}

func TestFieldCoercions(t *testing.T) {
	assert.Nil(t, text(""))
	assert.Equal(t, "12.5", *text(12.5))

	assert.Equal(t, int64(12), *integer("12"))
	assert.Equal(t, int64(3), *integer(3.0))
	assert.Nil(t, integer("twelve"))

	assert.InDelta(t, 28.5, *decimal("28,5"), 1e-9)
	assert.InDelta(t, 1234.5, *decimal("1,234.5"), 1e-9)
	assert.InDelta(t, 1234567, *decimal("1,234,567"), 1e-9)
	assert.InDelta(t, 1234, *decimal("1,234"), 1e-9)
	assert.InDelta(t, 0.125, *decimal("0,125"), 1e-9)
	assert.Nil(t, integer(math.Pow(2, 63)), "2^63 does not fit an int64")
	assert.Equal(t, int64(-1<<63), *integer(-math.Pow(2, 63)))
	assert.Nil(t, decimal(true))

	assert.True(t, *boolean("Yes"))
	assert.True(t, *boolean(1.0))
	assert.False(t, *boolean("no"))
	assert.Nil(t, boolean(""))
	assert.Nil(t, boolean("maybe"))

	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), *timestamp("2025-01-05T00:00:00.000Z"))
	assert.Equal(t, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), *timestamp("05/01/2025"))
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), *timestamp(45292.5))
	assert.Nil(t, timestamp("soon"))
}
