package worksheet

import (
	"sort"
	"strings"

	"datahub/internal/reconcile"
)

// Worksheet names as they appear in the source workbooks.
const (
	HLDPoleSheet           = "HLD_Pole"
	HLDHomeSheet           = "HLD_Home"
	TrackerPoleSheet       = "Tracker_Pole"
	TrackerHomeSheet       = "Tracker_Home"
	NokiaExportSheet       = "Nokia_Exp"
	OneMapInstallSheet     = "1Map_Ins"
	OneMapPoleSheet        = "1Map_Pole"
	LawleyHistoricalSheet  = "Lawley Historical"
	LawleyActivationsSheet = "Lawley Activations"
	MohadinHistoricalSheet = "Mohadin Historical"
	MohadinActivationSheet = "Mohadin Activations"
)

// Destination tables.
const (
	HLDPoleTable       = "sharepoint_hld_pole"
	HLDHomeTable       = "sharepoint_hld_home"
	TrackerPoleTable   = "sharepoint_tracker_pole"
	TrackerHomeTable   = "sharepoint_tracker_home"
	NokiaExportTable   = "sharepoint_nokia_exp"
	OneMapInstallTable = "sharepoint_1map_ins"
	OneMapPoleTable    = "sharepoint_1map_pole"
	LawleyQATable      = "sharepoint_lawley_qa"
	MohadinQATable     = "sharepoint_mohadin_qa"
)

// Catalog is the fixed set of worksheet connectors.
type Catalog struct {
	jobs  []Job
	byKey map[string]Job
}

// NewCatalog builds every connector.
func NewCatalog() *Catalog {
	jobs := []Job{
		NewConnector(Descriptor{
			Name: HLDPoleSheet, Table: HLDPoleTable, KeyField: "label_1",
			File: FileLawley, InsertChunk: 100, UpdateChunk: 50,
		}, newHLDPole),
		NewConnector(Descriptor{
			Name: HLDHomeSheet, Table: HLDHomeTable, KeyField: "label",
			File: FileLawley, InsertChunk: 100, UpdateChunk: 50,
			UpdateColumns: hldHomeUpdateColumns,
		}, newHLDHome),
		NewConnector(Descriptor{
			Name: TrackerPoleSheet, Table: TrackerPoleTable, KeyField: "label_1",
			File: FileLawley, InsertChunk: 100, UpdateChunk: 50,
		}, newTrackerPole),
		NewConnector(Descriptor{
			Name: TrackerHomeSheet, Table: TrackerHomeTable, KeyField: "label", HeaderRow: 2,
			File: FileLawley, InsertChunk: 50, UpdateChunk: 50,
		}, newTrackerHome),
		NewConnector(Descriptor{
			Name: NokiaExportSheet, Table: NokiaExportTable, KeyField: "drop_number",
			File: FileLawley, InsertChunk: 100, UpdateChunk: 50,
		}, newNokiaExport),
		NewConnector(Descriptor{
			Name: OneMapInstallSheet, Table: OneMapInstallTable, KeyField: "property_id",
			File: FileLawley, InsertChunk: 25, UpdateChunk: 25,
		}, newOneMapInstall),
		NewConnector(Descriptor{
			Name: OneMapPoleSheet, Table: OneMapPoleTable, KeyColumn: "property_id",
			File: FileLawley, InsertChunk: 100, UpdateChunk: 50,
		}, newOneMapPole),
		NewConnector(qaDescriptor(LawleyHistoricalSheet, LawleyQATable, FileLawley), lawleyQA("historical")),
		NewConnector(qaDescriptor(LawleyActivationsSheet, LawleyQATable, FileLawley), lawleyQA("activations")),
		NewConnector(qaDescriptor(MohadinHistoricalSheet, MohadinQATable, FileMohadin), mohadinQA("mohadin_historical")),
		NewConnector(qaDescriptor(MohadinActivationSheet, MohadinQATable, FileMohadin), mohadinQA("mohadin_activations")),
	}

	c := &Catalog{jobs: jobs, byKey: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		c.byKey[lookupKey(j.Descriptor().Name)] = j
	}
	return c
}

func qaDescriptor(name, table string, file File) Descriptor {
	return Descriptor{
		Name: name, Table: table, KeyField: "drop_number",
		Policy: reconcile.AppendOnly, File: file, InsertChunk: 100, UpdateChunk: 100,
	}
}

// All returns every connector in catalog order.
func (c *Catalog) All() []Job {
	return append([]Job(nil), c.jobs...)
}

// Lookup finds a connector by worksheet name, ignoring case, spaces and underscores.
func (c *Catalog) Lookup(name string) (Job, bool) {
	j, ok := c.byKey[lookupKey(name)]
	return j, ok
}

// DefaultSync is the set run by a scheduled full sync. Historical QA sheets
// are one-time loads and only run when named.
func (c *Catalog) DefaultSync() []Job {
	names := []string{
		HLDPoleSheet, HLDHomeSheet, TrackerPoleSheet, TrackerHomeSheet, NokiaExportSheet,
		OneMapInstallSheet, OneMapPoleSheet, LawleyActivationsSheet, MohadinActivationSheet,
	}
	out := make([]Job, 0, len(names))
	for _, n := range names {
		if j, ok := c.Lookup(n); ok {
			out = append(out, j)
		}
	}
	return out
}

// Tables returns the distinct destination tables, sorted.
func (c *Catalog) Tables() []string {
	seen := map[string]bool{}
	var out []string
	for _, j := range c.jobs {
		t := j.Descriptor().Table
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func lookupKey(name string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(name))
}
