package recon

import (
	"encoding/json"
	"strconv"
)

// Record is one entry of a lost-records sample: a missing source row, an
// error placeholder or the trailing sample-size note.
type Record map[string]interface{}

// Record keys added around warehouse rows.
const (
	KeyMetadata  = "__metadata"
	KeySeparator = "__record_separator"
	KeyError     = "error"
	KeyNote      = "NOTE"
)

// LostRecords is serialized into LOST_RECORDS_DETAILS. Only the source to
// hub transition is sampled; the other transitions stay empty.
type LostRecords struct {
	SourceToHub        []Record `json:"source_to_hub"`
	MissingCount       int64    `json:"missing_count"`
	HubToSatellite     []Record `json:"hub_to_satellite"`
	HubToLink          []Record `json:"hub_to_link"`
	LinkToSatellite    []Record `json:"link_to_satellite"`
	SatelliteToBizview []Record `json:"satellite_to_bizview"`
	Deleted            int64    `json:"deleted"`
}

func newLostRecords(sample []Record, missing, deleted int64) LostRecords {
	if sample == nil {
		sample = []Record{}
	}
	return LostRecords{
		SourceToHub:        sample,
		MissingCount:       missing,
		HubToSatellite:     []Record{},
		HubToLink:          []Record{},
		LinkToSatellite:    []Record{},
		SatelliteToBizview: []Record{},
		Deleted:            deleted,
	}
}

// Result is the summary row emitted for one table.
type Result struct {
	TableName             string          `json:"TABLE_NAME"`
	SourceTable           string          `json:"SOURCE_TABLE"`
	HubTable              string          `json:"HUB_TABLE"`
	SatelliteTable        string          `json:"SATELLITE_TABLE"`
	BizviewTable          string          `json:"BIZVIEW_TABLE"`
	SourceCount           int64           `json:"SOURCE_COUNT"`
	HubCount              int64           `json:"HUB_COUNT"`
	LinkCount             int64           `json:"LINK_COUNT"`
	CurrentSatelliteCount int64           `json:"CURRENT_SATELLITE_COUNT"`
	BizviewCount          int64           `json:"BIZVIEW_COUNT"`
	SourceToHubLoss       int64           `json:"SOURCE_TO_HUB_LOSS"`
	HubToLinkLoss         int64           `json:"HUB_TO_LINK_LOSS"`
	HubToSatLoss          int64           `json:"HUB_TO_SAT_LOSS"`
	LinkToSatLoss         int64           `json:"LINK_TO_SAT_LOSS"`
	SatToBizviewLoss      int64           `json:"SAT_TO_BIZVIEW_LOSS"`
	TotalRowsLost         int64           `json:"TOTAL_ROWS_LOST"`
	DeletedRecords        int64           `json:"DELETED_RECORDS"`
	LostRecordsDetails    json.RawMessage `json:"LOST_RECORDS_DETAILS"`

	Lost        LostRecords `json:"-"`
	SampleLimit int         `json:"-"`
}

// Columns is the fixed output schema, in order.
var Columns = []string{
	"TABLE_NAME",
	"SOURCE_TABLE",
	"HUB_TABLE",
	"SATELLITE_TABLE",
	"BIZVIEW_TABLE",
	"SOURCE_COUNT",
	"HUB_COUNT",
	"LINK_COUNT",
	"CURRENT_SATELLITE_COUNT",
	"BIZVIEW_COUNT",
	"SOURCE_TO_HUB_LOSS",
	"HUB_TO_LINK_LOSS",
	"HUB_TO_SAT_LOSS",
	"LINK_TO_SAT_LOSS",
	"SAT_TO_BIZVIEW_LOSS",
	"TOTAL_ROWS_LOST",
	"DELETED_RECORDS",
	"LOST_RECORDS_DETAILS",
}

// Values returns the row in Columns order with numbers rendered in base 10.
func (r Result) Values() []string {
	itoa := func(n int64) string { return strconv.FormatInt(n, 10) }
	return []string{
		r.TableName,
		r.SourceTable,
		r.HubTable,
		r.SatelliteTable,
		r.BizviewTable,
		itoa(r.SourceCount),
		itoa(r.HubCount),
		itoa(r.LinkCount),
		itoa(r.CurrentSatelliteCount),
		itoa(r.BizviewCount),
		itoa(r.SourceToHubLoss),
		itoa(r.HubToLinkLoss),
		itoa(r.HubToSatLoss),
		itoa(r.LinkToSatLoss),
		itoa(r.SatToBizviewLoss),
		itoa(r.TotalRowsLost),
		itoa(r.DeletedRecords),
		string(r.LostRecordsDetails),
	}
}

// SampleSize is the number of sampled rows, not counting the trailing note
// added when more rows are missing than the sample limit.
func (r Result) SampleSize() int {
	n := len(r.Lost.SourceToHub)
	if r.Lost.MissingCount > int64(r.SampleLimit) && n > 0 {
		n--
	}
	return n
}

// HasLoss reports whether any transition lost rows.
func (r Result) HasLoss() bool {
	return r.TotalRowsLost > 0
}

// Status is the outcome of one table in a run.
type Status int

const (
	// StatusReconciled means no rows were lost.
	StatusReconciled Status = iota
	// StatusLossy means the table was reconciled and lost rows.
	StatusLossy
	// StatusFailed means the table was skipped after an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReconciled:
		return "reconciled"
	case StatusLossy:
		return "lossy"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Status reports whether the result lost rows.
func (r Result) Status() Status {
	if r.HasLoss() {
		return StatusLossy
	}
	return StatusReconciled
}
