package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"vaultrecon/internal/recon"
	"vaultrecon/pkg/errors"
)

// Format selects how results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", errors.ValidationError("format", s, "must be one of table, json, csv")
}

// Meta describes the run a report belongs to.
type Meta struct {
	ConfigFile  string    `json:"config_file,omitempty"`
	Revision    string    `json:"revision,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

type jsonReport struct {
	Meta
	Tables        int            `json:"tables"`
	TotalRowsLost int64          `json:"total_rows_lost"`
	Results       []recon.Result `json:"results"`
}

// Render writes the results in the requested format.
func Render(w io.Writer, results []recon.Result, format Format, meta Meta) error {
	var err error
	switch format {
	case FormatTable, "":
		err = renderTable(w, results)
	case FormatJSON:
		err = renderJSON(w, results, meta)
	case FormatCSV:
		err = renderCSV(w, results)
	default:
		return errors.ValidationError("format", string(format), "unsupported report format")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeReportFailed, "Failed to render report").
			WithContext("format", string(format))
	}
	return nil
}

func renderTable(w io.Writer, results []recon.Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"Table", "Source", "Hub", "Link", "Sat", "Bizview",
		"Src>Hub", "Hub>Link", "Hub>Sat", "Link>Sat", "Sat>Biz",
		"Lost", "Deleted", "Sample",
	})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range results {
		table.Append([]string{
			r.TableName,
			count(r.SourceCount),
			count(r.HubCount),
			count(r.LinkCount),
			count(r.CurrentSatelliteCount),
			count(r.BizviewCount),
			loss(r.SourceToHubLoss),
			loss(r.HubToLinkLoss),
			loss(r.HubToSatLoss),
			loss(r.LinkToSatLoss),
			loss(r.SatToBizviewLoss),
			loss(r.TotalRowsLost),
			count(r.DeletedRecords),
			fmt.Sprintf("%d/%d", r.SampleSize(), r.Lost.MissingCount),
		})
	}

	table.Render()
	return nil
}

func count(n int64) string {
	return strconv.FormatInt(n, 10)
}

func loss(n int64) string {
	if n > 0 {
		return color.RedString("%d", n)
	}
	return color.GreenString("0")
}

func renderJSON(w io.Writer, results []recon.Result, meta Meta) error {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}
	if results == nil {
		results = []recon.Result{}
	}

	out := jsonReport{
		Meta:    meta,
		Tables:  len(results),
		Results: results,
	}
	for _, r := range results {
		out.TotalRowsLost += r.TotalRowsLost
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderCSV(w io.Writer, results []recon.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recon.Columns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
