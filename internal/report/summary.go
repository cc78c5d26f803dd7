package report

import (
	"github.com/sirupsen/logrus"

	"vaultrecon/internal/recon"
)

// WriteSummary logs the per-table validation summary.
func WriteSummary(log logrus.FieldLogger, results []recon.Result) {
	log.Info("=== VALIDATION SUMMARY ===")
	for _, r := range results {
		log.Infof("Table: %s", r.TableName)
		log.Infof("  Source Table: %s", r.SourceTable)
		log.Infof("  Hub Table: %s", r.HubTable)
		log.Infof("  Satellite Table: %s", r.SatelliteTable)
		log.Infof("  Bizview Table: %s", r.BizviewTable)
		log.Infof("  Source Count: %d", r.SourceCount)
		log.Infof("  Total Rows Lost: %d", r.TotalRowsLost)
		log.Infof("  Deleted: %d", r.DeletedRecords)
		log.Infof("  Lost records sample: %d records of %d total", r.SampleSize(), r.Lost.MissingCount)
	}
}

// TotalLost sums TOTAL_ROWS_LOST across results.
func TotalLost(results []recon.Result) int64 {
	var total int64
	for _, r := range results {
		total += r.TotalRowsLost
	}
	return total
}
