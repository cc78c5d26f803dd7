package recon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"vaultrecon/pkg/models"
)

func tableMetadata(tc models.TableConfig) map[string]interface{} {
	return map[string]interface{}{
		"source_table":    tc.SourceTable,
		"hub_table":       tc.HubTable,
		"satellite_table": tc.CurSatelliteTable,
		"bizview_table":   tc.BizviewTable,
	}
}

func errorRecord(tc models.TableConfig, msg string, separator bool) Record {
	rec := Record{
		KeyError:    msg,
		KeyMetadata: tableMetadata(tc),
	}
	if separator {
		rec[KeySeparator] = true
	}
	return rec
}

// ExtractMissingRecords counts the rows returned by the table's EXCEPT query
// and samples up to limit of them as JSON records. Failures never abort the
// table: they are logged and surface as a zero count or error records.
func ExtractMissingRecords(ctx context.Context, q Querier, log logrus.FieldLogger, tc models.TableConfig, limit int) (int64, []Record) {
	except := ExceptQuery(tc)
	if except == "" {
		log.Infof("No EXCEPT query for %s", tc.SourceTable)
		return 0, []Record{}
	}

	missing, err := q.QueryInt64(ctx, MissingCountQuery(except))
	if err != nil {
		log.WithError(err).Error("Error getting total missing count")
		missing = 0
	} else {
		log.Infof("Total missing records count: %d", missing)
	}

	rows, err := q.QueryStrings(ctx, MissingSampleQuery(except, limit))
	if err != nil {
		log.WithError(err).Error("Error processing JSON results")
		return missing, []Record{errorRecord(tc, fmt.Sprintf("JSON processing error: %v", err), false)}
	}

	records := make([]Record, 0, len(rows)+1)
	for _, row := range rows {
		if !row.Valid || row.String == "" {
			records = append(records, errorRecord(tc, "Empty JSON result", true))
			continue
		}

		rec, err := decodeRecord(row.String)
		if err != nil {
			log.WithError(err).Error("Error parsing JSON")
			records = append(records, errorRecord(tc, fmt.Sprintf("Failed to parse JSON: %v", err), true))
			continue
		}

		meta := tableMetadata(tc)
		meta["record_type"] = "missing"
		rec[KeyMetadata] = meta
		rec[KeySeparator] = true
		records = append(records, rec)
	}

	if missing > int64(limit) {
		note := Record{KeyNote: fmt.Sprintf("Showing %d of %d total missing records", limit, missing)}
		for k, v := range tableMetadata(tc) {
			note[k] = v
		}
		records = append(records, note)
	}

	return missing, records
}

// decodeRecord parses one RECORD_JSON value, keeping numbers verbatim so
// large keys survive the round trip.
func decodeRecord(s string) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("extra data after JSON object at offset %d", dec.InputOffset())
	}
	return rec, nil
}
