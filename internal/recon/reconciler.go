package recon

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"vaultrecon/pkg/errors"
	"vaultrecon/pkg/models"
)

// Querier runs read-only statements against the warehouse.
type Querier interface {
	QueryInt64(ctx context.Context, query string) (int64, error)
	QueryStrings(ctx context.Context, query string) ([]sql.NullString, error)
}

// Options control a reconciliation run.
type Options struct {
	SampleLimit int
	// MeasureLayers counts the hub, link, satellite and business view
	// instead of deriving them from the source count and EXCEPT result.
	MeasureLayers bool
	// Progress, when set, is called after each table with the number of
	// tables processed so far.
	Progress func(done int, table string, status Status)
}

// Reconciler computes one summary row per configured table.
type Reconciler struct {
	q    Querier
	log  logrus.FieldLogger
	opts Options
}

// NewReconciler creates a reconciler. A nil logger uses the logrus standard logger.
func NewReconciler(q Querier, log logrus.FieldLogger, opts Options) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 10
	}
	return &Reconciler{q: q, log: log, opts: opts}
}

// Run reconciles the tables in order. A table that fails is logged and
// skipped; cancellation stops the run and returns what was computed so far.
func (r *Reconciler) Run(ctx context.Context, tables []models.TableConfig) ([]Result, error) {
	results := make([]Result, 0, len(tables))
	for i, tc := range tables {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := r.ReconcileTable(ctx, tc)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			r.log.WithField("source_table", tc.SourceTable).
				WithError(err).
				Errorf("CRITICAL ERROR processing %s", tc.SourceTable)
			r.progress(i+1, tc.TableName(), StatusFailed)
			continue
		}
		results = append(results, res)
		r.progress(i+1, res.TableName, res.Status())
	}
	return results, nil
}

func (r *Reconciler) progress(done int, table string, status Status) {
	if r.opts.Progress != nil {
		r.opts.Progress(done, table, status)
	}
}

// ReconcileTable counts each layer for one table pair and samples the rows
// lost between source and hub.
func (r *Reconciler) ReconcileTable(ctx context.Context, tc models.TableConfig) (Result, error) {
	if tc.SourceTable == "" || tc.HubTable == "" {
		return Result{}, errors.ValidationError("tables", tc.SourceTable, "source_table and hub_table are required")
	}
	name := tc.TableName()
	log := r.log.WithField("table", name)

	log.Info(strings.Repeat("=", 50))
	log.Infof("Processing table: %s", name)
	log.Infof("Source: %s", tc.SourceTable)
	log.Infof("Hub: %s", tc.HubTable)
	log.Infof("Satellite: %s", tc.CurSatelliteTable)
	log.Infof("Bizview: %s", tc.BizviewTable)
	log.Info(strings.Repeat("=", 50))

	sourceCount, err := r.q.QueryInt64(ctx, CountQuery(tc.SourceTable))
	if err != nil {
		log.WithError(err).Errorf("ERROR counting source table records for %s", name)
		sourceCount = 0
	} else {
		log.Infof("Source table total records: %d", sourceCount)
	}

	nonDeleted, deleted := sourceCount, int64(0)
	if tc.DeletedColumn != "" {
		n, err := r.q.QueryInt64(ctx, NonDeletedCountQuery(tc.SourceTable, tc.DeletedColumn))
		if err != nil {
			log.WithError(err).Errorf("ERROR processing deleted records for %s", name)
		} else {
			nonDeleted = n
			deleted = sourceCount - n
			if deleted < 0 {
				// the source count failed or the table grew between statements
				deleted = 0
			}
			log.Infof("Source non-deleted records: %d", nonDeleted)
			log.Infof("Deleted records: %d", deleted)
		}
	}

	sourceToHub, sample := ExtractMissingRecords(ctx, r.q, log, tc, r.opts.SampleLimit)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		TableName:       name,
		SourceTable:     tc.SourceTable,
		HubTable:        tc.HubTable,
		SatelliteTable:  tc.CurSatelliteTable,
		BizviewTable:    tc.BizviewTable,
		SourceCount:     nonDeleted,
		SourceToHubLoss: sourceToHub,
		DeletedRecords:  deleted,
		SampleLimit:     r.opts.SampleLimit,
	}

	hub := nonDeleted - sourceToHub
	res.HubCount, res.LinkCount, res.CurrentSatelliteCount, res.BizviewCount = hub, hub, hub, hub
	if r.opts.MeasureLayers {
		r.measureLayers(ctx, log, tc, &res)
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
	}

	// deleted rows are not losses
	res.TotalRowsLost = res.SourceToHubLoss + res.HubToLinkLoss + res.HubToSatLoss +
		res.LinkToSatLoss + res.SatToBizviewLoss

	res.Lost = newLostRecords(sample, sourceToHub, deleted)
	details, err := json.MarshalIndent(res.Lost, "", "    ")
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeReconcileFailed, "Failed to serialize lost records").
			WithContext("table", name)
	}
	res.LostRecordsDetails = details

	return res, nil
}

// measureLayers replaces the derived layer counts with real ones. A layer
// that cannot be counted keeps its derived value.
func (r *Reconciler) measureLayers(ctx context.Context, log logrus.FieldLogger, tc models.TableConfig, res *Result) {
	count := func(layer, table, key string, fallback int64) int64 {
		if table == "" {
			return fallback
		}
		query := CountQuery(table)
		if key != "" {
			query = DistinctCountQuery(table, key)
		}
		n, err := r.q.QueryInt64(ctx, query)
		if err != nil {
			log.WithError(err).Errorf("ERROR counting %s records in %s", layer, table)
			return fallback
		}
		log.Infof("%s records: %d", layer, n)
		return n
	}

	res.HubCount = count("Hub", tc.HubTable, "", res.HubCount)
	res.LinkCount = count("Link", tc.LinkTable, "", res.HubCount)
	res.CurrentSatelliteCount = count("Current satellite", tc.CurSatelliteTable, "", res.HubCount)
	res.BizviewCount = count("Bizview", tc.BizviewTable, tc.BizviewKey, res.CurrentSatelliteCount)

	loss := func(upstream, downstream int64) int64 {
		if upstream > downstream {
			return upstream - downstream
		}
		return 0
	}

	if tc.LinkTable != "" {
		res.HubToLinkLoss = loss(res.HubCount, res.LinkCount)
		res.LinkToSatLoss = loss(res.LinkCount, res.CurrentSatelliteCount)
	}
	res.HubToSatLoss = loss(res.HubCount, res.CurrentSatelliteCount)
	res.SatToBizviewLoss = loss(res.CurrentSatelliteCount, res.BizviewCount)
}
