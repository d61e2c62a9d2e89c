package postgres

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
)

const (
	tintAttrCodeDuration = 214
	tintAttrCodeRows     = 12
	tintAttrCodeQuery    = 2

	slowQueryThreshold = 200 * time.Millisecond
)

type traceStartKey struct{}

type traceStart struct {
	sql   string
	begin time.Time
}

// queryTracer logs failed and slow statements, and every statement at debug level.
type queryTracer struct {
	baseLogger *util.LogEntry
}

func newQueryTracer(ctx context.Context) *queryTracer {
	return &queryTracer{baseLogger: util.Log(ctx)}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{sql: data.SQL, begin: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}

	elapsed := time.Since(start.begin)
	baseLog := t.baseLogger.WithContext(ctx)

	slow := elapsed > slowQueryThreshold
	failed := data.Err != nil && !isNoRows(data.Err)
	if !failed && !slow && !baseLog.Enabled(ctx, slog.LevelDebug) {
		return
	}

	log := baseLog.With(
		tint.Attr(tintAttrCodeDuration, slog.Any("duration", elapsed.String())),
		tint.Attr(tintAttrCodeRows, slog.Any("rows", strconv.FormatInt(data.CommandTag.RowsAffected(), 10))),
		tint.Attr(tintAttrCodeQuery, slog.Any("query", start.sql)),
	)
	defer log.Release()

	switch {
	case failed:
		log.WithError(data.Err).Error("storage query failed")
	case slow:
		log.Warn("storage query is slow")
	default:
		log.Debug("storage query executed")
	}
}
