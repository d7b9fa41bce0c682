// Package ingest drives one GeoJSON document into one table: schema
// resolution, then a parse → encode → load pipeline feeding a bulk-copy
// session that either commits every accepted row or none.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"geoload/internal/loader"
	"geoload/internal/metrics"
	"geoload/internal/parser/geojson"
	"geoload/internal/schema"
	"geoload/internal/storage"
	"geoload/internal/transformer"
	"geoload/pkg/records"
)

const (
	defaultChannelBuffer  = 256
	defaultMaxSkipDetails = 100
)

// Source is an input document. Open may be called more than once: a full
// pre-scan reads the document twice.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Logger is the minimal logging interface used by the runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Options tunes a Runner.
type Options struct {
	Schema schema.Options
	// SampleSize > 0 infers the schema from the first SampleSize valid
	// features; the rest are streamed without a second read. 0 scans the
	// whole document first, which allows NOT NULL columns.
	SampleSize int
	// Truncate empties the table inside the copy transaction.
	Truncate          bool
	UnknownProperties transformer.UnknownPolicy
	ChannelBuffer     int
	MaxSkipDetails    int
}

// Runner ingests documents into Repo. A Runner may be reused sequentially;
// concurrent Ingest calls need their own Runner.
type Runner struct {
	Repo    storage.Repository
	Logger  Logger
	Options Options
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return r.Logger.Printf
}

// parsed is one parse-stage result: a feature or a skip.
type parsed struct {
	f    *records.Feature
	skip *Skip
}

// encoded is one encode-stage result: a row or a skip.
type encoded struct {
	row  *transformer.Row
	skip *Skip
}

// input is an open document plus anything already read from it.
type input struct {
	rc      io.ReadCloser
	dec     *geojson.Decoder
	pending []parsed
}

func (in *input) close() {
	if in != nil && in.rc != nil {
		_ = in.rc.Close()
	}
}

// Ingest loads src into table (derived from src.Name() when empty).
//
// Feature-level problems are skipped and reported in the Summary. Any fatal
// error aborts the copy session, so the table receives no rows from this
// run, and is returned as a *StageError.
func (r *Runner) Ingest(ctx context.Context, src Source, table string) (sum Summary, err error) {
	if r.Repo == nil {
		return Summary{}, fmt.Errorf("ingest: Repo is required")
	}
	logf := r.logger()
	start := time.Now()
	sum.Outcome = OutcomeAborted

	defer func() {
		sum.Duration = time.Since(start)
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordStep("ingest", status, sum.Duration)
		metrics.IncCounter(metrics.RecordsTotal, float64(sum.Attempted), metrics.Labels{"kind": "attempted"})
		metrics.IncCounter(metrics.RecordsTotal, float64(sum.Loaded), metrics.Labels{"kind": "loaded"})
		metrics.IncCounter(metrics.RecordsTotal, float64(sum.Skipped), metrics.Labels{"kind": "skipped"})
	}()

	name, err := tableName(src, table)
	if err != nil {
		return sum, stageErr(StageResolve, err)
	}
	sum.Table = name

	t0 := time.Now()
	ts, in, err := r.infer(ctx, src, name)
	defer in.close()
	if err != nil {
		return sum, r.failed(err, t0)
	}
	ts, created, err := r.prepareTable(ctx, ts)
	if err != nil {
		return sum, r.failed(err, t0)
	}
	sum.Created = created
	r.done(StageResolve, t0)

	enc, err := transformer.NewEncoder(ts, transformer.EncoderOptions{
		Geometry:          r.Repo.GeometryEncoding(),
		UnknownProperties: r.Options.UnknownProperties,
	})
	if err != nil {
		return sum, r.failed(stageErr(StageResolve, err), t0)
	}

	if in == nil {
		t0 = time.Now()
		rc, err := src.Open(ctx)
		if err != nil {
			return sum, r.failed(stageErr(StageOpen, err), t0)
		}
		in = &input{rc: rc, dec: geojson.NewDecoder(rc)}
		defer in.close()
	}

	t0 = time.Now()
	coord := loader.New(r.Repo, ts.Name, ts.ColumnNames(), storage.CopyOptions{Truncate: r.Options.Truncate})
	if err := coord.Open(ctx); err != nil {
		return sum, r.failed(stageErr(StageCopyOpen, err), t0)
	}
	r.done(StageCopyOpen, t0)

	t0 = time.Now()
	if err := r.stream(ctx, in, enc, coord, &sum); err != nil {
		r.failed(err, t0)
		if aerr := coord.Abort(ctx, err); aerr != nil {
			logf("stage=abort error=%v", aerr)
		}
		sum.Loaded = 0
		logf("table=%s outcome=%s attempted=%d skipped=%d error=%v", name, coord.State(), sum.Attempted, sum.Skipped, err)
		return sum, err
	}

	t0 = time.Now()
	res, err := coord.Finish(ctx)
	if err != nil {
		return sum, r.failed(stageErr(StageFinalize, err), t0)
	}
	r.done(StageFinalize, t0)

	sum.Loaded = res.Accepted
	sum.Outcome = OutcomeCommitted
	logf("table=%s outcome=%s attempted=%d loaded=%d skipped=%d duration=%s",
		name, OutcomeCommitted, sum.Attempted, sum.Loaded, sum.Skipped, durMS(start))
	return sum, nil
}

// Probe infers the schema src would get, without touching a database.
func (r *Runner) Probe(ctx context.Context, src Source, table string) (schema.TableSchema, error) {
	name, err := tableName(src, table)
	if err != nil {
		return schema.TableSchema{}, stageErr(StageResolve, err)
	}
	ts, in, err := r.infer(ctx, src, name)
	in.close()
	return ts, err
}

func tableName(src Source, table string) (string, error) {
	if table != "" {
		return schema.NormalizeTableName(table)
	}
	return schema.DeriveTableName(src.Name())
}

// infer runs the schema pass. In sample mode the returned input is still
// open and carries the sampled features for replay; in full mode it is nil
// and the caller reopens the source.
func (r *Runner) infer(ctx context.Context, src Source, table string) (schema.TableSchema, *input, error) {
	logf := r.logger()

	rc, err := src.Open(ctx)
	if err != nil {
		return schema.TableSchema{}, nil, stageErr(StageOpen, err)
	}
	in := &input{rc: rc, dec: geojson.NewDecoder(rc)}
	sample := r.Options.SampleSize
	inf := schema.NewInferrer(r.Options.Schema)

	complete := false
	for sample <= 0 || inf.Records() < sample {
		if err := ctx.Err(); err != nil {
			in.close()
			return schema.TableSchema{}, nil, stageErr(StageParse, err)
		}
		f, err := in.dec.Next()
		if errors.Is(err, io.EOF) {
			complete = true
			break
		}
		if err != nil {
			if errors.Is(err, geojson.ErrInvalidFeature) {
				// Full mode reports these during the load pass.
				if sample > 0 {
					in.pending = append(in.pending, parsed{skip: parseSkip(err)})
				}
				continue
			}
			in.close()
			return schema.TableSchema{}, nil, stageErr(StageParse, err)
		}
		inf.Observe(f)
		if sample > 0 {
			in.pending = append(in.pending, parsed{f: f})
		}
	}

	crs := in.dec.CRS()
	if in.dec.LateCRS() {
		logf("table=%s crs=%q declared after the features array", table, crs)
	}
	if sample <= 0 {
		in.close()
		in = nil
	}

	ts, err := inf.Schema(table, crs, complete)
	if err != nil {
		in.close()
		return schema.TableSchema{}, nil, stageErr(StageResolve, err)
	}
	logf("table=%s features=%d complete=%t columns=%d geometry=%s srid=%d",
		table, inf.Records(), complete, len(ts.Columns), ts.GeometryType, ts.SRID)
	return ts, in, nil
}

// prepareTable reconciles ts with an existing table or creates it.
func (r *Runner) prepareTable(ctx context.Context, ts schema.TableSchema) (schema.TableSchema, bool, error) {
	existing, exists, err := r.Repo.DescribeTable(ctx, ts.Name)
	if err != nil {
		return ts, false, stageErr(StageCreate, err)
	}
	if exists {
		out, err := schema.Reconcile(existing, ts)
		if err != nil {
			return ts, false, stageErr(StageResolve, err)
		}
		return out, false, nil
	}

	t0 := time.Now()
	if err := r.Repo.CreateTable(ctx, ts); err != nil {
		return ts, false, stageErr(StageCreate, err)
	}
	r.done(StageCreate, t0)
	return ts, true, nil
}

// stream runs the three pipeline stages. The load stage is the only owner
// of coord and sum while the pipeline runs.
func (r *Runner) stream(ctx context.Context, in *input, enc *transformer.Encoder, coord *loader.Coordinator, sum *Summary) error {
	buf := r.Options.ChannelBuffer
	if buf <= 0 {
		buf = defaultChannelBuffer
	}
	maxSkips := r.Options.MaxSkipDetails
	if maxSkips <= 0 {
		maxSkips = defaultMaxSkipDetails
	}

	g, gctx := errgroup.WithContext(ctx)
	parsedCh := make(chan parsed, buf)
	encodedCh := make(chan encoded, buf)

	g.Go(func() error {
		defer close(parsedCh)
		t0 := time.Now()
		send := func(p parsed) error {
			select {
			case parsedCh <- p:
				return nil
			case <-gctx.Done():
				return stageErr(StageParse, gctx.Err())
			}
		}

		pending := in.pending
		in.pending = nil
		for _, p := range pending {
			if err := send(p); err != nil {
				return err
			}
		}
		for {
			if err := gctx.Err(); err != nil {
				return stageErr(StageParse, err)
			}
			f, err := in.dec.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if !errors.Is(err, geojson.ErrInvalidFeature) {
					return stageErr(StageParse, err)
				}
				if err := send(parsed{skip: parseSkip(err)}); err != nil {
					return err
				}
				continue
			}
			if err := send(parsed{f: f}); err != nil {
				return err
			}
		}
		r.done(StageParse, t0)
		return nil
	})

	g.Go(func() error {
		defer close(encodedCh)
		t0 := time.Now()
		for p := range parsedCh {
			e := encoded{skip: p.skip}
			if p.f != nil {
				row, err := enc.Encode(p.f)
				switch {
				case err == nil:
					e.row = row
				case errors.Is(err, transformer.ErrEncoding):
					e.skip = &Skip{Index: p.f.Index, FeatureID: p.f.IDString(), Stage: StageEncode, Reason: err.Error()}
				default:
					return stageErr(StageEncode, err)
				}
			}
			select {
			case encodedCh <- e:
			case <-gctx.Done():
				if e.row != nil {
					e.row.Drop()
				}
				return stageErr(StageEncode, gctx.Err())
			}
		}
		r.done(StageEncode, t0)
		return nil
	})

	g.Go(func() error {
		t0 := time.Now()
		for e := range encodedCh {
			sum.Attempted++
			if e.skip != nil {
				coord.Reject()
				sum.Skipped++
				metrics.IncCounter(metrics.SkipsTotal, 1, metrics.Labels{"stage": e.skip.Stage})
				if len(sum.Skips) < maxSkips {
					sum.Skips = append(sum.Skips, *e.skip)
				}
				continue
			}
			if err := coord.Write(gctx, e.row.V); err != nil {
				// The session may still reference the values.
				e.row.Drop()
				return stageErr(StageLoad, err)
			}
			e.row.Free()
		}
		r.done(StageLoad, t0)
		return nil
	})

	return g.Wait()
}

func parseSkip(err error) *Skip {
	s := &Skip{Index: -1, Stage: StageParse, Reason: err.Error()}
	var fe *geojson.FeatureError
	if errors.As(err, &fe) {
		s.Index = fe.Index
		s.Reason = fe.Err.Error()
	}
	return s
}

// done records a successful stage.
func (r *Runner) done(stage string, start time.Time) {
	metrics.RecordStep(stage, "ok", time.Since(start))
	r.logger()("stage=%s ok duration=%s", stage, durMS(start))
}

// failed records the failing stage of err and returns err.
func (r *Runner) failed(err error, start time.Time) error {
	stage := "unknown"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	metrics.RecordStep(stage, "error", time.Since(start))
	r.logger()("stage=%s error=%v", stage, err)
	return err
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
