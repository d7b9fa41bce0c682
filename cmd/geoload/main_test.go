package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geoload/internal/ingest"
	"geoload/internal/loader"
	"geoload/internal/schema"
)

const towns = `{"type":"FeatureCollection","features":[
{"type":"Feature","id":"a","properties":{"name":"Alpha","pop":10},"geometry":{"type":"Point","coordinates":[1,2]}},
{"type":"Feature","id":"b","properties":{"name":"Beta","pop":20},"geometry":{"type":"Point","coordinates":[3,4]}},
{"type":"Feature","id":"c","properties":{"name":"Gamma","pop":30}}
]}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUpload_ProbeDrop_SQLite(t *testing.T) {
	input := writeTemp(t, "Towns.geojson", towns)
	db := filepath.Join(t.TempDir(), "geo.db")

	code, out, errOut := run(t, "--dsn", db, "upload", input, "-o", "json")
	if code != ExitSuccess {
		t.Fatalf("upload exit=%d stderr=%s", code, errOut)
	}
	var sum ingest.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("summary json: %v\n%s", err, out)
	}
	if sum.Table != "towns" || sum.Loaded != 2 || sum.Skipped != 1 || sum.Outcome != ingest.OutcomeCommitted {
		t.Fatalf("summary=%+v", sum)
	}

	code, out, errOut = run(t, "--dsn", db, "upload", input, "--replace")
	if code != ExitSuccess {
		t.Fatalf("second upload exit=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "towns: 2 of 3 features loaded, 1 skipped (existing table)") {
		t.Fatalf("text summary=%q", out)
	}
	if !strings.Contains(out, "skipped feature 2") {
		t.Fatalf("text summary missing skip detail: %q", out)
	}

	code, out, errOut = run(t, "drop", "towns", "--dsn", db)
	if code != ExitSuccess || !strings.Contains(out, "dropped towns") {
		t.Fatalf("drop exit=%d out=%q stderr=%s", code, out, errOut)
	}
	if code, _, _ := run(t, "drop", "towns", "--dsn", db); code != ExitDatabase {
		t.Fatalf("second drop exit=%d, want %d", code, ExitDatabase)
	}
	if code, _, _ := run(t, "drop", "towns", "--if-exists", "--dsn", db); code != ExitSuccess {
		t.Fatalf("drop --if-exists exit=%d, want 0", code)
	}
}

func TestProbe_PrintsSchema(t *testing.T) {
	input := writeTemp(t, "towns.geojson", towns)

	code, out, errOut := run(t, "probe", input, "--feature-id-column", "fid", "-o", "json")
	if code != ExitSuccess {
		t.Fatalf("probe exit=%d stderr=%s", code, errOut)
	}
	var ts struct {
		Table   string `json:"table"`
		Columns []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"columns"`
	}
	if err := json.Unmarshal([]byte(out), &ts); err != nil {
		t.Fatalf("probe json: %v\n%s", err, out)
	}
	var got []string
	for _, c := range ts.Columns {
		got = append(got, c.Name+":"+c.Kind)
	}
	want := "fid:text,name:text,pop:integer,geometry:geometry"
	if ts.Table != "towns" || strings.Join(got, ",") != want {
		t.Fatalf("probe table=%q columns=%v, want %s", ts.Table, got, want)
	}

	code, out, _ = run(t, "probe", input)
	if code != ExitSuccess || !strings.Contains(out, "geometry_type: Point") {
		t.Fatalf("probe yaml exit=%d out=%s", code, out)
	}
}

func TestExitCodes(t *testing.T) {
	db := filepath.Join(t.TempDir(), "geo.db")
	malformed := writeTemp(t, "bad.geojson", `{"type":"FeatureCollection","features":[{"type":`)
	ints := writeTemp(t, "codes.geojson", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"code":1},"geometry":null}]}`)
	bools := writeTemp(t, "codes2.geojson", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"code":true},"geometry":null}]}`)
	badConfig := writeTemp(t, "geoload.yaml", "storage: [")

	if code, _, errOut := run(t, "--dsn", db, "upload", ints, "--table", "codes"); code != ExitSuccess {
		t.Fatalf("seed upload exit=%d stderr=%s", code, errOut)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"malformed input", []string{"--dsn", db, "upload", malformed}, ExitInput},
		{"missing input", []string{"--dsn", db, "upload", filepath.Join(t.TempDir(), "nope.geojson")}, ExitInput},
		{"schema conflict", []string{"--dsn", db, "upload", bools, "--table", "codes"}, ExitSchema},
		{"bad config file", []string{"--config", badConfig, "--dsn", db, "upload", ints}, ExitConfig},
		{"unknown storage", []string{"--storage", "oracle", "--dsn", db, "upload", ints}, ExitConfig},
		{"keep unknown without raw column", []string{"--dsn", db, "upload", ints, "--keep-unknown"}, ExitConfig},
		{"missing argument", []string{"upload"}, ExitInput},
	}
	for _, tt := range tests {
		code, _, errOut := run(t, tt.args...)
		if code != tt.want {
			t.Fatalf("%s: exit=%d, want %d; stderr=%s", tt.name, code, tt.want, errOut)
		}
		if !strings.Contains(errOut, "Error: ") {
			t.Fatalf("%s: stderr missing Error line: %q", tt.name, errOut)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{&ingest.StageError{Stage: ingest.StageResolve, Err: fmt.Errorf("x: %w", schema.ErrSchemaConflict)}, ExitSchema},
		{&ingest.StageError{Stage: ingest.StageLoad, Err: fmt.Errorf("%w: write row 3: reset", loader.ErrTransportFailure)}, ExitDatabase},
		{&ingest.StageError{Stage: ingest.StageCreate, Err: errors.New("permission denied")}, ExitDatabase},
		{&ingest.StageError{Stage: ingest.StageOpen, Err: os.ErrNotExist}, ExitInput},
		{&ingest.StageError{Stage: ingest.StageParse, Err: context.Canceled}, ExitInput},
		{&UserError{Message: "x", ExitCode: ExitConfig}, ExitConfig},
		{errors.New(`unknown command "frob"`), ExitInput},
	}
	for _, tt := range tests {
		if got := classify(tt.err).ExitCode; got != tt.want {
			t.Fatalf("classify(%v).ExitCode=%d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestUserErrorFormat(t *testing.T) {
	ue := &UserError{Message: "Cannot connect", Cause: "refused", Fix: "start the database"}
	got := ue.Format(true)
	want := "Error: Cannot connect\nCause: refused\nFix:   start the database\n"
	if got != want {
		t.Fatalf("Format()=%q, want %q", got, want)
	}
	if got := (&UserError{Message: "only"}).Format(true); got != "Error: only\n" {
		t.Fatalf("Format()=%q", got)
	}
}
