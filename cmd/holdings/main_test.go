package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hurttlocker/holdings/internal/source"
)

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		source.DefaultTitlesFile: `[
  {"Title.ID": "A", "Publication title": "Morning Star", "connectivity": "B"},
  {"Title.ID": "B", "Publication title": "Star"},
  {"Title.ID": "C", "Publication title": "Gazette"},
  {"Title.ID": "D", "Publication title": "Never Held"}
]`,
		source.DefaultHardCopyFile:  `{"A": {"1990": 1}, "B": {"1991": 2}, "C": {"1990": 30}}`,
		source.DefaultMicrofilmFile: `{"A": {"1990": 5}, "C": {"1990": 1, "Total_canNos_below_4000": 4}}`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	base := []string{"--config", filepath.Join(t.TempDir(), "none.yaml")}
	cmd.SetArgs(append(base, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("expected version in output, got %q", out)
	}
}

func TestBuildToStdout(t *testing.T) {
	dir := writeDataDir(t)
	out, summary, err := run(t, "build", "--data", dir)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var doc struct {
		Range   map[string]int   `json:"range"`
		Dropped []string         `json:"dropped"`
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(doc.Entries) != 2 || doc.Entries[0]["kind"] != "cluster" {
		t.Fatalf("unexpected entries %v", doc.Entries)
	}
	if len(doc.Dropped) != 1 || doc.Dropped[0] != "D" {
		t.Fatalf("unexpected dropped list %v", doc.Dropped)
	}
	if doc.Range["earliest"] != 1990 || doc.Range["latest"] != 1991 {
		t.Fatalf("unexpected range %v", doc.Range)
	}
	for _, want := range []string{"Built 3 titles into 2 entries", "dropped 1 titles", "likely on acetate"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestBuildRangeOverrideAndOutFile(t *testing.T) {
	dir := writeDataDir(t)
	outPath := filepath.Join(t.TempDir(), "entries.json")
	_, summary, err := run(t, "build", "--data", dir, "--earliest", "1980", "--latest", "2000", "--out", outPath, "--pretty")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Contains(data, []byte(`"earliest": 1980`)) {
		t.Fatalf("range override missing from output:\n%s", data)
	}
	if !strings.Contains(summary, "wrote "+outPath) {
		t.Fatalf("summary missing output path:\n%s", summary)
	}
}

func TestBuildInvalidRange(t *testing.T) {
	dir := writeDataDir(t)
	if _, _, err := run(t, "build", "--data", dir, "--earliest", "2000", "--latest", "1990"); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestBuildMissingData(t *testing.T) {
	_, _, err := run(t, "build", "--data", t.TempDir())
	var le *source.LoadError
	if !errors.As(err, &le) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a missing-file load error, got %v", err)
	}
}

func TestImportThenBuildFromDB(t *testing.T) {
	dir := writeDataDir(t)
	db := filepath.Join(t.TempDir(), "holdings.db")

	_, summary, err := run(t, "--db", db, "import", "--data", dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(summary, "Imported 4 titles") {
		t.Fatalf("unexpected import summary:\n%s", summary)
	}

	_, summary, err = run(t, "--db", db, "import", "--data", dir)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !strings.Contains(summary, "Snapshot unchanged") {
		t.Fatalf("expected unchanged snapshot:\n%s", summary)
	}

	fromFiles, _, err := run(t, "build", "--data", dir)
	if err != nil {
		t.Fatalf("build from files: %v", err)
	}
	fromDB, _, err := run(t, "--db", db, "build", "--from", "db")
	if err != nil {
		t.Fatalf("build from db: %v", err)
	}

	var a, b struct {
		Entries json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal([]byte(fromFiles), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(fromDB), &b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Entries, b.Entries) {
		t.Fatalf("db build differs from file build:\nfiles: %s\ndb:    %s", a.Entries, b.Entries)
	}
}

func TestBuildUnknownSource(t *testing.T) {
	if _, _, err := run(t, "build", "--from", "s3"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestConfigShowsSources(t *testing.T) {
	t.Setenv("HOLDINGS_ADDR", "127.0.0.1:9999")
	out, _, err := run(t, "config", "--data", "/srv/holdings")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var resolved map[string]struct {
		Value  string `json:"value"`
		Source string `json:"source"`
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	delete(raw, "config_path")
	b, _ := json.Marshal(raw)
	if err := json.Unmarshal(b, &resolved); err != nil {
		t.Fatalf("decode values: %v", err)
	}
	if resolved["addr"].Source != "env" || resolved["addr"].Value != "127.0.0.1:9999" {
		t.Fatalf("unexpected addr %+v", resolved["addr"])
	}
	if resolved["data_dir"].Source != "cli" {
		t.Fatalf("unexpected data_dir %+v", resolved["data_dir"])
	}
}
