package benchmarks

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleOutput = `goos: linux
goarch: amd64
pkg: github.com/KilimcininKorOglu/pagedb/internal/storage/btree
BenchmarkSearch-8     	  412345	      2890 ns/op	    2304 B/op	      21 allocs/op
BenchmarkInsert-8     	   98765	     12034 ns/op	   18000 B/op	     140 allocs/op
BenchmarkScan-8       	     300	   4012345 ns/op
PASS
ok  	github.com/KilimcininKorOglu/pagedb/internal/storage/btree	5.123s
pkg: github.com/KilimcininKorOglu/pagedb/internal/storage/engine
BenchmarkDBGet-8      	  200000	     80000 ns/op	    4400 B/op	      30 allocs/op
ok  	github.com/KilimcininKorOglu/pagedb/internal/storage/engine	2.000s`

func TestParseBenchmarkOutput(t *testing.T) {
	results, err := ParseBenchmarkOutput(strings.NewReader(sampleOutput))
	if err != nil {
		t.Fatalf("ParseBenchmarkOutput failed: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}

	first := results[0]
	if first.Name != "BenchmarkSearch" {
		t.Errorf("Expected name 'BenchmarkSearch', got '%s'", first.Name)
	}
	if first.Package != "github.com/KilimcininKorOglu/pagedb/internal/storage/btree" {
		t.Errorf("Unexpected package %q", first.Package)
	}
	if first.Iterations != 412345 || first.NsPerOp != 2890 {
		t.Errorf("Unexpected iterations/ns: %+v", first)
	}
	if first.BytesPerOp != 2304 || first.AllocsPerOp != 21 {
		t.Errorf("Unexpected memory stats: %+v", first)
	}

	scan := results[2]
	if scan.BytesPerOp != 0 || scan.AllocsPerOp != 0 {
		t.Errorf("Expected no memory stats without -benchmem, got %+v", scan)
	}

	if results[3].Package != "github.com/KilimcininKorOglu/pagedb/internal/storage/engine" {
		t.Errorf("Package not switched: %q", results[3].Package)
	}
}

func TestNewReport(t *testing.T) {
	report := NewReport()

	if report.Timestamp.IsZero() {
		t.Error("Report timestamp should not be zero")
	}
	if len(report.Targets) == 0 {
		t.Error("Report should have targets")
	}
	for name, target := range report.Targets {
		if (target.MaxNsPerOp > 0) == (target.MinOpsPerSec > 0) {
			t.Errorf("target %s must set exactly one bound", name)
		}
	}
}

func TestCheckTargets(t *testing.T) {
	tests := []struct {
		name   string
		result BenchmarkResult
		passed bool
	}{
		{"lookup under limit", BenchmarkResult{Name: "BenchmarkSearch", NsPerOp: 5000}, true},
		{"lookup over limit", BenchmarkResult{Name: "BenchmarkSearch", NsPerOp: 25000}, false},
		{"throughput met", BenchmarkResult{Name: "BenchmarkInsert", NsPerOp: 10000}, true},   // 100K/s
		{"throughput missed", BenchmarkResult{Name: "BenchmarkInsert", NsPerOp: 100000}, false}, // 10K/s
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewReport()
			report.AddResults([]BenchmarkResult{tt.result, {Name: "BenchmarkUntracked", NsPerOp: 1}})

			checks := report.CheckTargets()
			if len(checks) != 1 {
				t.Fatalf("Expected 1 check, got %d", len(checks))
			}
			if checks[0].Passed != tt.passed {
				t.Errorf("Passed = %v, want %v", checks[0].Passed, tt.passed)
			}
		})
	}
}

func loadedReport(t *testing.T) *Report {
	t.Helper()
	results, err := ParseBenchmarkOutput(strings.NewReader(sampleOutput))
	if err != nil {
		t.Fatalf("ParseBenchmarkOutput failed: %v", err)
	}
	report := NewReport()
	report.SetSystemInfo("go1.22.0", "linux", "amd64")
	report.AddResults(results)
	return report
}

func TestGenerateTextReport(t *testing.T) {
	var buf bytes.Buffer
	if err := loadedReport(t).GenerateTextReport(&buf); err != nil {
		t.Fatalf("GenerateTextReport failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"pagedb Benchmark Report",
		"Platform: linux/amd64",
		"--- Package: github.com/KilimcininKorOglu/pagedb/internal/storage/btree ---",
		"BenchmarkSearch",
		"Target Compliance",
		"FAIL", // BenchmarkDBGet at 80 us
		"WARNING: Some targets not met!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestGenerateMarkdownReport(t *testing.T) {
	var buf bytes.Buffer
	if err := loadedReport(t).GenerateMarkdownReport(&buf); err != nil {
		t.Fatalf("GenerateMarkdownReport failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "| BenchmarkSearch | 412345 | 2890.00 | 2304 | 21 |") {
		t.Errorf("markdown report missing result row:\n%s", out)
	}
	if !strings.Contains(out, "**FAIL**") {
		t.Error("markdown report should flag the failing target")
	}
}

func TestGenerateJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := loadedReport(t).GenerateJSONReport(&buf); err != nil {
		t.Fatalf("GenerateJSONReport failed: %v", err)
	}

	var decoded struct {
		GoVersion string            `json:"goVersion"`
		Results   []BenchmarkResult `json:"results"`
		Checks    []TargetCheck     `json:"checks"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.GoVersion != "go1.22.0" || len(decoded.Results) != 4 || len(decoded.Checks) != 4 {
		t.Errorf("unexpected JSON content: %+v", decoded)
	}
}

func TestSaveReport(t *testing.T) {
	report := loadedReport(t)
	dir := t.TempDir()

	for _, format := range []string{"text", "md", "json"} {
		path := filepath.Join(dir, "report."+format)
		if err := report.SaveReport(path, format); err != nil {
			t.Fatalf("SaveReport(%s) failed: %v", format, err)
		}
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("report %s not written", format)
		}
	}

	if err := report.SaveReport(filepath.Join(dir, "report.xml"), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSummary(t *testing.T) {
	summary := loadedReport(t).Summary()

	if !strings.Contains(summary, "Total benchmarks: 4") {
		t.Errorf("unexpected summary: %q", summary)
	}
	if !strings.Contains(summary, "Targets: 3/4 passed") {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatDuration(500), "500.00 ns"},
		{formatDuration(2500), "2.50 us"},
		{formatDuration(3.5e6), "3.50 ms"},
		{formatDuration(2e9), "2.00 s"},
		{formatOpsPerSec(500), "500.00/s"},
		{formatOpsPerSec(2500), "2.50K/s"},
		{formatOpsPerSec(3.5e6), "3.50M/s"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
