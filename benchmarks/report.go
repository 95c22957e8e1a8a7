// Package benchmarks parses `go test -bench` output for pagedb and checks it
// against the engine's performance targets.
package benchmarks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult represents a single benchmark result.
type BenchmarkResult struct {
	// Name is the benchmark name (e.g., "BenchmarkSearch")
	Name string `json:"name"`
	// Package is the package containing the benchmark
	Package string `json:"package"`
	// Iterations is the number of iterations run
	Iterations int `json:"iterations"`
	// NsPerOp is nanoseconds per operation
	NsPerOp float64 `json:"nsPerOp"`
	// BytesPerOp is bytes allocated per operation
	BytesPerOp int64 `json:"bytesPerOp"`
	// AllocsPerOp is allocations per operation
	AllocsPerOp int64 `json:"allocsPerOp"`
}

// Report represents a complete benchmark report.
type Report struct {
	Timestamp time.Time         `json:"timestamp"`
	GoVersion string            `json:"goVersion"`
	OS        string            `json:"os"`
	Arch      string            `json:"arch"`
	Results   []BenchmarkResult `json:"results"`
	Targets   map[string]Target `json:"-"`
}

// Target is a performance goal for one benchmark. Exactly one of
// MaxNsPerOp and MinOpsPerSec is set.
type Target struct {
	Name         string
	Description  string
	MaxNsPerOp   float64
	MinOpsPerSec float64
}

// NewReport creates a new benchmark report.
func NewReport() *Report {
	return &Report{
		Timestamp: time.Now(),
		Results:   make([]BenchmarkResult, 0),
		Targets:   DefaultTargets(),
	}
}

// DefaultTargets returns the pagedb targets keyed by benchmark name.
// In-memory tree benchmarks measure the algorithm; the engine benchmarks
// include the file and cache.
func DefaultTargets() map[string]Target {
	return map[string]Target{
		"BenchmarkSearch": {
			Name:        "Point lookup",
			Description: "Search in a 10k-key in-memory tree",
			MaxNsPerOp:  20000, // < 20 us
		},
		"BenchmarkInsert": {
			Name:         "Insert throughput",
			Description:  "Sequential inserts into an in-memory tree",
			MinOpsPerSec: 20000,
		},
		"BenchmarkScan": {
			Name:        "Full scan",
			Description: "In-order scan of a 10k-key tree",
			MaxNsPerOp:  50000000, // < 50 ms
		},
		"BenchmarkDBGet": {
			Name:        "Cached file lookup",
			Description: "DB.Get on a file-backed store with a page cache",
			MaxNsPerOp:  50000, // < 50 us
		},
		"BenchmarkDBPut": {
			Name:         "File write throughput",
			Description:  "DB.Put on a file-backed store without fsync",
			MinOpsPerSec: 5000,
		},
	}
}

var benchRegex = regexp.MustCompile(`^(Benchmark\w+)(?:-\d+)?\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`)

// ParseBenchmarkOutput parses Go benchmark output and returns results.
func ParseBenchmarkOutput(r io.Reader) ([]BenchmarkResult, error) {
	var results []BenchmarkResult

	scanner := bufio.NewScanner(r)
	currentPkg := ""

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "pkg:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				currentPkg = parts[1]
			}
			continue
		}

		matches := benchRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		result := BenchmarkResult{
			Name:    matches[1],
			Package: currentPkg,
		}
		result.Iterations, _ = strconv.Atoi(matches[2])
		result.NsPerOp, _ = strconv.ParseFloat(matches[3], 64)
		if matches[4] != "" {
			result.BytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			result.AllocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		results = append(results, result)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading benchmark output: %w", err)
	}

	return results, nil
}

// AddResults adds benchmark results to the report.
func (r *Report) AddResults(results []BenchmarkResult) {
	r.Results = append(r.Results, results...)
}

// SetSystemInfo sets the system information for the report.
func (r *Report) SetSystemInfo(goVersion, os, arch string) {
	r.GoVersion = goVersion
	r.OS = os
	r.Arch = arch
}

// TargetCheck represents the result of checking a benchmark against a target.
type TargetCheck struct {
	BenchmarkName   string  `json:"benchmark"`
	TargetName      string  `json:"target"`
	Description     string  `json:"-"`
	Passed          bool    `json:"passed"`
	ActualNsPerOp   float64 `json:"actualNsPerOp"`
	TargetNsPerOp   float64 `json:"targetNsPerOp,omitempty"`
	ActualOpsPerSec float64 `json:"actualOpsPerSec,omitempty"`
	TargetOpsPerSec float64 `json:"targetOpsPerSec,omitempty"`
}

// CheckTargets checks benchmark results against the report's targets.
func (r *Report) CheckTargets() []TargetCheck {
	var checks []TargetCheck

	for _, result := range r.Results {
		target, ok := r.Targets[result.Name]
		if !ok {
			continue
		}

		check := TargetCheck{
			BenchmarkName: result.Name,
			TargetName:    target.Name,
			Description:   target.Description,
			ActualNsPerOp: result.NsPerOp,
		}

		if target.MaxNsPerOp > 0 {
			check.TargetNsPerOp = target.MaxNsPerOp
			check.Passed = result.NsPerOp <= target.MaxNsPerOp
		} else if target.MinOpsPerSec > 0 && result.NsPerOp > 0 {
			check.ActualOpsPerSec = 1e9 / result.NsPerOp
			check.TargetOpsPerSec = target.MinOpsPerSec
			check.Passed = check.ActualOpsPerSec >= target.MinOpsPerSec
		}

		checks = append(checks, check)
	}

	return checks
}

// byPackage groups results by package, both levels sorted by name.
func (r *Report) byPackage() ([]string, map[string][]BenchmarkResult) {
	groups := make(map[string][]BenchmarkResult)
	for _, result := range r.Results {
		pkg := result.Package
		if pkg == "" {
			pkg = "unknown"
		}
		groups[pkg] = append(groups[pkg], result)
	}

	packages := make([]string, 0, len(groups))
	for pkg, results := range groups {
		packages = append(packages, pkg)
		sort.Slice(results, func(i, j int) bool {
			return results[i].Name < results[j].Name
		})
	}
	sort.Strings(packages)
	return packages, groups
}

func (c TargetCheck) actualAndTarget() (actual, target string) {
	if c.TargetNsPerOp > 0 {
		return formatDuration(c.ActualNsPerOp), "< " + formatDuration(c.TargetNsPerOp)
	}
	return formatOpsPerSec(c.ActualOpsPerSec), ">= " + formatOpsPerSec(c.TargetOpsPerSec)
}

// GenerateTextReport generates a text report.
func (r *Report) GenerateTextReport(w io.Writer) error {
	fmt.Fprintf(w, "=== pagedb Benchmark Report ===\n\n")
	fmt.Fprintf(w, "Generated: %s\n", r.Timestamp.Format(time.RFC3339))
	if r.GoVersion != "" {
		fmt.Fprintf(w, "Go Version: %s\n", r.GoVersion)
	}
	if r.OS != "" && r.Arch != "" {
		fmt.Fprintf(w, "Platform: %s/%s\n", r.OS, r.Arch)
	}
	fmt.Fprintln(w)

	packages, groups := r.byPackage()
	for _, pkg := range packages {
		fmt.Fprintf(w, "--- Package: %s ---\n\n", pkg)
		fmt.Fprintf(w, "%-45s %12s %12s %12s %12s\n",
			"Benchmark", "Iterations", "ns/op", "B/op", "allocs/op")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 95))

		for _, result := range groups[pkg] {
			fmt.Fprintf(w, "%-45s %12d %12.2f %12d %12d\n",
				result.Name,
				result.Iterations,
				result.NsPerOp,
				result.BytesPerOp,
				result.AllocsPerOp)
		}
		fmt.Fprintln(w)
	}

	checks := r.CheckTargets()
	if len(checks) == 0 {
		return nil
	}

	fmt.Fprintln(w, "=== Target Compliance ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-30s %-20s %12s %12s %8s\n",
		"Target", "Benchmark", "Actual", "Target", "Status")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 85))

	allPassed := true
	for _, check := range checks {
		status := "PASS"
		if !check.Passed {
			status = "FAIL"
			allPassed = false
		}
		actual, target := check.actualAndTarget()
		fmt.Fprintf(w, "%-30s %-20s %12s %12s %8s\n",
			check.TargetName, check.BenchmarkName, actual, target, status)
	}

	fmt.Fprintln(w)
	if allPassed {
		fmt.Fprintln(w, "All targets met!")
	} else {
		fmt.Fprintln(w, "WARNING: Some targets not met!")
	}
	return nil
}

// GenerateMarkdownReport generates a Markdown report.
func (r *Report) GenerateMarkdownReport(w io.Writer) error {
	fmt.Fprintln(w, "# pagedb Benchmark Report")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Generated: %s\n\n", r.Timestamp.Format(time.RFC3339))

	if r.GoVersion != "" || r.OS != "" {
		fmt.Fprintln(w, "## System Information")
		fmt.Fprintln(w)
		if r.GoVersion != "" {
			fmt.Fprintf(w, "- Go Version: %s\n", r.GoVersion)
		}
		if r.OS != "" && r.Arch != "" {
			fmt.Fprintf(w, "- Platform: %s/%s\n", r.OS, r.Arch)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	packages, groups := r.byPackage()
	for _, pkg := range packages {
		fmt.Fprintf(w, "### %s\n\n", pkg)
		fmt.Fprintln(w, "| Benchmark | Iterations | ns/op | B/op | allocs/op |")
		fmt.Fprintln(w, "|-----------|------------|-------|------|-----------|")

		for _, result := range groups[pkg] {
			fmt.Fprintf(w, "| %s | %d | %.2f | %d | %d |\n",
				result.Name,
				result.Iterations,
				result.NsPerOp,
				result.BytesPerOp,
				result.AllocsPerOp)
		}
		fmt.Fprintln(w)
	}

	checks := r.CheckTargets()
	if len(checks) == 0 {
		return nil
	}

	fmt.Fprintln(w, "## Target Compliance")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Target | Benchmark | Actual | Target | Status |")
	fmt.Fprintln(w, "|--------|-----------|--------|--------|--------|")

	allPassed := true
	for _, check := range checks {
		status := "PASS"
		if !check.Passed {
			status = "**FAIL**"
			allPassed = false
		}
		actual, target := check.actualAndTarget()
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
			check.TargetName, check.BenchmarkName, actual, target, status)
	}

	fmt.Fprintln(w)
	if allPassed {
		fmt.Fprintln(w, "All targets met.")
	} else {
		fmt.Fprintln(w, "**WARNING: Some targets not met!**")
	}
	return nil
}

// GenerateJSONReport generates a JSON report.
func (r *Report) GenerateJSONReport(w io.Writer) error {
	out := struct {
		*Report
		Checks []TargetCheck `json:"checks"`
	}{r, r.CheckTargets()}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// SaveReport saves the report to a file.
func (r *Report) SaveReport(filename string, format string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	switch format {
	case "text", "txt":
		return r.GenerateTextReport(f)
	case "markdown", "md":
		return r.GenerateMarkdownReport(f)
	case "json":
		return r.GenerateJSONReport(f)
	default:
		return fmt.Errorf("unknown report format: %s", format)
	}
}

// Summary returns a summary of the benchmark results.
func (r *Report) Summary() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total benchmarks: %d\n", len(r.Results)))

	if len(r.Results) > 0 {
		var totalNs float64
		var totalAllocs int64
		for _, result := range r.Results {
			totalNs += result.NsPerOp
			totalAllocs += result.AllocsPerOp
		}
		sb.WriteString(fmt.Sprintf("Average ns/op: %.2f\n", totalNs/float64(len(r.Results))))
		sb.WriteString(fmt.Sprintf("Average allocs/op: %.2f\n", float64(totalAllocs)/float64(len(r.Results))))
	}

	checks := r.CheckTargets()
	passed := 0
	for _, check := range checks {
		if check.Passed {
			passed++
		}
	}
	sb.WriteString(fmt.Sprintf("Targets: %d/%d passed\n", passed, len(checks)))

	return sb.String()
}

func formatDuration(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.2f ns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.2f us", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.2f ms", ns/1e6)
	default:
		return fmt.Sprintf("%.2f s", ns/1e9)
	}
}

func formatOpsPerSec(ops float64) string {
	switch {
	case ops >= 1e6:
		return fmt.Sprintf("%.2fM/s", ops/1e6)
	case ops >= 1e3:
		return fmt.Sprintf("%.2fK/s", ops/1e3)
	default:
		return fmt.Sprintf("%.2f/s", ops)
	}
}
