package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runStore runs a CLI command against the database in dir with logging
// limited to errors.
func runStore(t *testing.T, dir string, args ...string) (code int, out, errOut string) {
	t.Helper()
	o, e := captureOutput(t)

	full := []string{"pagedb", args[0], "-path", dir, "-log-level", "error"}
	full = append(full, args[1:]...)

	code = run(full)
	return code, o.String(), e.String()
}

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()

	for _, kv := range [][2]string{{"apple", "1"}, {"banana", "2"}, {"cherry", "3"}} {
		if code, _, errOut := runStore(t, dir, "put", kv[0], kv[1]); code != 0 {
			t.Fatalf("put %s failed: %s", kv[0], errOut)
		}
	}

	code, out, _ := runStore(t, dir, "get", "banana")
	if code != 0 || out != "2\n" {
		t.Errorf("get banana = %d, %q", code, out)
	}

	if code, _, errOut := runStore(t, dir, "delete", "banana"); code != 0 {
		t.Fatalf("delete failed: %s", errOut)
	}

	code, _, errOut := runStore(t, dir, "get", "banana")
	if code != 1 {
		t.Errorf("expected exit code 1 for missing key, got %d", code)
	}
	if !strings.Contains(errOut, "Key not found: banana") {
		t.Errorf("unexpected stderr: %q", errOut)
	}

	code, _, errOut = runStore(t, dir, "delete", "banana")
	if code != 1 || !strings.Contains(errOut, "Key not found") {
		t.Errorf("second delete = %d, %q", code, errOut)
	}
}

func TestPutReplaces(t *testing.T) {
	dir := t.TempDir()

	runStore(t, dir, "put", "apple", "red")
	runStore(t, dir, "put", "apple", "green")

	_, out, _ := runStore(t, dir, "get", "apple")
	if out != "green\n" {
		t.Errorf("expected replaced value, got %q", out)
	}
}

func TestPutArguments(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing value", []string{"put", "apple"}, "put requires"},
		{"too many", []string{"put", "a", "b", "c"}, "put requires"},
		{"oversized key", []string{"put", strings.Repeat("k", 65), "v"}, "Error:"},
		{"oversized value", []string{"put", "k", strings.Repeat("v", 257)}, "Error:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runStore(t, dir, tt.args...)
			if code != 1 {
				t.Errorf("expected exit code 1, got %d", code)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("expected %q in stderr, got %q", tt.want, errOut)
			}
		})
	}
}

func TestReadCommandsNeedExistingStore(t *testing.T) {
	for _, cmd := range [][]string{{"get", "apple"}, {"scan"}, {"stats"}, {"check"}} {
		t.Run(cmd[0], func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "missing")

			code, _, errOut := runStore(t, dir, cmd...)
			if code != 1 {
				t.Errorf("expected exit code 1, got %d", code)
			}
			if !strings.Contains(errOut, "no database at") {
				t.Errorf("unexpected stderr: %q", errOut)
			}
			if _, err := os.Stat(dir); !os.IsNotExist(err) {
				t.Error("read-only command created the database directory")
			}
		})
	}
}

func TestScanCmd(t *testing.T) {
	dir := t.TempDir()
	for _, k := range []string{"cherry", "apple", "banana", "date"} {
		runStore(t, dir, "put", k, "v-"+k)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"all", []string{"scan"}, "apple\tv-apple\nbanana\tv-banana\ncherry\tv-cherry\ndate\tv-date\n"},
		{"range", []string{"scan", "-start", "b", "-end", "d"}, "banana\tv-banana\ncherry\tv-cherry\n"},
		{"limit", []string{"scan", "-limit", "1"}, "apple\tv-apple\n"},
		{"empty range", []string{"scan", "-start", "x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runStore(t, dir, tt.args...)
			if code != 0 {
				t.Fatalf("scan failed: %s", errOut)
			}
			if out != tt.want {
				t.Errorf("expected %q, got %q", tt.want, out)
			}
		})
	}

	if code, _, _ := runStore(t, dir, "scan", "-limit", "-1"); code != 1 {
		t.Errorf("expected exit code 1 for negative limit, got %d", code)
	}
}

func TestStatsAndCheckWithSmallTree(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "pagedb.yaml")
	cfg := "tree:\n  maxLeafPairs: 3\n  maxChildren: 3\nstorage:\n  cacheSize: 64KB\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	for i := 0; i < 30; i++ {
		code, _, errOut := runStore(t, dir, "put", "-config", cfgPath, fmt.Sprintf("k%02d", i), "v")
		if code != 0 {
			t.Fatalf("put %d failed: %s", i, errOut)
		}
	}

	code, out, errOut := runStore(t, dir, "stats", "-config", cfgPath)
	if code != 0 {
		t.Fatalf("stats failed: %s", errOut)
	}
	if !strings.Contains(out, "Pairs:          30\n") {
		t.Errorf("unexpected stats output: %q", out)
	}
	if strings.Contains(out, "Internal nodes: 0\n") {
		t.Errorf("expected internal nodes with small capacities: %q", out)
	}

	code, out, errOut = runStore(t, dir, "check", "-config", cfgPath)
	if code != 0 {
		t.Fatalf("check failed: %s", errOut)
	}
	if out != "Tree is consistent\n" {
		t.Errorf("unexpected check output: %q", out)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "pagedb.yaml")
	if err := os.WriteFile(cfgPath, []byte("tree:\n  maxLeafPairs: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	code, _, errOut := runStore(t, t.TempDir(), "put", "-config", cfgPath, "k", "v")
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(errOut, "tree.maxLeafPairs") {
		t.Errorf("expected validation error, got %q", errOut)
	}
}
