// Package main provides CLI commands for pagedb.
package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/KilimcininKorOglu/pagedb/internal/storage/engine"
)

// putCmd handles the put command.
func putCmd(args []string) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := addStoreFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if sf.wantsHelp() {
		printPutUsage(stdout)
		return 0
	}

	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, "Error: put requires <key> <value>")
		return 1
	}

	db, err := sf.openDB(false)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := db.Put([]byte(fs.Arg(0)), []byte(fs.Arg(1))); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return sf.closeDB(db, 1)
	}
	return sf.closeDB(db, 0)
}

// getCmd handles the get command.
func getCmd(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := addStoreFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if sf.wantsHelp() {
		printGetUsage(stdout)
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: get requires <key>")
		return 1
	}

	db, err := sf.openDB(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	value, err := db.Get([]byte(fs.Arg(0)))
	if err != nil {
		reportKeyError(fs.Arg(0), err)
		return sf.closeDB(db, 1)
	}

	fmt.Fprintln(stdout, string(value))
	return sf.closeDB(db, 0)
}

// deleteCmd handles the delete command.
func deleteCmd(args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := addStoreFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if sf.wantsHelp() {
		printDeleteUsage(stdout)
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: delete requires <key>")
		return 1
	}

	db, err := sf.openDB(false)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := db.Delete([]byte(fs.Arg(0))); err != nil {
		reportKeyError(fs.Arg(0), err)
		return sf.closeDB(db, 1)
	}
	return sf.closeDB(db, 0)
}

func reportKeyError(key string, err error) {
	if errors.Is(err, engine.ErrNotFound) {
		fmt.Fprintf(stderr, "Key not found: %s\n", key)
		return
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
}

// scanCmd handles the scan command.
func scanCmd(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := addStoreFlags(fs)

	start := fs.String("start", "", "First key to include (default: smallest)")
	end := fs.String("end", "", "First key to exclude (default: none)")
	limit := fs.Int("limit", 0, "Maximum number of pairs to print (0 = all)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if sf.wantsHelp() {
		printScanUsage(stdout)
		return 0
	}

	if *limit < 0 {
		fmt.Fprintln(stderr, "Error: -limit must be non-negative")
		return 1
	}

	db, err := sf.openDB(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var startKey, endKey []byte
	if *start != "" {
		startKey = []byte(*start)
	}
	if *end != "" {
		endKey = []byte(*end)
	}

	printed := 0
	err = db.Scan(startKey, endKey, func(key, value []byte) bool {
		fmt.Fprintf(stdout, "%s\t%s\n", key, value)
		printed++
		return *limit == 0 || printed < *limit
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return sf.closeDB(db, 1)
	}
	return sf.closeDB(db, 0)
}

// statsCmd handles the stats command.
func statsCmd(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := addStoreFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if sf.wantsHelp() {
		printStatsUsage(stdout)
		return 0
	}

	db, err := sf.openDB(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	stats, err := db.Stats()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return sf.closeDB(db, 1)
	}

	fmt.Fprintf(stdout, "Database: %s\n", db.Path())
	fmt.Fprintf(stdout, "  Pairs:          %d\n", stats.Tree.Pairs)
	fmt.Fprintf(stdout, "  Height:         %d\n", stats.Tree.Height)
	fmt.Fprintf(stdout, "  Leaf nodes:     %d\n", stats.Tree.LeafNodes)
	fmt.Fprintf(stdout, "  Internal nodes: %d\n", stats.Tree.InternalNodes)
	fmt.Fprintf(stdout, "  Total pages:    %d\n", stats.Pages.TotalPages)
	fmt.Fprintf(stdout, "  Free pages:     %d\n", stats.Pages.FreePages)
	fmt.Fprintf(stdout, "  File size:      %d bytes\n", stats.Pages.FileSizeBytes)

	return sf.closeDB(db, 0)
}

// checkCmd handles the check command.
func checkCmd(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sf := addStoreFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if sf.wantsHelp() {
		printCheckUsage(stdout)
		return 0
	}

	db, err := sf.openDB(true)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := db.Verify(); err != nil {
		fmt.Fprintf(stderr, "Check failed: %v\n", err)
		return sf.closeDB(db, 1)
	}

	fmt.Fprintln(stdout, "Tree is consistent")
	return sf.closeDB(db, 0)
}
