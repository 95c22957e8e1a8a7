package main

import (
	"fmt"
	"io"
)

const storeOptionsUsage = `  -config string
        Path to configuration file
  -path string
        Database directory (overrides config, default "/var/lib/pagedb")
  -log-level string
        Log level: debug, info, warn, error (overrides config)
  -h, -help
        Show this help message
`

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `pagedb - Embedded B+Tree key-value store

Usage:
  pagedb <command> [options]

Commands:
  put         Store a value under a key
  get         Print the value stored under a key
  delete      Remove a key
  scan        Print key/value pairs in key order
  stats       Show tree and file statistics
  check       Verify the tree structure
  config      Configuration management
  version     Show version information

Use "pagedb <command> -h" for more information about a command.
`)
}

// printPutUsage prints the put command usage.
func printPutUsage(w io.Writer) {
	fmt.Fprint(w, `Store a value under a key, replacing any previous value

Usage:
  pagedb put [options] <key> <value>

Keys are at most 64 bytes and values at most 256 bytes of UTF-8 text
without NUL characters.

Options:
`+storeOptionsUsage)
}

// printGetUsage prints the get command usage.
func printGetUsage(w io.Writer) {
	fmt.Fprint(w, `Print the value stored under a key

Usage:
  pagedb get [options] <key>

Options:
`+storeOptionsUsage)
}

// printDeleteUsage prints the delete command usage.
func printDeleteUsage(w io.Writer) {
	fmt.Fprint(w, `Remove a key

Usage:
  pagedb delete [options] <key>

Options:
`+storeOptionsUsage)
}

// printScanUsage prints the scan command usage.
func printScanUsage(w io.Writer) {
	fmt.Fprint(w, `Print key/value pairs in key order, one tab-separated pair per line

Usage:
  pagedb scan [options]

Options:
  -start string
        First key to include (default: smallest)
  -end string
        First key to exclude (default: none)
  -limit int
        Maximum number of pairs to print (0 = all)
`+storeOptionsUsage)
}

// printStatsUsage prints the stats command usage.
func printStatsUsage(w io.Writer) {
	fmt.Fprint(w, `Show tree and file statistics

Usage:
  pagedb stats [options]

Options:
`+storeOptionsUsage)
}

// printCheckUsage prints the check command usage.
func printCheckUsage(w io.Writer) {
	fmt.Fprint(w, `Verify the tree structure: key order, node occupancy, parent pointers
and leaf depth

Usage:
  pagedb check [options]

Options:
`+storeOptionsUsage)
}

// printConfigUsage prints the config command usage.
func printConfigUsage(w io.Writer) {
	fmt.Fprint(w, `Configuration management

Usage:
  pagedb config <subcommand> [options]

Subcommands:
  validate    Validate configuration file
  init        Generate default configuration
  show        Show effective configuration

Use "pagedb config <subcommand> -h" for more information.
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  pagedb version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
