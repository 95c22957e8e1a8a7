// Package logging provides structured logging for pagedb.
//
// # Overview
//
// The Logger interface supports:
//
//   - Multiple log levels (debug, info, warn, error)
//   - Text and JSON output formats
//   - Operation ID tracking
//   - Field-based contextual logging
//
// Records are written through a zap core.
//
// # Creating a Logger
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/pagedb.log",
//	})
//
// For testing, use a no-op logger:
//
//	logger := logging.NewNop()
//
// # Operation IDs
//
// Every store operation is tagged with a snowflake ID:
//
//	opLogger := logger.WithRequestID(logging.GenerateRequestID())
package logging
