// Package journal keeps an optional local record of plot runs and of the
// pixel files fetched from the remote archive.
//
// # Overview
//
// The journal is a SQLite database (modernc.org/sqlite) whose schema is
// applied with embedded goose migrations. It is write-mostly: the plot
// pipeline records one Run per call, together with the Downloads performed
// during it, in a single transaction. The history command reads it back.
// Nothing in the resolution policy consults the journal.
//
// Typical Usage
//
//	j, _ := journal.Open(ctx, "tessplot.db")
//	defer j.Close()
//	_ = j.RecordRun(ctx, run, downloads)
//	runs, _ := j.ListRuns(ctx, 25155310, 20)
package journal
