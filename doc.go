// Package recordconv converts record-oriented textual data between CSV
// (including delimited variants), NDJSON, JSON (a single top-level array),
// and XML (repeated record elements under a root) in a streaming fashion.
//
// The engine is push-driven: the host feeds input bytes in arbitrary chunks
// and receives output bytes in return, without either side buffering the
// whole document. Memory stays proportional to the largest single record.
//
// # Basic Usage
//
//	conv, err := recordconv.NewConverter(recordconv.FormatCSV, recordconv.FormatNDJSON)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := conv.Push([]byte("name,age\nAda,36\n"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tail, err := conv.Finish()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// string(out) + string(tail) == `{"name":"Ada","age":"36"}` + "\n"
//
// For whole-document input there is a one-shot driver:
//
//	out, err := recordconv.Convert(data, recordconv.FormatAuto, recordconv.FormatJSON)
//
// Convert and ConvertReader also accept gzip, bzip2, xz, and zstd compressed
// input, detected by magic bytes.
//
// # Format Detection
//
// FormatAuto defers the choice of input parser until enough bytes have been
// pushed for DetectStructure to classify the sample: the leading structural
// byte picks JSON/NDJSON/XML, and everything else is scored as delimited
// text to infer the delimiter and header row.
//
// # Transformation
//
// An optional Transform runs between parser and emitter: an ordered list of
// keep/drop/compute field operations, a record filter, and typed coercions
// (string, f64, i64, bool, timestamp_ms). See Transform.
//
// # Concurrency
//
// A Converter is single-threaded and performs no I/O. All methods must be
// called from the same goroutine; run independent Converters in parallel
// for multi-core throughput.
package recordconv
