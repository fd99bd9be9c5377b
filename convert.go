package recordconv

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Result is what a one-shot conversion produces besides the output bytes.
type Result struct {
	// Output is the complete converted document. On error it holds the
	// output of every record emitted before the failure.
	Output []byte
	// Stats is the final conversion snapshot.
	Stats Stats
	// Format is the output format the data is encoded in.
	Format Format
	// Detected describes the input structure when the input format was
	// FormatAuto; nil otherwise.
	Detected *DetectedStructure
}

// Convert runs a whole in-memory document through a Converter and returns
// the converted bytes. Compressed input (gzip, bzip2, xz, zstd) is
// decompressed transparently. On error, the bytes emitted before the
// failure are returned alongside it.
//
// Example:
//
//	out, err := recordconv.Convert(csvData, recordconv.FormatCSV, recordconv.FormatJSON)
func Convert(data []byte, input, output Format, opts ...Option) ([]byte, error) {
	res, err := ConvertReader(bytes.NewReader(data), input, output, opts...)
	if res == nil {
		return nil, err
	}
	return res.Output, err
}

// ConvertReader drives a Converter from an io.Reader in chunk-target-sized
// reads. Compressed input is detected by magic bytes and decompressed
// transparently before conversion.
//
// When the conversion fails mid-stream, the returned Result is still
// non-nil and carries the output emitted up to the failing record, so
// already-converted data is never lost.
func ConvertReader(r io.Reader, input, output Format, opts ...Option) (*Result, error) {
	conv, err := NewConverter(input, output, opts...)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, conv.cfg.chunkTarget)
	prefix, _ := br.Peek(len(magicXZ))
	src, cleanup, err := newCompressionReader(br, detectCompression(prefix))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cleanup()
	}()

	result := func(out []byte) *Result {
		return &Result{
			Output:   out,
			Stats:    conv.Stats(),
			Format:   output,
			Detected: conv.DetectedStructure(),
		}
	}

	chunk := make([]byte, conv.cfg.chunkTarget)
	var out []byte
	for {
		n, rerr := src.Read(chunk)
		if n > 0 {
			b, perr := conv.Push(chunk[:n])
			out = append(out, b...)
			if perr != nil {
				return result(out), perr
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return result(out), fmt.Errorf("failed to read input: %w", rerr)
		}
	}
	tail, err := conv.Finish()
	out = append(out, tail...)
	if err != nil {
		return result(out), err
	}
	return result(out), nil
}
