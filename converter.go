package recordconv

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// config is the immutable option snapshot a Converter is built from.
type config struct {
	input  Format
	output Format

	csv          csvConfig
	csvDelimSet  bool
	csvHeaderSet bool
	xml          xmlConfig

	transform *Transform

	chunkTarget      int
	progressInterval int64
	maxMemory        int64 // bytes; 0 means unlimited
	sampleCap        int
	onProgress       func(Stats)
	profile          bool
	debug            bool
	logger           log.Logger
}

// Option configures a Converter.
type Option func(*config)

// WithCSVDelimiter sets the CSV field delimiter byte for both parsing and
// emission. The default is ','.
func WithCSVDelimiter(b byte) Option {
	return func(c *config) {
		c.csv.delimiter = b
		c.csvDelimSet = true
	}
}

// WithCSVQuote sets the CSV quote byte. The default is '"'.
func WithCSVQuote(b byte) Option {
	return func(c *config) { c.csv.quote = b }
}

// WithCSVHeaders controls whether the first CSV row is a header. The
// default is true; without headers, columns are named col_0, col_1, …
func WithCSVHeaders(has bool) Option {
	return func(c *config) {
		c.csv.hasHeaders = has
		c.csvHeaderSet = true
	}
}

// WithCSVTrimWhitespace trims whitespace around unquoted CSV fields.
func WithCSVTrimWhitespace() Option {
	return func(c *config) { c.csv.trimWhitespace = true }
}

// WithXMLRecordElement names the XML element that frames one record. When
// unset, the parser uses the first child of the root and the emitter uses
// "record".
func WithXMLRecordElement(name string) Option {
	return func(c *config) { c.xml.recordElement = name }
}

// WithXMLRootElement names the root element the XML emitter writes. The
// default is "root".
func WithXMLRootElement(name string) Option {
	return func(c *config) { c.xml.rootElement = name }
}

// WithXMLIncludeAttributes exposes attributes on the record element as
// fields named with an '@' prefix.
func WithXMLIncludeAttributes() Option {
	return func(c *config) { c.xml.includeAttributes = true }
}

// WithXMLTrimText controls trimming of element text whitespace. The
// default is true.
func WithXMLTrimText(trim bool) Option {
	return func(c *config) { c.xml.trimText = trim }
}

// WithTransform installs the per-record transform stage.
func WithTransform(t *Transform) Option {
	return func(c *config) { c.transform = t }
}

// WithChunkTarget tunes the size of the internal staging slab; it bounds
// how much consumed input is retained before compaction.
func WithChunkTarget(n int) Option {
	return func(c *config) { c.chunkTarget = n }
}

// WithProgress installs a progress callback invoked synchronously inside
// Push, at record granularity, at most once per intervalBytes of input.
// The callback receives a copy of the stats and must not call Push.
func WithProgress(intervalBytes int64, fn func(Stats)) Option {
	return func(c *config) {
		c.progressInterval = intervalBytes
		c.onProgress = fn
	}
}

// WithMaxMemory caps the partial-record carry at mb megabytes. Push fails
// with ErrResourceExhausted when a single record exceeds the cap.
func WithMaxMemory(mb int) Option {
	return func(c *config) { c.maxMemory = int64(mb) * 1024 * 1024 }
}

// WithDetectionSampleCap bounds how many bytes format auto-detection may
// inspect. The default is 256 KiB.
func WithDetectionSampleCap(n int) Option {
	return func(c *config) { c.sampleCap = n }
}

// WithProfile enables the stage timing counters in Stats.
func WithProfile() Option {
	return func(c *config) { c.profile = true }
}

// WithDebug enables debug diagnostics on the configured logger.
func WithDebug() Option {
	return func(c *config) { c.debug = true }
}

// WithLogger sets the logger used for diagnostics. The default discards
// everything.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// convState tracks the converter lifecycle.
type convState int

const (
	stateCreated convState = iota
	stateActive
	statePaused
	stateFinished
	stateAborted
	stateFailed
)

// Converter is the streaming conversion engine. It owns the input buffer,
// one parser, one emitter, the optional transform, and the stats for a
// single conversion. See the package documentation for the push/finish
// protocol.
//
// A Converter is not safe for concurrent use.
type Converter struct {
	cfg     config
	buf     *buffer
	parser  parser
	emitter emitter
	logger  log.Logger

	stats        Stats
	state        convState
	inPush       bool
	bomDone      bool
	pending      []byte
	lastProgress int64
	recordIndex  int64
	detected     *DetectedStructure
	err          error
}

const (
	defaultChunkTarget      = 64 * 1024
	defaultProgressInterval = 1024 * 1024
	defaultSampleCap        = 256 * 1024
)

// NewConverter validates the configuration and builds a converter for one
// conversion from input to output format. Use FormatAuto as input to defer
// the choice to detection on the first pushed bytes.
func NewConverter(input, output Format, opts ...Option) (*Converter, error) {
	cfg := config{
		input:            input,
		output:           output,
		csv:              defaultCSVConfig(),
		xml:              defaultXMLConfig(),
		chunkTarget:      defaultChunkTarget,
		progressInterval: defaultProgressInterval,
		sampleCap:        defaultSampleCap,
		logger:           log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !input.validInput() {
		return nil, fmt.Errorf("%w: input format %s", ErrConfigInvalid, input)
	}
	if !output.validOutput() {
		return nil, fmt.Errorf("%w: output format %s", ErrConfigInvalid, output)
	}
	if cfg.csv.delimiter == cfg.csv.quote {
		return nil, fmt.Errorf("%w: delimiter and quote are both %q", ErrConfigInvalid, cfg.csv.delimiter)
	}
	switch cfg.csv.delimiter {
	case '\r', '\n':
		return nil, fmt.Errorf("%w: delimiter cannot be a line terminator", ErrConfigInvalid)
	}
	if cfg.xml.rootElement == "" || !isValidXMLName(cfg.xml.rootElement) {
		return nil, fmt.Errorf("%w: root element %q", ErrConfigInvalid, cfg.xml.rootElement)
	}
	if cfg.xml.recordElement != "" && !isValidXMLName(cfg.xml.recordElement) {
		return nil, fmt.Errorf("%w: record element %q", ErrConfigInvalid, cfg.xml.recordElement)
	}
	if cfg.transform != nil {
		if err := cfg.transform.validate(); err != nil {
			return nil, err
		}
	}
	if cfg.chunkTarget <= 0 {
		return nil, fmt.Errorf("%w: chunk target must be positive", ErrConfigInvalid)
	}

	c := &Converter{
		cfg:     cfg,
		buf:     newBuffer(cfg.chunkTarget),
		emitter: newEmitter(output, &cfg),
		logger:  cfg.logger,
	}
	if input != FormatAuto {
		c.parser = newParser(input, &cfg)
	}
	c.pending = c.emitter.begin()
	return c, nil
}

// Push appends a chunk to the input, drains every complete record through
// the pipeline, and returns the output bytes produced. While paused, Push
// buffers the chunk and produces nothing.
func (c *Converter) Push(chunk []byte) ([]byte, error) {
	if err := c.checkCallable(); err != nil {
		return nil, err
	}
	c.inPush = true
	defer func() { c.inPush = false }()

	c.stats.BytesIn += int64(len(chunk))
	c.stats.ChunksIn++
	c.buf.append(chunk)
	c.noteBufferSize()
	if c.cfg.debug {
		_ = level.Debug(c.logger).Log("event", "push", "bytes", len(chunk), "partial", c.buf.pending())
	}
	if c.state == stateCreated {
		c.state = stateActive
	}
	if c.state == statePaused {
		return nil, nil
	}
	out, err := c.drain(false)
	c.stats.BytesOut += int64(len(out))
	return out, err
}

// Finish signals end of input: the final partial record is closed (or
// reported as malformed), the emitter postlude is produced, and the
// converter becomes terminal.
func (c *Converter) Finish() ([]byte, error) {
	if err := c.checkCallable(); err != nil {
		return nil, err
	}
	c.inPush = true
	defer func() { c.inPush = false }()

	out, err := c.drain(true)
	if err != nil {
		c.stats.BytesOut += int64(len(out))
		return out, err
	}
	if c.parser != nil {
		start := c.now()
		recs, perr := c.parser.eof(c.buf)
		c.noteParse(start)
		var emitted []byte
		emitted, err = c.processRecords(recs)
		out = append(out, emitted...)
		if err == nil && perr != nil {
			err = perr
		}
		if err != nil {
			c.fail(err)
			c.stats.BytesOut += int64(len(out))
			return out, err
		}
	}
	tail, err := c.emitter.end()
	if err != nil {
		c.fail(err)
		c.stats.BytesOut += int64(len(out))
		return out, err
	}
	out = append(out, tail...)
	c.state = stateFinished
	c.stats.BytesOut += int64(len(out))
	if c.cfg.debug {
		_ = level.Debug(c.logger).Log("event", "finish", "records", c.stats.RecordsProcessed, "bytes_out", c.stats.BytesOut)
	}
	return out, nil
}

// Pause suspends record production. Pushed chunks are buffered untouched
// until Resume.
func (c *Converter) Pause() {
	if c.state == stateActive || c.state == stateCreated {
		c.state = statePaused
	}
}

// Resume reactivates the converter and drains the backlog accumulated
// while paused, returning the output it produced.
func (c *Converter) Resume() ([]byte, error) {
	if c.state != statePaused {
		return nil, nil
	}
	c.state = stateActive
	out, err := c.drain(false)
	c.stats.BytesOut += int64(len(out))
	return out, err
}

// Abort cancels the conversion. The record currently being written is
// completed; subsequent Push and Finish calls fail with ErrAborted.
// Already-returned output remains valid.
func (c *Converter) Abort() {
	switch c.state {
	case stateCreated, stateActive, statePaused:
		c.state = stateAborted
	}
}

// IsAborted reports whether Abort has been called.
func (c *Converter) IsAborted() bool {
	return c.state == stateAborted
}

// Stats returns a snapshot of the conversion counters.
func (c *Converter) Stats() Stats {
	return c.snapshot()
}

// DetectedStructure returns what auto-detection concluded about the input,
// or nil when the input format was fixed or not yet detected.
func (c *Converter) DetectedStructure() *DetectedStructure {
	return c.detected
}

func (c *Converter) checkCallable() error {
	switch {
	case c.inPush:
		return fmt.Errorf("%w: re-entry from a progress callback", ErrState)
	case c.state == stateAborted:
		return ErrAborted
	case c.state == stateFinished:
		return fmt.Errorf("%w: conversion already finished", ErrState)
	case c.state == stateFailed:
		return fmt.Errorf("%w: conversion failed: %v", ErrState, c.err)
	}
	return nil
}

func (c *Converter) fail(err error) {
	c.err = err
	c.state = stateFailed
	if c.cfg.debug {
		_ = level.Error(c.logger).Log("event", "error", "err", err)
	}
}

// drain runs detection, parsing, transformation, and emission over the
// buffered input. finishing relaxes the wait-for-more-input paths.
func (c *Converter) drain(finishing bool) ([]byte, error) {
	out := c.pending
	c.pending = nil

	if !c.bomDone && !c.checkBOM(finishing) {
		return out, nil
	}
	if c.parser == nil {
		ready, err := c.resolveAuto(finishing)
		if err != nil {
			c.fail(err)
			return out, err
		}
		if !ready {
			return out, nil
		}
	}

	start := c.now()
	recs, perr := c.parser.drain(c.buf)
	c.noteParse(start)

	emitted, err := c.processRecords(recs)
	out = append(out, emitted...)
	if err == nil && perr != nil {
		err = perr
	}
	if err != nil {
		c.fail(err)
		return out, err
	}

	c.noteBufferSize()
	if c.cfg.maxMemory > 0 && int64(c.buf.pending()) > c.cfg.maxMemory {
		err := fmt.Errorf("%w: partial record of %d bytes exceeds the configured limit", ErrResourceExhausted, c.buf.pending())
		c.fail(err)
		return out, err
	}
	c.buf.compact()
	return out, nil
}

// processRecords routes a parsed batch through the transform and emitter,
// honoring abort at each record boundary.
func (c *Converter) processRecords(recs []*Record) ([]byte, error) {
	var out []byte
	for _, rec := range recs {
		if c.state == stateAborted {
			break
		}
		idx := c.recordIndex
		c.recordIndex++

		if c.cfg.transform != nil {
			start := c.now()
			res, skip, err := c.cfg.transform.apply(rec, idx)
			c.noteTransform(start)
			if err != nil {
				return out, err
			}
			if skip {
				c.stats.RecordsFiltered++
				continue
			}
			rec = res
		}

		start := c.now()
		b, err := c.emitter.writeRecord(rec, idx)
		c.noteWrite(start)
		if err != nil {
			return out, err
		}
		out = append(out, b...)
		c.stats.RecordsProcessed++
		c.maybeProgress()
	}
	return out, nil
}

// checkBOM strips a UTF-8 byte-order mark at the start of the input. It
// returns false while the first bytes could still turn out to be a BOM.
func (c *Converter) checkBOM(finishing bool) bool {
	utf8BOM := []byte{0xEF, 0xBB, 0xBF}
	w := c.buf.window()
	if len(w) >= 3 {
		if bytes.Equal(w[:3], utf8BOM) {
			c.buf.advance(3)
		}
		c.bomDone = true
		return true
	}
	if finishing || !bytes.HasPrefix(utf8BOM, w) {
		c.bomDone = true
		return true
	}
	return false
}

// resolveAuto runs format detection once enough sample is buffered and
// instantiates the parser. ready is false while detection should wait for
// more input.
func (c *Converter) resolveAuto(finishing bool) (ready bool, err error) {
	w := c.buf.window()
	if len(w) == 0 {
		return false, nil
	}
	if finishing && len(trimSampleStart(w)) == 0 {
		// Whitespace-only input: nothing to parse, only framing to emit.
		c.buf.advance(c.buf.pending())
		return false, nil
	}
	sample := w
	if len(sample) > c.cfg.sampleCap {
		sample = sample[:c.cfg.sampleCap]
	}
	format := DetectFormat(sample)
	if format == FormatUnknown {
		if finishing || len(w) >= c.cfg.sampleCap {
			return false, newParseError(FormatAuto, c.buf.consumed(), "unable to detect input format")
		}
		return false, nil
	}
	// Delimiter and header inference need at least one complete line.
	if format == FormatCSV && !finishing && len(w) < c.cfg.sampleCap && bytes.IndexByte(sample, '\n') < 0 {
		return false, nil
	}
	ds := DetectStructure(sample, format)
	if ds == nil {
		if finishing || len(w) >= c.cfg.sampleCap {
			return false, newParseError(FormatAuto, c.buf.consumed(), "unable to detect input format")
		}
		return false, nil
	}
	c.detected = ds
	if ds.Format == FormatCSV {
		if !c.cfg.csvDelimSet {
			c.cfg.csv.delimiter = ds.Delimiter
		}
		if !c.cfg.csvHeaderSet {
			c.cfg.csv.hasHeaders = ds.HasHeaders
		}
	}
	if ds.Format == FormatXML && c.cfg.xml.recordElement == "" {
		c.cfg.xml.recordElement = ds.RecordElement
	}
	c.parser = newParser(ds.Format, &c.cfg)
	if c.cfg.debug {
		_ = level.Debug(c.logger).Log("event", "detected", "format", ds.Format)
	}
	return true, nil
}

func (c *Converter) maybeProgress() {
	if c.cfg.onProgress == nil {
		return
	}
	if c.stats.BytesIn-c.lastProgress < c.cfg.progressInterval {
		return
	}
	c.lastProgress = c.stats.BytesIn
	c.cfg.onProgress(c.snapshot())
}

func (c *Converter) snapshot() Stats {
	s := c.stats
	s.CurrentPartialSize = c.buf.pending()
	if s.CurrentPartialSize > s.MaxBufferSize {
		s.MaxBufferSize = s.CurrentPartialSize
	}
	s.computeThroughput()
	return s
}

func (c *Converter) noteBufferSize() {
	if p := c.buf.pending(); p > c.stats.MaxBufferSize {
		c.stats.MaxBufferSize = p
	}
}

// now returns the wall clock when profiling, and the zero time otherwise
// so the timing paths stay cheap.
func (c *Converter) now() time.Time {
	if c.cfg.profile {
		return time.Now()
	}
	return time.Time{}
}

func (c *Converter) noteParse(start time.Time) {
	if c.cfg.profile {
		c.stats.ParseTime += time.Since(start)
	}
}

func (c *Converter) noteTransform(start time.Time) {
	if c.cfg.profile {
		c.stats.TransformTime += time.Since(start)
	}
}

func (c *Converter) noteWrite(start time.Time) {
	if c.cfg.profile {
		c.stats.WriteTime += time.Since(start)
	}
}
