// payloadgen writes a payload document through the streaming payload
// writer and prints or stores the result.
//
// Usage:
//
//	payloadgen --model model.yaml --source Customers --input customer.jsonc
//	payloadgen --format cbor --diag --input orders.jsonc
//	payloadgen --store ./data --compress --ttl 1h --input customer.jsonc
//
// The input is a JSONC document (see package document); "-" or no --input
// reads standard input. With --store the payload is kept in a Badger
// database and its metadata is printed instead of the payload.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/document"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/cborenc"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/jsonenc"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/memorymodel"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/selection"
	"github.com/ahimsalabs/payloadwriter-go/storage/badgerstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	model       string
	source      string
	input       string
	format      string
	diag        bool
	request     bool
	delta       bool
	selectPaths string
	maxDepth    int
	async       bool
	lenient     bool
	allowDups   bool
	omitContext bool
	store       string
	id          string
	ttl         time.Duration
	compress    bool
	logLevel    string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	flagSet := pflag.NewFlagSet("payloadgen", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&o.model, "model", "", "path to a YAML model")
	flagSet.StringVar(&o.source, "source", "", "navigation source of the top-level items (requires --model)")
	flagSet.StringVarP(&o.input, "input", "i", "-", "path to a JSONC payload document, - for stdin")
	flagSet.StringVarP(&o.format, "format", "f", "json", "output format: json or cbor")
	flagSet.BoolVar(&o.diag, "diag", false, "print CBOR output in diagnostic notation")
	flagSet.BoolVar(&o.request, "request", false, "write a request payload")
	flagSet.BoolVar(&o.delta, "delta", false, "write a delta response")
	flagSet.StringVar(&o.selectPaths, "select", "", "comma-separated member paths to write, such as Orders/Items")
	flagSet.IntVar(&o.maxDepth, "max-depth", 0, "maximum resource nesting depth (default 100)")
	flagSet.BoolVar(&o.async, "async", false, "drive the writer through its context-aware calls")
	flagSet.BoolVar(&o.lenient, "lenient", false, "disable duplicate field and type validation")
	flagSet.BoolVar(&o.allowDups, "allow-duplicates", false, "report duplicate fields as warnings")
	flagSet.BoolVar(&o.omitContext, "omit-context", false, "leave out @context annotations")
	flagSet.StringVar(&o.store, "store", "", "store the payload in the Badger database at this directory")
	flagSet.StringVar(&o.id, "id", "", "payload ID in the store (default: content digest)")
	flagSet.DurationVar(&o.ttl, "ttl", 0, "expire the stored payload after this duration")
	flagSet.BoolVar(&o.compress, "compress", false, "store the payload zstd-compressed")
	flagSet.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if o.format != "json" && o.format != "cbor" {
		return nil, fmt.Errorf("unknown format %q", o.format)
	}
	if o.source != "" && o.model == "" {
		return nil, errors.New("--source requires --model")
	}
	if o.diag && o.format != "cbor" {
		return nil, errors.New("--diag requires --format cbor")
	}
	return &o, nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(o.logLevel, stderr)
	if err != nil {
		return err
	}

	doc, err := readDocument(o.input, stdin)
	if err != nil {
		return err
	}

	cfg := &payloadwriter.Config{
		WritingCollection:    doc.IsCollection(),
		WritingRequest:       o.request,
		WritingDelta:         o.delta,
		Async:                o.async,
		MaxNestingDepth:      o.maxDepth,
		Lenient:              o.lenient,
		AllowDuplicateFields: o.allowDups,
		Logger:               logger,
	}
	if o.model != "" {
		m, err := memorymodel.LoadFile(o.model)
		if err != nil {
			return err
		}
		cfg.Model = m
		if o.source != "" {
			src, ok := m.Source(o.source)
			if !ok {
				return fmt.Errorf("model has no source %q", o.source)
			}
			cfg.NavigationSource = src
		}
	}
	if o.selectPaths != "" {
		sel, err := selection.Parse(strings.Split(o.selectPaths, ",")...)
		if err != nil {
			return err
		}
		cfg.Selection = sel
	}

	var out bytes.Buffer
	var enc payloadwriter.Encoder
	contentType := ""
	switch o.format {
	case "cbor":
		e := cborenc.New(&out, &cborenc.Options{OmitContext: o.omitContext})
		enc, contentType = e, e.ContentType()
	default:
		e := jsonenc.New(&out, &jsonenc.Options{OmitContext: o.omitContext})
		enc, contentType = e, e.ContentType()
	}

	w := payloadwriter.New(enc, cfg)
	defer w.Close()
	if o.async {
		err = doc.WriteAsync(ctx, w.Async())
	} else {
		err = doc.Write(w)
	}
	if err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	for _, warning := range w.Warnings() {
		logger.Debug("payloadgen: validation warning", "warning", warning)
	}

	if o.store != "" {
		return storePayload(ctx, o, logger, contentType, out.Bytes(), stdout)
	}
	return printPayload(o, out.Bytes(), stdout)
}

func readDocument(path string, stdin io.Reader) (*document.Document, error) {
	if path != "" && path != "-" {
		return document.ReadFile(path)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return document.Parse(data)
}

func printPayload(o *options, payload []byte, stdout io.Writer) error {
	if o.diag {
		text, err := cborenc.Diagnose(payload)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, text)
		return err
	}
	if _, err := stdout.Write(payload); err != nil {
		return err
	}
	if o.format == "json" {
		_, err := fmt.Fprintln(stdout)
		return err
	}
	return nil
}

func storePayload(ctx context.Context, o *options, logger *slog.Logger, contentType string, payload []byte, stdout io.Writer) error {
	store, err := badgerstore.New(badgerstore.Options{
		Dir:        o.store,
		Logger:     badgerstore.SlogLogger(logger),
		SLogger:    logger,
		Compress:   o.compress,
		GCInterval: -1,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	sink := store.Sink(ctx, o.id, contentType, o.ttl)
	if _, err := sink.Write(payload); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sink.Info())
}
