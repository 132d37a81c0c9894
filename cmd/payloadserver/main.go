// payloadserver serves the payload writer over HTTP.
//
// Usage:
//
//	payloadserver --port 4437 --model model.yaml --store ./data --compress
//
// Without --store payloads are kept in an in-memory Badger database and are
// lost on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/httpapi"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/memorymodel"
	"github.com/ahimsalabs/payloadwriter-go/storage/badgerstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr, nil); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	addr            string
	port            int
	model           string
	store           string
	compress        bool
	ttl             time.Duration
	maxDocumentSize int64
	maxDepth        int
	gcInterval      time.Duration
	logLevel        string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	flagSet := pflag.NewFlagSet("payloadserver", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&o.addr, "addr", "", "address to listen on")
	flagSet.IntVarP(&o.port, "port", "p", 4437, "port to listen on")
	flagSet.StringVar(&o.model, "model", "", "path to a YAML model")
	flagSet.StringVar(&o.store, "store", "", "Badger database directory (default: in memory)")
	flagSet.BoolVar(&o.compress, "compress", false, "store payloads zstd-compressed")
	flagSet.DurationVar(&o.ttl, "ttl", 0, "default expiry of stored payloads")
	flagSet.Int64Var(&o.maxDocumentSize, "max-document-size", 0, "maximum request document size in bytes (default 10MB)")
	flagSet.IntVar(&o.maxDepth, "max-depth", 0, "default maximum resource nesting depth (default 100)")
	flagSet.DurationVar(&o.gcInterval, "gc-interval", 0, "value log GC interval, negative to disable (default 5m)")
	flagSet.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if o.port < 0 || o.port > 65535 {
		return nil, fmt.Errorf("invalid port %d", o.port)
	}
	if o.ttl < 0 {
		return nil, errors.New("--ttl must not be negative")
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

// run serves until ctx is done. ready, if set, is called with the listen
// address once the server accepts connections.
func run(ctx context.Context, args []string, stderr io.Writer, ready func(addr string)) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(o.logLevel, stderr)
	if err != nil {
		return err
	}

	cfg := &httpapi.HandlerConfig{
		MaxDocumentSize: o.maxDocumentSize,
		MaxNestingDepth: o.maxDepth,
		Logger:          logger,
	}
	if o.model != "" {
		m, err := memorymodel.LoadFile(o.model)
		if err != nil {
			return err
		}
		cfg.Model = m
	}

	store, err := badgerstore.New(badgerstore.Options{
		Dir:        o.store,
		InMemory:   o.store == "",
		Logger:     badgerstore.SlogLogger(logger),
		SLogger:    logger,
		Compress:   o.compress,
		DefaultTTL: o.ttl,
		GCInterval: o.gcInterval,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewHandler(store, cfg))

	ln, err := net.Listen("tcp", net.JoinHostPort(o.addr, fmt.Sprint(o.port)))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("payloadserver: listening", "addr", ln.Addr().String(), "store", o.store, "model", o.model)
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("payloadserver: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
