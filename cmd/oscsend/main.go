// oscsend sends OSC values to a UDP peer.
//
// In the default mode it sends one message and exits:
//
//	oscsend --host 127.0.0.1 --port 9000 --pattern /synth/freq --type f 440
//
// With --stream it reads "<pattern> <type> <value>" lines from stdin and
// feeds them through a dispatcher, which sends at most one bundle per
// --interval until stdin is exhausted or the process is interrupted.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	osc "github.com/pfcm/oscsend"
	"github.com/pfcm/oscsend/dispatch"
)

type options struct {
	host       string
	port       string
	pattern    string
	typeTag    string
	stream     bool
	accumulate bool
	interval   time.Duration
	verbose    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var o options
	flagSet := pflag.NewFlagSet("oscsend", pflag.ContinueOnError)
	flagSet.StringVar(&o.host, "host", "127.0.0.1", "`host` to send to")
	flagSet.StringVar(&o.port, "port", "", "`port` or service name to send to")
	flagSet.StringVar(&o.pattern, "pattern", "/test", "`address pattern` to send a message to")
	flagSet.StringVarP(&o.typeTag, "type", "t", "i", "type tag of the value: one of i, f, s, b, T, F")
	flagSet.BoolVar(&o.stream, "stream", false, "read \"<pattern> <type> <value>\" lines from stdin")
	flagSet.BoolVar(&o.accumulate, "accumulate", false, "in stream mode, queue every value instead of keeping only the newest")
	flagSet.DurationVar(&o.interval, "interval", 50*time.Millisecond, "in stream mode, how often to flush")
	flagSet.BoolVarP(&o.verbose, "verbose", "v", false, "log debug output")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if o.port == "" {
		return fmt.Errorf("--port is required")
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.stream {
		return stream(ctx, logger, o, os.Stdin)
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("expected at most one value, got %d", flagSet.NArg())
	}
	return send(ctx, logger, o, flagSet.Arg(0))
}

func send(ctx context.Context, logger *slog.Logger, o options, raw string) error {
	v, err := parseValue(o.typeTag, raw)
	if err != nil {
		return err
	}
	ep, err := osc.Connect(ctx, o.host, o.port, osc.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ep.Close()
	n, err := ep.SendValue(o.pattern, v)
	if err != nil {
		return err
	}
	logger.Info("sent", "pattern", o.pattern, "value", v, "bytes", n, "peer", ep.RemoteAddr())
	return nil
}

func stream(ctx context.Context, logger *slog.Logger, o options, in io.Reader) error {
	policy := dispatch.Replace
	if o.accumulate {
		policy = dispatch.Accumulate
	}
	d, err := dispatch.Create(ctx, o.host, o.port,
		dispatch.WithLogger(logger),
		dispatch.WithPolicy(policy),
		dispatch.WithInterval(o.interval),
		dispatch.WithOnFlush(func(b osc.Bundle, n int, err error) {
			logger.Debug("flushed", "messages", len(b.Messages), "bytes", n, "err", err)
		}))
	if err != nil {
		return err
	}
	defer d.Close()

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		sc := bufio.NewScanner(in)
		for line := 1; sc.Scan(); line++ {
			text := strings.TrimSpace(sc.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			if err := setLine(d, text); err != nil {
				logger.Warn("skipping line", "line", line, "err", err)
			}
			if gctx.Err() != nil {
				return nil
			}
		}
		if gctx.Err() != nil {
			// Interrupted, the read error is from closing in.
			return nil
		}
		return sc.Err()
	})
	g.Go(func() error {
		select {
		case <-done:
		case <-gctx.Done():
			// Unblock the reader if we can.
			if c, ok := in.(io.Closer); ok {
				c.Close()
			}
			return nil
		}
		// Give the last values their chance to go out.
		for _, addr := range d.Addresses() {
			for d.Pending(addr) > 0 {
				if _, err := d.Flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return g.Wait()
}

// setLine stores one "<pattern> <type> <value>" line in d. Numbers typed f
// go through SetNumberAsFloat32 so integer input still lands as a float.
func setLine(d *dispatch.Dispatcher, line string) error {
	pattern, rest, _ := strings.Cut(line, " ")
	typeTag, raw, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if typeTag == "f" {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return dispatch.SetNumberAsFloat32(d, pattern, i)
		}
	}
	v, err := parseValue(typeTag, raw)
	if err != nil {
		return err
	}
	return d.SetValue(pattern, v)
}

func parseValue(typeTag, raw string) (osc.Argument, error) {
	switch typeTag {
	case "i":
		i, err := strconv.ParseInt(raw, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("int32 value: %w", err)
		}
		return osc.AsInt32(i), nil
	case "f":
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("float32 value: %w", err)
		}
		return osc.AsFloat32(f), nil
	case "s":
		return osc.AsString(raw), nil
	case "b":
		return osc.Blob(raw), nil
	case "T", "F":
		return osc.AsBool(typeTag == "T"), nil
	}
	return nil, fmt.Errorf("unknown type tag %q", typeTag)
}
