// Command rtmpflv moves FLV streams over RTMP.
//
//	rtmpflv [-config file] play    [-url rtmp://host/app/media] [-o out.flv]
//	rtmpflv [-config file] publish [-url rtmp://host/app/media] -i in.flv
//	rtmpflv [-config file] relay   [-listen :1935]
//
// play and publish dial the URL when rtmp.connect is true, and otherwise wait
// for a peer on rtmp.listen that publishes (play) or plays (publish).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv"
	"github.com/torresjeff/rtmpflv/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "play":
		err = play(ctx, cfg, logger, args)
	case "publish":
		err = publish(ctx, cfg, logger, args)
	case "relay":
		err = relay(ctx, cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command+" failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-config file] play|publish|relay [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

// newLogger returns a development logger for debug, a production logger at
// the given level otherwise. Both write to stderr so stdout can carry media.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(l)
	return zcfg.Build()
}

func play(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	url := fs.String("url", cfg.RTMP.URL, "stream to play")
	output := fs.String("o", "-", "FLV file to write, - for stdout")
	fs.Parse(args)

	var out io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer f.Close()
		out = f
	}

	opts := []rtmp.Option{rtmp.WithLogger(logger), rtmp.WithConfig(cfg)}
	var c *rtmp.Conn
	var err error
	if cfg.RTMP.Connect {
		c, err = rtmp.Dial(ctx, *url, opts...)
	} else {
		c, err = acceptMode(ctx, cfg.RTMP.Listen, rtmp.ModePlay, opts)
	}
	if err != nil {
		return err
	}
	defer c.Close()
	go closeOnDone(ctx, c)

	n, err := io.Copy(out, c)
	logger.Info("stream ended", zap.Int64("bytes", n))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func publish(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	url := fs.String("url", cfg.RTMP.URL, "stream to publish to")
	input := fs.String("i", "", "FLV file to send")
	fs.Parse(args)
	if *input == "" {
		return errors.New("publish needs an input file (-i)")
	}

	f, err := os.Open(*input)
	if err != nil {
		return errors.Wrap(err, "open input")
	}
	defer f.Close()

	opts := []rtmp.Option{rtmp.WithLogger(logger), rtmp.WithConfig(cfg)}
	var c *rtmp.Conn
	if cfg.RTMP.Connect {
		c, err = rtmp.DialPublish(ctx, *url, opts...)
	} else {
		c, err = acceptMode(ctx, cfg.RTMP.Listen, rtmp.ModePublish, opts)
	}
	if err != nil {
		return err
	}
	defer c.Close()
	go closeOnDone(ctx, c)

	n, err := io.Copy(c, f)
	logger.Info("file sent", zap.Int64("bytes", n))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func relay(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	listen := fs.String("listen", cfg.RTMP.Listen, "address to accept publishers and players on")
	fs.Parse(args)

	broadcaster := rtmp.NewBroadcaster(rtmp.NewInMemoryContext(), logger)
	server := &rtmp.Server{
		Addr:    *listen,
		Logger:  logger,
		Config:  cfg,
		Handler: broadcaster.Serve,
	}
	return server.ListenAndServe(ctx)
}

// acceptMode waits on addr for the first peer whose session has the given
// mode. Peers going the other way are turned away.
func acceptMode(ctx context.Context, addr string, mode rtmp.Mode, opts []rtmp.Option) (*rtmp.Conn, error) {
	ln, err := rtmp.Listen(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	for {
		c, err := ln.Accept(ctx)
		if err != nil {
			return nil, err
		}
		if c.Mode() == mode {
			return c, nil
		}
		c.Close()
	}
}

func closeOnDone(ctx context.Context, c *rtmp.Conn) {
	select {
	case <-ctx.Done():
		c.Close()
	case <-c.Session().Done():
	}
}
