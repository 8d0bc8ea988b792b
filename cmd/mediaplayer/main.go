// Command mediaplayer is a demo wiring of the streaming pipeline: it loads
// a YAML config, builds a Pipeline with a file-backed UriProvider and the
// reference WAV codec, and runs it until the source track ends or it is
// interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/linn-oss/ohmediapipeline/codec/id3"
	"github.com/linn-oss/ohmediapipeline/codec/wav"
	"github.com/linn-oss/ohmediapipeline/config"
	"github.com/linn-oss/ohmediapipeline/msg"
	"github.com/linn-oss/ohmediapipeline/pipeline"
	"github.com/linn-oss/ohmediapipeline/playlist"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML pipeline config file")
	logLevel := pflag.String("log-level", "", "log level override: debug, info, warn, error")
	source := pflag.String("source", "", "file:// URI of the track to play (overrides config's source)")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *source != "" {
		cfg.Source = *source
	}
	if cfg.Source == "" {
		fmt.Fprintln(os.Stderr, "mediaplayer: no source given (--source or config's source field)")
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, log, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("mediaplayer exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg config.Config) error {
	factory := msg.NewFactory(msg.DefaultFactoryParams())

	pcfg := pipeline.Config{
		EncodedReservoirBytes:   cfg.EncodedReservoirBytes,
		DecodedReservoirJiffies: cfg.DecodedReservoirJiffies,
		GorgeSizeJiffies:        cfg.GorgeSizeJiffies,
		RampDurationJiffies:     cfg.RampDurationJiffies,
		StarvationLowMs:         cfg.StarvationLowMs,
		StarvationNormalMs:      cfg.StarvationNormalMs,
	}

	obs := &logObserver{log: log}
	wavCodec := wav.New(factory)
	strippers := []pipeline.ContainerStripper{id3.New()}
	p := pipeline.New(log, pcfg, factory, nil, []pipeline.Codec{wavCodec}, strippers, obs)
	p.Start(ctx)
	defer p.Quit() //nolint:errcheck

	db := playlist.NewTrackDatabase()
	trackID, err := db.Insert(0, cfg.Source, "")
	if err != nil {
		return fmt.Errorf("mediaplayer: failed to queue source: %w", err)
	}

	provider := playlist.NewLinearProvider(db)
	filler := playlist.NewFiller(log, provider, p, p, fileOpener{}, factory)
	go filler.Run(ctx)

	filler.Play(playlist.ModePlaylist, trackID)
	p.Play()

	for {
		m := p.Pull()
		if m == nil {
			return nil
		}
		switch v := m.(type) {
		case *msg.Quit:
			v.Release()
			return nil
		case *msg.Halt:
			log.Info("playback halted", "haltId", v.ID)
			v.Release()
			return nil
		default:
			m.Release()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// fileOpener resolves file:// URIs (and bare paths) to local files for the
// Filler's StreamOpener.
type fileOpener struct{}

func (fileOpener) Open(uri string) (io.ReadCloser, int64, error) {
	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// logObserver renders pipeline.Observer notifications as structured log
// lines.
type logObserver struct {
	log *slog.Logger
}

func (o *logObserver) NotifyMode(mode string) {
	o.log.Debug("mode", "mode", mode)
}

func (o *logObserver) NotifyTrack(uri, metadata string, id uint32) {
	o.log.Info("track", "uri", uri, "trackId", id)
}

func (o *logObserver) NotifyMetaText(text string) {
	o.log.Debug("metatext", "text", text)
}

func (o *logObserver) NotifyStreamInfo(info pipeline.StreamInfo) {
	o.log.Info("stream format", "codec", info.CodecName, "sampleRate", info.SampleRate,
		"bitDepth", info.BitDepth, "channels", info.Channels, "lossless", info.Lossless)
}

func (o *logObserver) NotifyTime(seconds uint64) {
	o.log.Debug("time", "seconds", seconds)
}

func (o *logObserver) NotifyPipelineState(state pipeline.State) {
	o.log.Info("state", "state", state.String())
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
