package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"sophie/internal/app"
	"sophie/internal/audio"
	"sophie/internal/bus"
	"sophie/internal/config"
	"sophie/internal/dialogue"
	"sophie/internal/ipc"
	"sophie/internal/metrics"
	"sophie/internal/phrase"
	"sophie/pkg/stt"
)

func main() {
	cfgPath := cli.StringP("config", "c", "", "YAML config file")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides config)")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy address for outbound HTTP")
	device := cli.IntP("device", "d", -1, "Input device index (-1 = system default)")
	choose := cli.Bool("choose-device", false, "List input devices and ask which one to use")
	metricsAddr := cli.StringP("metrics", "m", "", "Serve Prometheus metrics on this address")
	busURL := cli.String("bus", "", "Websocket bus URL for turn events")
	replay := cli.StringSlice("replay", nil, "Play these audio files instead of recording")
	saveDir := cli.String("save-dir", "", "Write every recorded utterance to this directory")
	cli.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "env:", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	overrides(cfg, *logLevel, *proxyAddr, *metricsAddr, *busURL, *saveDir)
	if cli.CommandLine.Changed("device") {
		cfg.Audio.Device = *device
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app.SetupLogging(os.Stdout, cfg.LogLevel)
	log.Info("Booting up")

	if *choose {
		cfg.Audio.Device, err = audio.ChooseDevice(os.Stdin, os.Stdout)
		if err != nil {
			log.Error("Failed to choose input device", "err", err)
			os.Exit(1)
		}
	}

	if err := run(cfg, *replay); err != nil {
		log.Error("Stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func overrides(cfg *config.Config, logLevel, proxyAddr, metricsAddr, busURL, saveDir string) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if proxyAddr != "" {
		cfg.HTTP.Proxy = proxyAddr
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if busURL != "" {
		cfg.Bus.URL = busURL
	}
	if saveDir != "" {
		cfg.Audio.SaveDir = saveDir
	}
}

func run(cfg *config.Config, replay []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.NewCore(cfg)
	if err != nil {
		return err
	}
	log.Debug("Loaded clients", "generation", cfg.Generation.Endpoint, "tts", cfg.TTS.Endpoint)

	var capture audio.Capturer
	if len(replay) > 0 {
		capture = audio.NewFileSource(replay...)
		log.Info("Replaying clips", "count", len(replay))
	} else {
		rec := audio.NewRecorder(cfg.Audio.Device)
		if err := rec.Init(); err != nil {
			return err
		}
		defer rec.Close()
		capture = rec
		log.Info("Loaded recorder", "device", rec.DeviceName())
	}

	whisper, err := stt.NewWhisper(cfg.STT.Model, stt.Options{
		Language:      cfg.STT.Language,
		Threads:       cfg.STT.Threads,
		BeamSize:      cfg.STT.BeamSize,
		InitialPrompt: cfg.STT.InitialPrompt,
	})
	if err != nil {
		return err
	}
	defer whisper.Close()
	log.Debug("Loaded whisper", "model", cfg.STT.Model)

	set, err := cfg.PhraseSet()
	if err != nil {
		return err
	}
	scorer, err := app.NewScorer(cfg.Phrases.Match, cfg.Phrases.Threshold, cfg.Phrases.PhoneticThreshold, core.Embedder)
	if err != nil {
		return fmt.Errorf("phrases: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	deps := core.Deps()
	deps.Capture = capture
	deps.Transcriber = whisper
	deps.Matcher = phrase.NewMatcher(set, scorer)
	if d := cfg.Audio.Duck; d.Enabled {
		deps.Ducker = audio.NewDucker(d.Factor, d.MinLevel, nil, audio.WithFade(d.Fade))
	}

	var (
		ctrl   *dialogue.Controller
		events *bus.Client
	)
	if cfg.Bus.URL != "" {
		events = bus.New(cfg.Bus.URL, cfg.Bus.Name, bus.OnCommand(func(cmd string) {
			if !ctrl.Submit(dialogue.Command(cmd)) {
				log.Warn("Ignored bus command", "cmd", cmd)
			}
		}))
		deps.Events = events
	}

	ctrl, err = dialogue.New(deps, dialogue.Options{
		Speaker:       cfg.Bot.Speaker,
		ListenClip:    cfg.Audio.ListenClip,
		UtteranceClip: cfg.Audio.UtteranceClip,
		Location:      loc,
		SaveDir:       cfg.Audio.SaveDir,
		RetryDelay:    cfg.Audio.ListenClip,
	})
	if err != nil {
		return err
	}

	if events != nil {
		go events.Run(ctx)
	}

	srv, err := ipc.Listen(cfg.Control.Socket, controlHandler(ctrl, core))
	if err != nil {
		return err
	}
	defer srv.Close()
	log.Debug("Control socket ready", "path", cfg.Control.Socket)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, core.Registry); err != nil {
				log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	log.Info("Boot up - successful", "bot", cfg.Bot.Name)

	err = ctrl.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func controlHandler(ctrl *dialogue.Controller, core *app.Core) ipc.Handler {
	return func(msg ipc.ControlMessage) ipc.ControlReply {
		reply := ipc.ControlReply{
			State: ctrl.State().String(),
			Turns: core.History.Len(),
		}
		switch msg.Cmd {
		case ipc.CmdStatus:
			reply.OK = true
		case ipc.CmdReset, ipc.CmdTrigger:
			reply.OK = ctrl.Submit(dialogue.Command(msg.Cmd))
			if !reply.OK {
				reply.Error = "command queue full"
			}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			reply.Error = "unknown command " + msg.Cmd
		}
		return reply
	}
}
