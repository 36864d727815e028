package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"sophie/internal/app"
	"sophie/internal/config"
	"sophie/internal/dialogue"
)

// muteVoice stands in for speech when replies are only printed.
type muteVoice struct{}

func (muteVoice) Speak(context.Context, string) error { return nil }

func main() {
	cfgPath := cli.StringP("config", "c", "", "YAML config file")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	speak := cli.BoolP("speak", "s", false, "Also speak replies through the TTS server")
	cli.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "env:", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.SetupLogging(os.Stderr, *logLevel)

	core, err := app.NewCore(cfg)
	if err != nil {
		log.Error("Failed to set up", "err", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Error("Bad timezone", "err", err)
		os.Exit(1)
	}

	deps := core.Deps()
	deps.Chime = nil
	if !*speak {
		deps.Voice = muteVoice{}
	}
	ctrl, err := dialogue.New(deps, dialogue.Options{
		Speaker:  cfg.Bot.Speaker,
		Location: loc,
	})
	if err != nil {
		log.Error("Failed to set up", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Talking to %s. /reset clears history, /quit leaves.\n", cfg.Bot.Name)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(cfg.Bot.Speaker + ": ")
		if !sc.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return
		case "/reset":
			ctrl.Reset(ctx)
			fmt.Println("(history cleared)")
			continue
		}

		reply, err := ctrl.Respond(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Println("(no reply:", err.Error()+")")
			continue
		}
		fmt.Printf("%s:%s\n", cfg.Bot.Name, reply)
	}
}
