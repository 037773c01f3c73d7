package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"elaine/internal/audio"
	"elaine/internal/avatar"
	"elaine/internal/chat"
	"elaine/internal/config"
	"elaine/internal/ipc"
	"elaine/internal/llm"
	"elaine/internal/loop"
	"elaine/internal/memory"
	"elaine/internal/notify"
	"elaine/internal/screen"
	"elaine/internal/stt"
	"elaine/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	cfg := config.Load(*envFile)

	rec := audio.NewRecorder(audio.RecorderConfig{
		SampleRate:   cfg.SampleRate,
		Threshold:    cfg.VoiceThreshold,
		ProbeWindow:  cfg.ProbeWindow,
		WaitTimeout:  cfg.WaitTimeout,
		RecordWindow: cfg.RecordWindow,
	})
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	recognizer := stt.NewService(
		buildTranscriber(cfg),
		cfg.SampleRate,
		cfg.MinDuration,
		cfg.STTTimeout,
		cfg.OutputDir,
	)

	log.Debug("Loaded recognizer")

	gen := buildGenerator(cfg)
	prompt := llm.NewPromptBuilder(cfg.UserName, cfg.BotName)
	voice := tts.NewService(buildSynthesizer(cfg), cfg.OutputDir)
	player := audio.NewPlayer(24000, cfg.MouthGain)

	var mouth loop.Mouth
	if cfg.AvatarEnabled {
		client := avatar.New(avatar.Config{
			URL:             cfg.AvatarURL,
			PluginName:      cfg.PluginName,
			PluginDeveloper: cfg.PluginDev,
			TokenFile:       cfg.TokenFile,
			KeepAlive:       cfg.KeepAlive,
		})
		client.Start()
		defer client.Close()
		mouth = client
		log.Debug("Loaded avatar client")
	}

	var mem *memory.Log
	if cfg.MemoryFile != "" {
		mem = memory.New(cfg.MemoryFile)
	}

	l := loop.New(loop.Config{
		SampleRate:   cfg.SampleRate,
		HistoryBound: cfg.HistoryBound,
		Pause:        cfg.Pause,
		MouthParam:   cfg.MouthParam,
	}, chimedListener{rec: rec, player: player, chime: cfg.ChimePath}, recognizer, gen, prompt, voice, player, mouth, mem)

	if mem != nil {
		records, err := mem.Load(cfg.HistoryBound)
		if err != nil {
			log.Warn("Failed to load memory", "err", err)
		} else {
			l.SeedHistory(records)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case "mute":
			l.SetMuted(true)
		case "unmute":
			l.SetMuted(false)
		case "trigger":
			l.ForceListen()
		case "say":
			l.Say(ctx, msg.Text)
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	var thinker *loop.Thinker
	if cfg.ThinkerEnabled {
		thinker = loop.NewThinker(l, gen, prompt, cfg.ThinkerIdle)
		go thinker.Run(ctx)
		log.Debug("Loaded thinker")
	}

	if cfg.TwitchEnabled {
		onMsg := func(user, text string) {
			if thinker != nil {
				thinker.PushChat(user + ": " + text)
			}
		}
		bridge := chat.NewBridge(chat.Config{
			Nick:    cfg.TwitchNick,
			Token:   cfg.TwitchToken,
			Channel: cfg.TwitchChannel,
		}, gen, prompt, l.Say, onMsg)
		go func() { _ = bridge.Run(ctx) }()
		log.Debug("Loaded chat bridge")
	}

	if cfg.ScreenEnabled {
		idle := func() bool {
			return !l.Muted() && time.Since(l.LastVoice()) > cfg.ThinkerIdle
		}
		observer := screen.NewObserver(cfg.ScreenInterval, gen, prompt, l.Say, idle)
		go observer.Run(ctx)
		log.Debug("Loaded screen observer")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("Shutting down")
		cancel()
	}()

	log.Info("Boot up - successful")
	l.Run(ctx)
}

func buildTranscriber(cfg config.Config) stt.Transcriber {
	switch cfg.STTBackend {
	case "native":
		tr, err := stt.NewWhisperNative(cfg.WhisperModel, cfg.Language, cfg.Threads)
		if err != nil {
			log.Error("Failed to init whisper", "err", err)
			os.Exit(1)
		}
		return tr
	default:
		return stt.NewWhisperCLI(cfg.WhisperBin, cfg.WhisperModel, cfg.Language, cfg.Threads)
	}
}

func buildGenerator(cfg config.Config) llm.Generator {
	params := llm.Params{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stop:        llm.NewPromptBuilder(cfg.UserName, cfg.BotName).StopSequences(),
	}
	switch cfg.LLMBackend {
	case "openai":
		gen, err := llm.NewOpenAI(os.Getenv("OPENAI_API_KEY"), cfg.OpenAIModel, cfg.ProxyAddr, params)
		if err != nil {
			log.Error("Failed to init openai generator", "err", err)
			os.Exit(1)
		}
		return gen
	default:
		return llm.NewOllama(cfg.OllamaURL, cfg.OllamaModel, params)
	}
}

func buildSynthesizer(cfg config.Config) tts.Synthesizer {
	switch cfg.TTSBackend {
	case "openai":
		synth, err := tts.NewOpenAISpeech(os.Getenv("OPENAI_API_KEY"), cfg.OpenAIVoice, cfg.ProxyAddr)
		if err != nil {
			log.Error("Failed to init openai speech", "err", err)
			os.Exit(1)
		}
		return synth
	default:
		return tts.NewXTTS(cfg.XTTSURL, cfg.Language, cfg.XTTSSpeaker)
	}
}

// chimedListener plays the listen cue before each capture.
type chimedListener struct {
	rec    *audio.Recorder
	player *audio.Player
	chime  string
}

func (c chimedListener) Capture(ctx context.Context) ([]float32, error) {
	if err := notify.Chime(c.player, c.chime); err != nil {
		log.Debug("Chime failed", "err", err)
	}
	return c.rec.Capture(ctx)
}
