package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/droidpilot/droidpilot/agentloop"
	"github.com/droidpilot/droidpilot/config"
	"github.com/droidpilot/droidpilot/device"
	"github.com/droidpilot/droidpilot/droidtools"
	"github.com/droidpilot/droidpilot/llm"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	configPath := flag.String("config", "", "path to a YAML config file")
	modelName := flag.String("model", "", "model override (e.g. gpt-4o-mini, gemma3:12b)")
	serial := flag.String("serial", "", "device serial override")
	planner := flag.Bool("plan", false, "run an up-front planning step before the loop")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("droidpilot", version)
		return 0
	}

	instruction := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if instruction == "" {
		fmt.Fprintln(os.Stderr, "usage: droidpilot [flags] <instruction>")
		flag.PrintDefaults()
		return 2
	}

	// Load .env if present (non-fatal).
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	if *modelName != "" {
		cfg.Model.Name = *modelName
	}
	if *serial != "" {
		cfg.Device.Serial = *serial
	}
	if *planner {
		cfg.Planner.Enabled = true
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, instruction); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, cfg *config.Config, instruction string) error {
	client, err := buildClient(cfg)
	if err != nil {
		return fmt.Errorf("model client: %w", err)
	}
	defer client.Close()

	slog.Info("droidpilot starting",
		"version", version,
		"model", cfg.Model.Name,
		"serial", cfg.Device.Serial,
	)

	lease := device.NewLease()
	drv, err := device.Open(ctx, device.Config{
		ADBPath:  cfg.Device.ADBPath,
		Serial:   cfg.Device.Serial,
		AgentURL: cfg.Device.AgentURL,
	}, lease)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}

	registry := agentloop.NewRegistry()
	if err := droidtools.Register(registry, drv); err != nil {
		drv.Close()
		return fmt.Errorf("tool registry: %w", err)
	}
	registry.Freeze()

	sessionCfg := agentloop.DefaultSessionConfig()
	sessionCfg.Model = cfg.Model.Name
	sessionCfg.Provider = cfg.Model.Provider
	sessionCfg.Temperature = cfg.Model.Temperature
	sessionCfg.EnablePlanner = cfg.Planner.Enabled
	sessionCfg.Limits = agentloop.Limits{
		MaxIterations: cfg.Task.MaxIterations,
		MaxWallTime:   cfg.Task.MaxWallTime(),
		RetryBudget:   cfg.Task.RetryBudget,
	}
	sessionCfg.Device = deviceContext(ctx, drv)
	sessionCfg.NativeTools = supportsNativeTools(cfg.Model.Name, cfg.Model.Provider)

	// The session takes ownership of the driver and releases it on exit.
	session := agentloop.NewSession(client, registry, drv, &sessionCfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range session.Events() {
			logEvent(ev)
		}
	}()

	result, err := session.Run(ctx, instruction)
	<-done
	if err != nil {
		return err
	}

	printResult(result)
	if result.Status == agentloop.TaskFailed {
		return fmt.Errorf("task failed: %s", result.Reason)
	}
	return nil
}

// buildClient wires every available provider adapter plus the optional
// response cache.
func buildClient(cfg *config.Config) (*llm.Client, error) {
	opts := []llm.ClientOption{
		llm.WithRequestTimeout(cfg.Model.Timeout()),
	}

	if openai, err := llm.NewOpenAIAdapter(llm.OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: cfg.Model.BaseURL,
	}); err == nil {
		opts = append(opts, llm.WithProvider("openai", openai))
	} else if cfg.Model.Provider == "openai" {
		return nil, err
	}

	if ollama, err := llm.NewOllamaAdapter(cfg.Model.BaseURL); err == nil {
		opts = append(opts, llm.WithProvider("ollama", ollama))
	} else if cfg.Model.Provider == "ollama" {
		return nil, err
	}

	if cfg.Model.Provider != "" && cfg.Model.Provider != "openai" && cfg.Model.Provider != "ollama" {
		adapter, err := llm.NewGollmAdapter(cfg.Model.Provider, llm.WithGollmModel(cfg.Model.Name))
		if err != nil {
			return nil, err
		}
		opts = append(opts, llm.WithProvider(cfg.Model.Provider, adapter))
	}

	if cfg.Model.Provider != "" {
		opts = append(opts, llm.WithDefaultProvider(cfg.Model.Provider))
	}

	if cfg.Cache.Enabled {
		cache, err := llm.NewResponseCache(cfg.Cache.Path, cfg.Cache.TTL())
		if err != nil {
			return nil, fmt.Errorf("response cache: %w", err)
		}
		opts = append(opts, llm.WithMiddleware(cache.Middleware()))
	}

	return llm.NewClient(opts...), nil
}

// supportsNativeTools reports whether the resolved provider has a structured
// tool-call channel. Everything else receives the catalog through the prompt.
func supportsNativeTools(model, provider string) bool {
	if provider == "" {
		if info := llm.GetModelInfo(model); info != nil {
			provider = info.Provider
		}
	}
	return provider == "openai"
}

// deviceContext collects device facts for the system prompt. Failures are
// tolerated; the prompt just carries less context.
func deviceContext(ctx context.Context, drv *device.Driver) agentloop.DeviceContext {
	w, h := drv.ScreenSize()
	dc := agentloop.DeviceContext{
		Serial:       drv.ADB().Serial(),
		ScreenWidth:  w,
		ScreenHeight: h,
	}
	infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if model, err := drv.ADB().GetProp(infoCtx, "ro.product.model"); err == nil {
		dc.Model = model
	}
	if release, err := drv.ADB().GetProp(infoCtx, "ro.build.version.release"); err == nil {
		dc.AndroidVersion = release
	}
	if pkg, _, err := drv.CurrentApp(infoCtx); err == nil {
		dc.CurrentApp = pkg
	}
	return dc
}

func logEvent(ev agentloop.SessionEvent) {
	switch ev.Kind {
	case agentloop.EventStateChange:
		slog.Debug("state", "from", ev.Data["from"], "to", ev.Data["to"])
	case agentloop.EventModelCall:
		slog.Debug("model call", "model", ev.Data["model"])
	case agentloop.EventToolCallEnd:
		if ev.Data["status"] == string(agentloop.ResultError) {
			slog.Warn("tool failed",
				"tool", ev.Data["tool"],
				"class", ev.Data["error_class"],
				"error", ev.Data["error"],
			)
		} else {
			slog.Info("tool ok", "tool", ev.Data["tool"])
		}
	case agentloop.EventPlanCreated:
		slog.Info("plan created", "steps", ev.Data["steps"])
	case agentloop.EventLoopDetection, agentloop.EventNoteInjected:
		slog.Warn("note", "note", ev.Data["note"])
	case agentloop.EventWarning:
		slog.Warn("warning", "warning", ev.Data["warning"])
	case agentloop.EventTaskEnd:
		slog.Info("task end", "status", ev.Data["status"], "reason", ev.Data["reason"])
	}
}

func printResult(result *agentloop.TaskResult) {
	fmt.Println()
	if result.Status == agentloop.TaskDone {
		fmt.Println(result.FinalAnswer)
	} else {
		fmt.Println("Task failed:", result.Reason)
	}
	if len(result.Steps) > 0 {
		fmt.Println()
		fmt.Println("Steps:")
		for i, step := range result.Steps {
			line := fmt.Sprintf("  %d. %s [%s]", i+1, step.Tool, step.Status)
			if step.Detail != "" {
				line += " " + step.Detail
			}
			fmt.Println(line)
		}
	}
	fmt.Printf("\n%d iterations, %s, %d tokens\n",
		result.Iterations, result.Elapsed.Round(time.Millisecond), result.Usage.TotalTokens)
}
