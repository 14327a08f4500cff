package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatbridge/internal/adapter"
	"chatbridge/internal/bus"
	"chatbridge/internal/config"
	"chatbridge/internal/domain"
	"chatbridge/internal/gateway"
	"chatbridge/internal/store"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "chatbridge",
		Short: "ChatBridge: multi-platform chat gateway",
		Long:  "ChatBridge bridges Slack, WhatsApp, Telegram, Discord, and webchat behind one canonical message model.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.chatbridge/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the webhook gateway",
		Long:  "Serves the webhook endpoints for every enabled platform. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogLevel(cfg.General.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(cfg.General.BusBuffer, logger)
	defer messageBus.Close()
	events := bus.NewEventBus(logger)

	var idStore *store.IdentityStore
	if cfg.Store.Enabled {
		idStore, err = store.New(cfg.Store.DBPath, time.Duration(cfg.Store.TTLHours)*time.Hour, logger)
		if err != nil {
			return fmt.Errorf("identity store: %w", err)
		}
		defer idStore.Close()
	}

	var senders []domain.Adapter
	var slackDir domain.Directory

	if cfg.Platforms.Slack.Enabled {
		slackAdapter, err := adapter.NewSlack(cfg.Platforms.Slack.Platform(), logger)
		if err != nil {
			return fmt.Errorf("slack adapter: %w", err)
		}
		senders = append(senders, slackAdapter)
		slackDir = slackAdapter
		if idStore != nil {
			slackDir = store.NewCachedDirectory(slackAdapter, domain.PlatformSlack, idStore)
		}
	}

	if cfg.Platforms.WhatsApp.Enabled {
		wa, err := adapter.NewWhatsApp(cfg.Platforms.WhatsApp.Platform(), logger)
		if err != nil {
			return fmt.Errorf("whatsapp adapter: %w", err)
		}
		senders = append(senders, wa)
	}

	if cfg.Platforms.Telegram.Enabled {
		tg, err := adapter.NewTelegram(cfg.Platforms.Telegram.Platform(), logger)
		if err != nil {
			// Telegram validates the token against the API at startup.
			logger.Error("telegram adapter unavailable", "err", err)
		} else {
			senders = append(senders, tg)
		}
	}

	if cfg.Platforms.Discord.Enabled {
		dsc, err := adapter.NewDiscord(cfg.Platforms.Discord.Platform(), logger)
		if err != nil {
			return fmt.Errorf("discord adapter: %w", err)
		}
		// Discord delivers messages over its own gateway socket, not
		// webhooks, so it feeds the bus directly.
		dsc.OnMessage(func(msg domain.Message) { messageBus.Publish(msg) })
		if err := dsc.Open(); err != nil {
			logger.Error("discord connection failed", "err", err)
		} else {
			defer dsc.Close()
			senders = append(senders, dsc)
		}
	}

	srv, err := gateway.NewServer(gateway.Options{
		Config:  cfg,
		Bus:     messageBus,
		Events:  events,
		Logger:  logger,
		Version: version,
		Senders: senders,
	})
	if err != nil {
		return err
	}

	go consumeInbound(ctx, messageBus, slackDir)

	return srv.Start(ctx)
}

// consumeInbound drains normalized messages off the bus and logs them.
// Downstream message handling (agent, ticketing, routing rules) subscribes
// here in a real deployment; the gateway itself only logs, resolving Slack
// sender names through the identity cache.
func consumeInbound(ctx context.Context, messageBus *bus.InMemoryBus, slackDir domain.Directory) {
	inbound := messageBus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			attrs := []any{
				"platform", msg.Platform,
				"conversation", msg.ConversationID,
				"type", msg.Type,
			}
			if slackDir != nil && msg.Platform == domain.PlatformSlack && msg.UserID != "" {
				lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if u, err := slackDir.GetUser(lookupCtx, msg.UserID); err == nil {
					attrs = append(attrs, "from", u.Name)
				}
				cancel()
			}
			logger.Info("message received", attrs...)
		}
	}
}

func sendCmd() *cobra.Command {
	var (
		platformName string
		to           string
		text         string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a text message through a platform adapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := buildAdapter(cfg, domain.Platform(platformName))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			id, err := a.Send(ctx, domain.Message{
				ID:             uuid.NewString(),
				Platform:       a.Platform(),
				Type:           domain.MessageText,
				Role:           domain.RoleAssistant,
				UserID:         "chatbridge",
				ConversationID: to,
				Content:        text,
				Timestamp:      time.Now(),
			})
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVar(&platformName, "platform", "slack", "target platform (slack, whatsapp, telegram, discord)")
	cmd.Flags().StringVar(&to, "to", "", "conversation ID (channel, chat, or phone number)")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("text")
	return cmd
}

// buildAdapter constructs the sending adapter for one platform.
func buildAdapter(cfg *config.Config, platform domain.Platform) (domain.Adapter, error) {
	switch platform {
	case domain.PlatformSlack:
		return adapter.NewSlack(cfg.Platforms.Slack.Platform(), logger)
	case domain.PlatformWhatsApp:
		return adapter.NewWhatsApp(cfg.Platforms.WhatsApp.Platform(), logger)
	case domain.PlatformTelegram:
		return adapter.NewTelegram(cfg.Platforms.Telegram.Platform(), logger)
	case domain.PlatformDiscord:
		d, err := adapter.NewDiscord(cfg.Platforms.Discord.Platform(), logger)
		if err != nil {
			return nil, err
		}
		if err := d.Open(); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. platforms.slack.enabled)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. platforms.slack.enabled true)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func applyLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
