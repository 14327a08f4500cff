package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			BusBuffer: 100,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Platforms: PlatformsConfig{
			Slack: SlackConfig{
				Enabled:     false,
				WebhookPath: "/webhook/slack",
			},
			WhatsApp: WhatsAppConfig{
				Enabled:     false,
				WebhookPath: "/webhook/whatsapp",
			},
			Telegram: TelegramConfig{
				Enabled:     false,
				WebhookPath: "/webhook/telegram",
			},
			Discord: DiscordConfig{
				Enabled: false,
			},
			Webchat: WebchatConfig{
				Enabled: false,
				Path:    "/ws",
			},
		},
		Store: StoreConfig{
			Enabled:  true,
			DBPath:   "~/.chatbridge/identity.db",
			TTLHours: 24,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
