package config

func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Enabled:            true,
			PollTimeoutSeconds: 30,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		RapidAPI: RapidAPIConfig{
			Host: "instagram-scraper-api3.p.rapidapi.com",
			Path: "/reel_download",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Audit: AuditConfig{
			Enabled: false,
			DBPath:  "~/.reelbot/audit.db",
		},
	}
}
