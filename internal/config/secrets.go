package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Accounts carry per-account API credentials; deep-copy the slice so
	// redaction cannot leak back into the original.
	if cfg.Accounts != nil {
		out.Accounts = make([]AccountConfig, len(cfg.Accounts))
		copy(out.Accounts, cfg.Accounts)
		for i := range out.Accounts {
			redact(&out.Accounts[i].APIKey)
			redact(&out.Accounts[i].APISecret)
		}
	}

	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Webhook = cfg.Webhook
	redact(&out.Webhook.Secret)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy the remaining slices so callers cannot mutate the original
	// through the redacted copy.
	if cfg.Symbols != nil {
		out.Symbols = make([]SymbolConfig, len(cfg.Symbols))
		copy(out.Symbols, cfg.Symbols)
		for i, s := range cfg.Symbols {
			if s.GridLevels != nil {
				out.Symbols[i].GridLevels = make([]float64, len(s.GridLevels))
				copy(out.Symbols[i].GridLevels, s.GridLevels)
			}
		}
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
