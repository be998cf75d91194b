package config

func SetLogLevel(level string) func(*Config) {
	return func(cfg *Config) {
		cfg.Logging.Level = level
	}
}

func SetJSONLog(enabled bool) func(*Config) {
	return func(cfg *Config) {
		cfg.Logging.JSON = enabled
	}
}

func SetServerURL(url string) func(*Config) {
	return func(cfg *Config) {
		cfg.Server.URL = url
	}
}

func SetSchedule(expr string) func(*Config) {
	return func(cfg *Config) {
		cfg.Collection.Schedule = expr
	}
}

func SetVaultPaths(keyPath, tokenPath string) func(*Config) {
	return func(cfg *Config) {
		cfg.Vault.KeyPath = keyPath
		cfg.Vault.TokenPath = tokenPath
	}
}
