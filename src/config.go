package src

import "os"

// Config holds the service configuration, read from the environment.
// DatabaseURL and the Supabase pair are optional; when absent the server
// runs generation-only.
type Config struct {
	ListenAddr         string
	AnthropicAPIKey    string
	DatabaseURL        string
	SupabaseURL        string
	SupabaseServiceKey string
}

func LoadConfig() Config {
	return Config{
		ListenAddr:         envOr("DEVOPUS_ADDR", ":8000"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
	}
}

// StorageConfigured reports whether asset uploads can be served.
func (c Config) StorageConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}
