package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strings"  // strings normalizes enum-like values
    "time"     // time converts TTL settings into durations
)

// Storage backends for the user store. The memory store keeps users for
// the lifetime of the process and needs no DB_* variables.
const (
    StorageMySQL  = "mysql"
    StorageMemory = "memory"
)

// DefaultBcryptCost is the bcrypt work factor used when BCRYPT_COST is unset.
const DefaultBcryptCost = 12

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must(); the rest
// fall back to defaults.
type Config struct {
    Env          string        // application environment (e.g. "dev", "prod")
    Storage      string        // mysql | memory
    Port         string        // HTTP port to listen on
    DBUser       string        // database username
    DBPass       string        // database password (optional)
    DBHost       string        // database host address
    DBPort       string        // database port number
    DBName       string        // database name
    JWTSecret    string        // secret used to sign session tokens
    TokenTTL     time.Duration // session token lifetime; also the cookie max age
    BcryptCost   int           // bcrypt cost for password hashing
    CookieSecure bool          // sets the Secure attribute on the session cookie
    CookieDomain string        // optional Domain attribute on the session cookie
    LogLevel     string        // debug | info | warn | error
    LogFormat    string        // json | text
    QueueEnabled bool          // publish and consume user.registered events
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required values cause the program to exit with a fatal
// log message.
func Load() Config {
    env := must("APP_ENV")
    cfg := Config{
        Env:          env,                                                     // environment (dev/test/prod)
        Storage:      strings.ToLower(envStr("STORAGE", StorageMySQL)),        // user store backend
        Port:         must("APP_PORT"),                                        // port to bind the HTTP server
        JWTSecret:    must("JWT_SECRET"),                                      // secret used for signing tokens
        TokenTTL:     time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 24*60)) * time.Minute,
        BcryptCost:   envInt("BCRYPT_COST", DefaultBcryptCost),                // bcrypt cost factor
        CookieSecure: envBool("COOKIE_SECURE", IsProduction(env)),             // https-only cookie in prod
        CookieDomain: os.Getenv("COOKIE_DOMAIN"),                              // host-only cookie when empty
        LogLevel:     strings.ToLower(envStr("LOG_LEVEL", "info")),            // minimum log level
        LogFormat:    strings.ToLower(envStr("LOG_FORMAT", defaultFormat(env))), // log encoding
        QueueEnabled: envBool("QUEUE_ENABLED", false),                         // user.registered events
    }
    if cfg.Storage == StorageMemory {
        return cfg
    }
    cfg.Storage = StorageMySQL
    cfg.DBUser = must("DB_USER")      // database user
    cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
    cfg.DBHost = must("DB_HOST")      // database host
    cfg.DBPort = must("DB_PORT")      // database port
    cfg.DBName = must("DB_NAME")      // database name
    return cfg
}

// IsProduction reports whether env names a production deployment.
func IsProduction(env string) bool {
    switch strings.ToLower(env) {
    case "prod", "production":
        return true
    }
    return false
}

func defaultFormat(env string) string {
    if IsProduction(env) {
        return "json"
    }
    return "text"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
