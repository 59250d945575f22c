package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types

    "github.com/joho/godotenv" // godotenv loads a local .env file in development
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations.
// Gateway endpoint selection (sandbox vs production) happens here via
// GATEWAY_BASE_URL; the client itself contains no environment logic.
type Config struct {
    Env             string // application environment (e.g. "dev", "prod")
    Port            string // HTTP port to listen on
    DBUser          string // database username
    DBPass          string // database password (optional)
    DBHost          string // database host address
    DBPort          string // database port number
    DBName          string // database name
    JWTSecret       string // secret used to verify session JWTs on the refund path
    AccessTTLMin    int    // access token time‑to‑live in minutes (token minting helper)
    GatewayBaseURL  string // payment gateway base URL (sandbox or production)
    GatewayClientID string // gateway client id for the client-credentials grant
    GatewaySecret   string // gateway client secret (never logged, never returned)
    Currency        string // default currency code for orders and refunds
    BrandName       string // brand shown by the gateway during approval
    ReturnURL       string // where the gateway redirects after approval
    CancelURL       string // where the gateway redirects after abandonment
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file is loaded first when present so local development
// does not need exported variables.  Required variables are enforced by
// must() and missing values cause the program to exit with a fatal log
// message.
func Load() Config {
    _ = godotenv.Load() // best effort; absence of .env is normal in prod
    return Config{
        Env:             must("APP_ENV"),                 // environment (dev/test/prod)
        Port:            must("APP_PORT"),                // port to bind the HTTP server
        DBUser:          must("DB_USER"),                 // database user
        DBPass:          os.Getenv("DB_PASS"),            // database password (empty allowed)
        DBHost:          must("DB_HOST"),                 // database host
        DBPort:          must("DB_PORT"),                 // database port
        DBName:          must("DB_NAME"),                 // database name
        JWTSecret:       must("JWT_SECRET"),                 // secret shared with the identity service
        AccessTTLMin:    intenv("ACCESS_TOKEN_TTL_MIN", 15), // TTL for minted access tokens in minutes
        GatewayBaseURL:  must("GATEWAY_BASE_URL"),        // e.g. https://api-m.sandbox.paypal.com
        GatewayClientID: must("GATEWAY_CLIENT_ID"),       // client-credentials id
        GatewaySecret:   must("GATEWAY_CLIENT_SECRET"),   // client-credentials secret
        Currency:        getenv("GATEWAY_CURRENCY", "JPY"),
        BrandName:       getenv("GATEWAY_BRAND_NAME", "Restaurant Reservation"),
        ReturnURL:       getenv("GATEWAY_RETURN_URL", "https://example.com/payment/return"),
        CancelURL:       getenv("GATEWAY_CANCEL_URL", "https://example.com/payment/cancel"),
    }
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

// intenv returns an optional integer environment variable or the provided
// default when it is unset.  A set but non-numeric value is a fatal
// misconfiguration.
func intenv(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, v)
    }
    return n
}

// getenv returns the value of an optional environment variable or the
// provided default when it is unset or empty.
func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}
