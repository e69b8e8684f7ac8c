package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations.
type Config struct {
    Env               string // application environment (e.g. "dev", "prod")
    Port              string // HTTP port to listen on
    DBUser            string // database username
    DBPass            string // database password (optional)
    DBHost            string // database host address
    DBPort            string // database port number
    DBName            string // database name
    DBMaxOpenConns    int    // connection pool ceiling
    DBMaxIdleConns    int    // idle connections kept around
    DBConnLifetimeMin int    // minutes before a pooled connection is recycled
    JWTSecret         string // secret the auth-service signs access tokens with
    HoldTTLMin        int    // minutes before an unpaid hold expires
    SweepIntervalSec  int    // seconds between expiry sweeps
    PaymentServiceURL string // base URL of the payment-service API
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:               must("APP_ENV"),
        Port:              must("APP_PORT"),
        DBUser:            must("DB_USER"),
        DBPass:            os.Getenv("DB_PASS"), // empty allowed
        DBHost:            must("DB_HOST"),
        DBPort:            must("DB_PORT"),
        DBName:            must("DB_NAME"),
        DBMaxOpenConns:    intOr("DB_MAX_OPEN_CONNS", 25),
        DBMaxIdleConns:    intOr("DB_MAX_IDLE_CONNS", 25),
        DBConnLifetimeMin: intOr("DB_CONN_LIFETIME_MIN", 30),
        JWTSecret:         must("JWT_SECRET"),
        HoldTTLMin:        intOr("HOLD_TTL_MIN", 15),
        SweepIntervalSec:  intOr("SWEEP_INTERVAL_SEC", 60),
        PaymentServiceURL: must("PAYMENT_SERVICE_URL"),
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

// intOr retrieves an integer environment variable, falling back to a
// default when unset.  A malformed value is fatal.
func intOr(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
