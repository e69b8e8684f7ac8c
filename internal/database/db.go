// Package database opens the MySQL connection pool for the
// reservation ledger.  Times are stored in UTC; parseTime and loc=UTC
// in the DSN keep DATETIME columns and time.Time comparable without
// zone conversions in the storage layer.
package database

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    _ "github.com/go-sql-driver/mysql"
)

// Pool bounds the connection pool.  Hold creation serialises on the
// seance row lock, so a modest pool is enough; zero values fall back
// to defaults sized for one core-service replica.
type Pool struct {
    MaxOpenConns int
    MaxIdleConns int
    ConnLifetime time.Duration
}

// Open connects to MySQL, applies the pool settings and verifies the
// connection with a bounded ping.
func Open(user, pass, host, port, name string, pool Pool) (*sql.DB, error) {
    auth := user
    if pass != "" {
        auth = fmt.Sprintf("%s:%s", user, pass)
    }
    dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
        auth, host, port, name)

    db, err := sql.Open("mysql", dsn)
    if err != nil {
        return nil, err
    }

    if pool.MaxOpenConns <= 0 {
        pool.MaxOpenConns = 25
    }
    if pool.MaxIdleConns <= 0 {
        pool.MaxIdleConns = pool.MaxOpenConns
    }
    if pool.ConnLifetime <= 0 {
        pool.ConnLifetime = 30 * time.Minute
    }
    db.SetMaxOpenConns(pool.MaxOpenConns)
    db.SetMaxIdleConns(pool.MaxIdleConns)
    db.SetConnMaxLifetime(pool.ConnLifetime)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        return nil, err
    }
    return db, nil
}
