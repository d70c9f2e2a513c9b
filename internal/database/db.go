package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	// Build connection string
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	// Parse connection string
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Create connection pool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Market data
		`CREATE TABLE IF NOT EXISTS candles (
			id SERIAL PRIMARY KEY,
			asset VARCHAR(20) NOT NULL,
			timeframe INTEGER NOT NULL,
			timestamp BIGINT NOT NULL,
			open DECIMAL(20, 8) NOT NULL,
			high DECIMAL(20, 8) NOT NULL,
			low DECIMAL(20, 8) NOT NULL,
			close DECIMAL(20, 8) NOT NULL,
			volume DECIMAL(20, 8) DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(asset, timeframe, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_asset_tf ON candles(asset, timeframe)`,

		// Pattern detections
		`CREATE TABLE IF NOT EXISTS patterns (
			id SERIAL PRIMARY KEY,
			name VARCHAR(50) NOT NULL,
			pattern_type VARCHAR(20) NOT NULL,
			asset VARCHAR(20) NOT NULL,
			timeframe INTEGER NOT NULL,
			timestamp BIGINT NOT NULL,
			signal VARCHAR(10),
			strength DECIMAL(4, 2),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_asset ON patterns(asset)`,

		// Support/resistance levels
		`CREATE TABLE IF NOT EXISTS levels (
			id SERIAL PRIMARY KEY,
			asset VARCHAR(20) NOT NULL,
			timeframe INTEGER NOT NULL,
			level_type VARCHAR(10) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			strength DECIMAL(4, 2) DEFAULT 0.5,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Trades
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			trade_id VARCHAR(64) UNIQUE NOT NULL,
			asset VARCHAR(20) NOT NULL,
			amount DECIMAL(20, 2) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			expiration INTEGER NOT NULL,
			outcome VARCHAR(10),
			profit DECIMAL(20, 2),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades(asset)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at)`,

		// Learned knowledge
		`CREATE TABLE IF NOT EXISTS learned_knowledge (
			id SERIAL PRIMARY KEY,
			source VARCHAR(255) NOT NULL,
			keyword VARCHAR(100),
			category VARCHAR(100) NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			relevance_score DECIMAL(4, 2),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed")
	return nil
}
