package db

import "time"

// Config carries connection settings for the relational store.
// The zero value is not usable; callers populate it from the app config.
type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Type == "" {
		out.Type = "postgres"
	}
	if out.MaxIdleConn <= 0 {
		out.MaxIdleConn = 5
	}
	if out.MaxOpenConn <= 0 {
		out.MaxOpenConn = 25
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	return out
}
