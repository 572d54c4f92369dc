package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/findaly/findaly/internal/errors"
)

const (
	sessionStoreVar  = "SESSION_STORE"
	databasePathVar  = "DATABASE_PATH"
	redisAddrVar     = "REDIS_ADDR"
	redisPasswordVar = "REDIS_PASSWORD"
	redisDBVar       = "REDIS_DB"
	redisPrefixVar   = "REDIS_PREFIX"
	sweepIntervalVar = "SESSION_SWEEP_INTERVAL"
)

// Session store kinds.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type StoreConfig interface {
	GetSessionStore() string
	GetDatabasePath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetSweepInterval() time.Duration
}

type Store struct {
	Kind          string        `yaml:"session_store"`
	DatabasePath  string        `yaml:"database_path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

var _ StoreConfig = Store{}

func defaultStore() Store {
	return Store{
		Kind:          StoreSQLite,
		DatabasePath:  "./data/findaly.db",
		RedisAddr:     "localhost:6379",
		RedisPrefix:   "findaly:",
		SweepInterval: 10 * time.Minute,
	}
}

func (s *Store) applyEnv(lookup func(string) (string, bool)) error {
	setString(lookup, sessionStoreVar, &s.Kind)
	setString(lookup, databasePathVar, &s.DatabasePath)
	setString(lookup, redisAddrVar, &s.RedisAddr)
	setString(lookup, redisPasswordVar, &s.RedisPassword)
	setString(lookup, redisPrefixVar, &s.RedisPrefix)
	if v, ok := lookup(redisDBVar); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("[config Load] %s: %w: %w", redisDBVar, apperrors.ErrInvalidConfig, err)
		}
		s.RedisDB = db
	}
	if err := setDuration(lookup, sweepIntervalVar, &s.SweepInterval); err != nil {
		return err
	}

	switch s.GetSessionStore() {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("[config Load] unknown session store %q: %w", s.Kind, apperrors.ErrInvalidConfig)
	}
	return nil
}

func (s Store) GetSessionStore() string {
	return strings.ToLower(s.Kind)
}

func (s Store) GetDatabasePath() string {
	return s.DatabasePath
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPrefix() string {
	return s.RedisPrefix
}

func (s Store) GetSweepInterval() time.Duration {
	return s.SweepInterval
}
