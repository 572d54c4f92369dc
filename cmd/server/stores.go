package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/internal/config"
	"github.com/findaly/findaly/internal/database"
	"github.com/findaly/findaly/sessions"
	"github.com/findaly/findaly/sessions/redisstore"
	"github.com/findaly/findaly/users"
	fakeuserrepo "github.com/findaly/findaly/users/repofake"
)

type stores struct {
	users    users.Repo
	sessions sessions.Repo
	closers  []io.Closer
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openStores picks the repositories named by SESSION_STORE. Accounts live in
// SQLite unless everything is kept in memory.
func openStores(ctx context.Context, c config.StoreConfig) (*stores, error) {
	st := &stores{}

	if c.GetSessionStore() == config.StoreMemory {
		log.Warn().Msg("using in-memory stores, accounts and sessions are lost on restart")
		st.users = fakeuserrepo.NewFakeUserRepo()
		st.sessions = sessions.NewInMemoryRepo()
		return st, nil
	}

	db, err := database.NewDB(database.Config{DatabasePath: c.GetDatabasePath()})
	if err != nil {
		return nil, fmt.Errorf("[openStores] %w", err)
	}
	st.closers = append(st.closers, db)
	st.users = database.NewUserRepository(db.Connection())
	log.Info().Str("path", c.GetDatabasePath()).Msg("SQLite database ready")

	switch c.GetSessionStore() {
	case config.StoreRedis:
		rs, err := redisstore.New(ctx, redisstore.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
			Prefix:   c.GetRedisPrefix(),
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("[openStores] %w", err)
		}
		st.closers = append(st.closers, rs)
		st.sessions = rs
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Redis session store ready")
	default:
		st.sessions = database.NewSessionRepository(db.Connection())
	}
	return st, nil
}
