package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"klinechart/config"
	"klinechart/store"
	"klinechart/utils/log"
)

// openStore : 설정된 저장소를 열고, 실패하면 메모리 저장소로 계속
func openStore(cfg *config.Config) store.Store {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Warnf("[PREFS] create %s failed, using memory store: %v", dir, err)
				return store.NewMemoryStore()
			}
		}
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			log.Warnf("[PREFS] init sqlite store failed, using memory store: %v", err)
			return store.NewMemoryStore()
		}
		return s
	case config.StoreRedis:
		s := store.NewRedisStore(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			log.Warnf("[PREFS] redis %s unreachable, using memory store: %v", cfg.Store.Redis.Addr, err)
			return store.NewMemoryStore()
		}
		log.Infof("[PREFS] redis store connected: %s", cfg.Store.Redis.Addr)
		return s
	default:
		return store.NewMemoryStore()
	}
}
