package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/voyago/travelcore/internal/config"
)

// defaultPollInterval controls how often the config file is re-checked.
const defaultPollInterval = 2 * time.Second

// ConfigWatcher polls the config file and keeps a snapshot of the settings
// that may change at runtime. Readers always see a consistent snapshot; a
// rewrite of the file takes effect within one poll interval without a
// restart.
type ConfigWatcher struct {
	configPath   string
	pollInterval time.Duration

	mu    sync.RWMutex
	hash  string
	redis config.RedisConfig
}

// NewConfigWatcher constructs a watcher for configPath and loads the initial
// snapshot.
func NewConfigWatcher(configPath string) *ConfigWatcher {
	w := &ConfigWatcher{
		configPath:   configPath,
		pollInterval: defaultPollInterval,
	}
	w.pollOnce()
	return w
}

// Start launches the polling loop. It returns immediately; the loop stops
// when ctx is canceled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go w.run(ctx)
	log.Infof("config watcher started (poll_interval=%s)", w.pollInterval)
}

func (w *ConfigWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

// Redis returns the current rate limit Redis settings snapshot.
func (w *ConfigWatcher) Redis() config.RedisConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.redis
}

// pollOnce re-reads the config file when its contents changed since the
// last poll. A missing or unreadable file keeps the previous snapshot.
func (w *ConfigWatcher) pollOnce() {
	data, errRead := os.ReadFile(w.configPath)
	if errRead != nil || len(data) == 0 {
		return
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	w.mu.RLock()
	prevHash := w.hash
	w.mu.RUnlock()
	if prevHash != "" && prevHash == hash {
		return
	}

	redis := config.LoadRedisConfig(w.configPath)

	w.mu.Lock()
	changed := w.hash != ""
	w.hash = hash
	w.redis = redis
	w.mu.Unlock()

	if changed {
		log.Infof("config watcher: config changed, reloaded (redis_enabled=%t)", redis.Enabled)
	}
}
