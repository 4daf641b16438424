package policysync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultSyncInterval   = 30 * time.Minute
	defaultRequestTimeout = 15 * time.Second
)

// Syncer keeps the rate limit policy table synced with an operator-hosted
// policy bundle.
type Syncer struct {
	db       *gorm.DB
	url      string
	interval time.Duration
	client   *http.Client
}

// NewSyncer constructs a policy bundle syncer. A non-positive interval
// falls back to the default.
func NewSyncer(db *gorm.DB, url string, interval time.Duration) *Syncer {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Syncer{
		db:       db,
		url:      strings.TrimSpace(url),
		interval: interval,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Start runs the sync loop in the background.
func (s *Syncer) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("policy syncer started (url=%s interval=%s)", s.url, s.interval)
}

func (s *Syncer) run(ctx context.Context) {
	if err := s.SyncOnce(ctx); err != nil {
		log.WithError(err).Warn("policy syncer: initial sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				log.WithError(err).Warn("policy syncer: sync failed")
			}
		}
	}
}

// SyncOnce fetches and persists the current policy bundle.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("policy syncer: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.url == "" {
		return fmt.Errorf("policy syncer: empty url")
	}
	client := s.client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	requestCtx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("policy syncer: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("policy syncer: request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("policy syncer: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("policy syncer: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("policy syncer: read response: %w", err)
	}

	policies, err := ParsePolicyBundle(body)
	if err != nil {
		return err
	}
	if len(policies) == 0 {
		return fmt.Errorf("policy syncer: empty bundle")
	}

	if err := StorePolicies(ctx, s.db, policies); err != nil {
		return err
	}
	log.Infof("policy syncer: synced %d policies", len(policies))
	return nil
}
