package service

import (
	"context"
	"sync"
	"time"

	"contentops/internal/models"
	"contentops/internal/sheets"

	"github.com/rs/zerolog"
)

// AccountDirectory caches the Facebook_Config and Youtube_Config lookup
// tables. Lookups reload when the cache is older than ttl; a failed reload
// keeps serving the previous snapshot.
type AccountDirectory struct {
	store  sheets.Store
	ttl    time.Duration
	logger *zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	pages    map[string]models.FacebookAccount
	channels map[string]models.YoutubeAccount
	loadedAt time.Time
}

func NewAccountDirectory(store sheets.Store, ttl time.Duration, logger *zerolog.Logger) *AccountDirectory {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AccountDirectory{
		store:    store,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		pages:    make(map[string]models.FacebookAccount),
		channels: make(map[string]models.YoutubeAccount),
	}
}

// Refresh reloads both config sheets. Either both load or neither replaces
// the current snapshot.
func (d *AccountDirectory) Refresh(ctx context.Context) error {
	fb, err := sheets.ReadAll[models.FacebookAccount](ctx, d.store, models.SheetFacebookConfig)
	if err != nil {
		return err
	}
	yt, err := sheets.ReadAll[models.YoutubeAccount](ctx, d.store, models.SheetYoutubeConfig)
	if err != nil {
		return err
	}

	pages := make(map[string]models.FacebookAccount, len(fb))
	for _, a := range fb {
		if _, dup := pages[a.PageID]; !dup {
			pages[a.PageID] = a
		}
	}
	channels := make(map[string]models.YoutubeAccount, len(yt))
	for _, a := range yt {
		if _, dup := channels[a.ChannelID]; !dup {
			channels[a.ChannelID] = a
		}
	}

	d.mu.Lock()
	d.pages = pages
	d.channels = channels
	d.loadedAt = d.now()
	d.mu.Unlock()

	d.logger.Debug().Int("facebook", len(pages)).Int("youtube", len(channels)).Msg("Account configs loaded")
	return nil
}

func (d *AccountDirectory) stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.loadedAt.IsZero() {
		return true
	}
	return d.ttl > 0 && d.now().Sub(d.loadedAt) > d.ttl
}

func (d *AccountDirectory) ensureFresh(ctx context.Context) {
	if !d.stale() {
		return
	}
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Account config refresh failed, using cached values")
	}
}

// Page returns the config row for pageID; ok is false when none exists.
func (d *AccountDirectory) Page(ctx context.Context, pageID string) (models.FacebookAccount, bool) {
	d.ensureFresh(ctx)
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.pages[pageID]
	return a, ok
}

func (d *AccountDirectory) Channel(ctx context.Context, channelID string) (models.YoutubeAccount, bool) {
	d.ensureFresh(ctx)
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.channels[channelID]
	return a, ok
}
