/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-cbrcache/config"
	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/service"
)

const cfgCheckpointKeyPrefix = "checkpoint"

const (
	cfgKeyCheckpointEnabled  = "enabled"
	cfgKeyCheckpointInterval = "interval"
)

// DefaultCheckpointInterval is the period of saving the access order when the configuration does not set one.
const DefaultCheckpointInterval = time.Minute

// CheckpointConfig is the "checkpoint" section of the service configuration.
// It controls periodic saving of the access order, so a crash loses at most one interval of order updates.
type CheckpointConfig struct {
	Enabled  bool
	Interval time.Duration
}

var _ config.Config = (*CheckpointConfig)(nil)
var _ config.KeyPrefixProvider = (*CheckpointConfig)(nil)

// KeyPrefix implements config.KeyPrefixProvider.
func (c *CheckpointConfig) KeyPrefix() string {
	return cfgCheckpointKeyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *CheckpointConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyCheckpointEnabled, false)
	dp.SetDefault(cfgKeyCheckpointInterval, DefaultCheckpointInterval)
}

// Set implements config.Config.
func (c *CheckpointConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyCheckpointEnabled); err != nil {
		return err
	}
	if c.Interval, err = dp.GetDuration(cfgKeyCheckpointInterval); err != nil {
		return err
	}
	if c.Enabled && c.Interval <= 0 {
		return dp.WrapKeyErr(cfgKeyCheckpointInterval, fmt.Errorf("should be > 0"))
	}
	return nil
}

// NewCheckpointWorker returns a worker that saves the access order of the cache every interval.
// A failed checkpoint is logged and retried on the next tick. The worker stops once the cache is closed.
func NewCheckpointWorker(cache *Cache, interval time.Duration, logger log.FieldLogger) *service.PeriodicWorker {
	checkpoint := service.WorkerFunc(func(ctx context.Context) error {
		if err := cache.Checkpoint(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return service.ErrPeriodicWorkerStop
			}
			return fmt.Errorf("checkpoint cache order: %w", err)
		}
		logger.Debug("cache order saved", log.Int("keys", cache.Len()))
		return nil
	})
	return service.NewPeriodicWorkerWithOpts(checkpoint, interval, logger, service.PeriodicWorkerOpts{
		Name:         "cache_checkpoint",
		InitialDelay: interval,
	})
}
