package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/queuewatch/queuewatch/internal/alerting/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	instanceKeyPrefix = "alert:instance:"
	stateIndexPrefix  = "alert:state:"
	mirrorTimeout     = 2 * time.Second
	instanceTTL       = 24 * time.Hour
)

// RedisMirror keeps a best-effort copy of the alert registry in Redis so
// other processes can inspect live alert state. Failures are logged and never
// affect the registry.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror wraps a Redis client. A nil client yields a mirror whose
// Apply is a no-op.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

// Apply writes upserted instances as JSON under alert:instance:<key>, keeps
// per-state index sets current, and deletes removed instances.
func (m *RedisMirror) Apply(upserts []model.AlertInstance, removes []model.AlertInstance) {
	if m == nil || m.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	pipe := m.client.Pipeline()
	for _, inst := range upserts {
		data, err := json.Marshal(inst)
		if err != nil {
			log.Error().Err(err).Str("alert", inst.Name).Msg("marshal alert instance for cache")
			continue
		}
		key := inst.Key()
		pipe.Set(ctx, instanceKeyPrefix+key, data, instanceTTL)
		for _, state := range []model.AlertState{model.StatePending, model.StateFiring, model.StateResolved} {
			if state == inst.State {
				pipe.SAdd(ctx, stateIndexPrefix+state.String(), key)
			} else {
				pipe.SRem(ctx, stateIndexPrefix+state.String(), key)
			}
		}
	}
	for _, inst := range removes {
		key := inst.Key()
		pipe.Del(ctx, instanceKeyPrefix+key)
		pipe.SRem(ctx, stateIndexPrefix+inst.State.String(), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("alert cache mirror update failed")
	}
}
