// FILE: internal/cooldown/cooldown_test.go
package cooldown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/store"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (time.Time, error) { return time.Time{}, nil }
func (failingStore) Set(context.Context, string, time.Time) error   { return errors.New("disk full") }
func (failingStore) LoadAll(context.Context) (map[string]time.Time, error) {
	return nil, nil
}

func TestLedger_RecordThenAllowRespectsCooldown(t *testing.T) {
	l := NewLedger(store.NewMemCooldownStore())
	key := Key("rule1", "BTCUSD", "1m")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow(key, now, time.Minute), "no prior fire always allows")
	assert.NoError(t, l.Record(context.Background(), key, now))
	assert.False(t, l.Allow(key, now.Add(30*time.Second), time.Minute))
	assert.True(t, l.Allow(key, now.Add(time.Minute), time.Minute), "cooldown boundary is inclusive")
}

func TestLedger_Hydrate(t *testing.T) {
	backing := store.NewMemCooldownStore()
	key := Key("rule1", "ETHUSD", "5m")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, backing.Set(context.Background(), key, now))

	l := NewLedger(backing)
	assert.True(t, l.Get(key).IsZero(), "cache is empty before Hydrate")
	assert.NoError(t, l.Hydrate(context.Background()))
	assert.Equal(t, now, l.Get(key))
}

func TestLedger_RecordFailureSuppressesAndNeverUpdatesCache(t *testing.T) {
	l := NewLedger(failingStore{})
	key := Key("rule1", "BTCUSD", "1m")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := l.Record(context.Background(), key, now)
	assert.Error(t, err)
	var persistErr *model.CooldownPersistError
	assert.ErrorAs(t, err, &persistErr)
	assert.True(t, l.Get(key).IsZero(), "a failed persist must not update the read cache")
	assert.Equal(t, int64(1), l.SuppressCount())
}
