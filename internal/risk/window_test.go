package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/core"
	"main/pkg/exception"
)

func TestFloodControlWindowEviction(t *testing.T) {
	base := time.Unix(1700000000, 0)
	w := newFloodControlWindow(time.Second, 3)

	w.append(base)
	w.append(base.Add(200 * time.Millisecond))
	w.append(base.Add(400 * time.Millisecond))
	assert.True(t, w.full())

	// Entries older than now-period are evicted before the check.
	w.evict(base.Add(1100 * time.Millisecond))
	assert.Equal(t, 2, w.len())
	assert.False(t, w.full())

	w.evict(base.Add(10 * time.Second))
	assert.Equal(t, 0, w.len())
}

func TestFloodControlRejectsBurst(t *testing.T) {
	clock := core.NewSimClock(time.Unix(1700000000, 0))
	cfg := testScopeConfig()
	cfg.FloodControl = FloodControlConfig{PeriodMs: 1000, MaxNumber: 3}

	control, err := NewControl(testContext(clock), cfg, ProfileRelax)
	require.NoError(t, err)
	symCtx, err := control.CreateSymbolContext(btcUsdt)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := control.CheckNewBuyOrder(nil, symCtx, d("0.1"), d("100"))
		require.NoError(t, err)
		clock.Advance(10 * time.Millisecond)
	}

	_, err = control.CheckNewBuyOrder(nil, symCtx, d("0.1"), d("100"))
	require.ErrorIs(t, err, exception.ErrNumberOfOrdersLimit)

	// Once the window slides past the burst the scope accepts again.
	clock.Advance(time.Second)
	_, err = control.CheckNewBuyOrder(nil, symCtx, d("0.1"), d("100"))
	assert.NoError(t, err)
}

func TestFloodControlIsPerScope(t *testing.T) {
	clock := core.NewSimClock(time.Unix(1700000000, 0))
	globalCfg := testScopeConfig()
	globalCfg.FloodControl = FloodControlConfig{PeriodMs: 1000, MaxNumber: 100}

	control, err := NewControl(testContext(clock), globalCfg, ProfileRelax)
	require.NoError(t, err)
	symCtx, err := control.CreateSymbolContext(btcUsdt)
	require.NoError(t, err)

	localCfg := testScopeConfig()
	localCfg.FloodControl = FloodControlConfig{PeriodMs: 1000, MaxNumber: 2}
	local, err := control.CreateScope("tight", localCfg)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := control.CheckNewBuyOrder(local, symCtx, d("0.1"), d("100"))
		require.NoError(t, err)
	}
	_, err = control.CheckNewBuyOrder(local, symCtx, d("0.1"), d("100"))
	require.ErrorIs(t, err, exception.ErrNumberOfOrdersLimit)

	// The global scope is far from its own limit and still accepts.
	_, err = control.CheckNewBuyOrder(nil, symCtx, d("0.1"), d("100"))
	assert.NoError(t, err)
}

func TestSpinLockProfile(t *testing.T) {
	profile, err := ParseProfile("hft")
	require.NoError(t, err)
	assert.Equal(t, ProfileHFT, profile)

	control, err := NewControl(testContext(nil), testScopeConfig(), profile)
	require.NoError(t, err)
	symCtx, err := control.CreateSymbolContext(btcUsdt)
	require.NoError(t, err)

	_, err = control.CheckNewBuyOrder(nil, symCtx, d("1"), d("100"))
	assert.NoError(t, err)

	_, err = ParseProfile("bogus")
	assert.Error(t, err)
}
