package tenant_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cripta/envelopesvc/internal/envelope/domain"
	"github.com/cripta/envelopesvc/internal/tenant"
)

// TestMain verifies no worker-group goroutine outlives its request.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRouterLookup(t *testing.T) {
	global := &tenant.State{}
	public := &tenant.State{}
	router := tenant.NewRouter(global)
	router.Register("public", public)

	state, err := router.Lookup("public")
	require.NoError(t, err)
	assert.Same(t, public, state)

	_, err = router.Lookup("")
	assert.ErrorIs(t, err, domain.ErrTenantIDNotFound)

	_, err = router.Lookup("no-such-tenant")
	assert.ErrorIs(t, err, domain.ErrInvalidTenantID)
}

func TestRouterStateFor(t *testing.T) {
	global := &tenant.State{}
	public := &tenant.State{}
	router := tenant.NewRouter(global)
	router.Register("public", public)

	assert.Same(t, global, router.StateFor(public, domain.KindUser))
	assert.Same(t, global, router.StateFor(public, domain.KindUserAuth))
	assert.Same(t, public, router.StateFor(public, domain.KindMerchant))
	assert.Same(t, public, router.StateFor(public, domain.KindEntity))
	assert.Same(t, global, router.Global())
}

func TestNewWorkerGroupBoundsConcurrency(t *testing.T) {
	state := &tenant.State{WorkerPool: 2}
	g, _ := state.NewWorkerGroup(context.Background())

	var running, peak atomic.Int32
	gate := make(chan struct{})
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-gate
			running.Add(-1)
			return nil
		})
		if i == 1 {
			// Two tasks are in flight; further Go calls block on the limit,
			// so release the gate before submitting the rest.
			close(gate)
		}
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, peak.Load(), int32(2), "worker pool limit must bound concurrency")
}

func TestNewWorkerGroupUnboundedWhenZero(t *testing.T) {
	state := &tenant.State{}
	g, gctx := state.NewWorkerGroup(context.Background())

	for i := 0; i < 4; i++ {
		g.Go(func() error { return gctx.Err() })
	}
	assert.NoError(t, g.Wait())
}
