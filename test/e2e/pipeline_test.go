// Package e2e drives a multi-threaded router under real concurrent
// load: several goroutines emit packets into a fan-out pipeline while
// two RouterThreads independently pull and account for them, the same
// shape cmd/clickcore's "run" command produces against a live
// configuration.
package e2e

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/clickcore/pkg/config"
	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/elements"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/router"
	"github.com/cuemby/clickcore/pkg/scheduler"
	"github.com/stretchr/testify/require"
)

func TestFanOutPipelineUnderConcurrentLoad(t *testing.T) {
	src := `
src :: Source();
t :: Tee(2);
q0 :: Queue(2048);
q1 :: Queue(2048);
d0 :: Discard();
d1 :: Discard();

src -> t;
t [0] -> [0] q0;
t [1] -> [0] q1;
q0 -> d0;
q1 -> d1;
`
	r := router.New()
	eh := errh.NewSilentHandler()
	require.NoError(t, config.ParseTextual(src, "fanout.click", r, config.Default, eh))
	require.Equal(t, 0, eh.Count(errh.LevelError))
	require.NoError(t, r.Build(errh.NewSilentHandler()))

	sIdx, _ := r.FindElement("src", "")
	source := r.Element(sIdx).(*elements.Source)
	d0Idx, _ := r.FindElement("d0", "")
	d1Idx, _ := r.FindElement("d1", "")

	master := scheduler.NewMaster(2, true)
	home := 0
	for i := 0; i < r.NumElements(); i++ {
		idx := element.EIndex(i)
		if runnable, ok := r.Element(idx).(element.Runnable); ok {
			master.Schedule(scheduler.NewTask(runnable, int32(home)))
			home = (home + 1) % 2
		}
	}
	master.Start()
	defer master.Stop()

	const emittersN, perEmitter = 8, 50
	const total = emittersN * perEmitter

	var wg sync.WaitGroup
	for i := 0; i < emittersN; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				source.Emit([]byte("payload"))
			}
		}()
	}
	wg.Wait()

	want := strconv.Itoa(total)
	require.Eventually(t, func() bool {
		c0, err0 := r.Handlers().CallRead(d0Idx, "count")
		c1, err1 := r.Handlers().CallRead(d1Idx, "count")
		return err0 == nil && err1 == nil && c0 == want && c1 == want
	}, 5*time.Second, time.Millisecond)
}
