package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/cuemby/clickcore/pkg/events"
	"github.com/cuemby/clickcore/pkg/log"
	"github.com/cuemby/clickcore/pkg/metrics"
	"github.com/cuemby/clickcore/pkg/scheduler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build a router from a configuration and drive it standalone",
	Long: `run reads a textual, YAML, or archive configuration, builds the
element graph, schedules every Runnable element's Task on a Master of
RouterThreads, and blocks until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Path to the router configuration (required)")
	runCmd.Flags().Int("threads", runtime.NumCPU(), "Number of RouterThreads")
	runCmd.Flags().Bool("greedy", false, "Disable the OS-yield step on every RouterThread")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics and /healthz on")
	runCmd.Flags().Bool("enable-metrics-server", true, "Serve Prometheus metrics and health endpoints")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	threads, _ := cmd.Flags().GetInt("threads")
	greedy, _ := cmd.Flags().GetBool("greedy")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	enableMetricsServer, _ := cmd.Flags().GetBool("enable-metrics-server")

	source, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	eh := errh.NewContextHandler(errh.NewWriterHandler(os.Stderr), configPath)

	r, err := buildRouter(source, configPath, eh)
	if err != nil {
		return err
	}

	if threads < 1 {
		threads = 1
	}
	master := scheduler.NewMaster(threads, greedy)

	scheduleRunnables(r, master, threads)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub, replay := broker.SubscribeReplay()
	go logSubscriber(sub, replay)

	master.Start()
	log.WithComponent("clickcore").Info().
		Str("config", configPath).
		Int("elements", r.NumElements()).
		Int("threads", threads).
		Msg("router running")
	broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventRouterLive,
		Message: "router built and scheduled",
		Metadata: map[string]string{
			"config":   configPath,
			"elements": fmt.Sprint(r.NumElements()),
		},
	})

	metrics.RegisterComponent("router", true, "built")
	metrics.RegisterComponent("scheduler", true, "running")
	metrics.RegisterComponent("control", true, "not applicable in standalone run mode")

	var collector *metrics.Collector
	var metricsServer *http.Server
	if enableMetricsServer {
		collector = metrics.NewCollector(r, master, nil)
		collector.Start()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", metrics.HealthHandler())
		mux.HandleFunc("/readyz", metrics.ReadyHandler())
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("clickcore").Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	waitForSignal()

	log.WithComponent("clickcore").Info().Msg("shutting down")
	metrics.UpdateComponent("router", false, "shutting down")
	metrics.UpdateComponent("scheduler", false, "shutting down")
	broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventRouterDead,
		Message: "router shutting down",
		Metadata: map[string]string{
			"reason": "signal",
		},
	})
	if collector != nil {
		collector.Stop()
	}
	if metricsServer != nil {
		metricsServer.Close()
	}
	master.Stop()
	r.Teardown()
	return nil
}

// logSubscriber logs replay (events published before this subscriber
// attached) and then drains sub for everything published after,
// serving as the default observer absent any control-plane client
// streaming the same feed.
func logSubscriber(sub events.Subscriber, replay []*events.Event) {
	for _, ev := range replay {
		logEvent(ev)
	}
	for ev := range sub {
		logEvent(ev)
	}
}

func logEvent(ev *events.Event) {
	log.WithComponent("events").Info().
		Str("type", string(ev.Type)).
		Str("message", ev.Message).
		Fields(metadataFields(ev.Metadata)).
		Msg("event")
}

func metadataFields(m map[string]string) map[string]interface{} {
	fields := make(map[string]interface{}, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return fields
}

// scheduleRunnables walks every element in r and schedules a Task for
// each one implementing element.Runnable, round-robining home threads
// the way a fresh router's elements get spread across a Master's
// RouterThreads absent any per-element pinning configuration.
func scheduleRunnables(r interface {
	NumElements() int
	Element(element.EIndex) element.Element
}, master *scheduler.Master, threads int) {
	home := 0
	for i := 0; i < r.NumElements(); i++ {
		idx := element.EIndex(i)
		runnable, ok := r.Element(idx).(element.Runnable)
		if !ok {
			continue
		}
		t := scheduler.NewTask(runnable, int32(home))
		master.Schedule(t)
		home = (home + 1) % threads
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
