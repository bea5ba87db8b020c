package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/streamwatch/streamwatch/browser"
	"github.com/streamwatch/streamwatch/capture"
	"github.com/streamwatch/streamwatch/catalog"
	"github.com/streamwatch/streamwatch/clip"
	"github.com/streamwatch/streamwatch/config"
	"github.com/streamwatch/streamwatch/events"
	"github.com/streamwatch/streamwatch/gc"
	"github.com/streamwatch/streamwatch/httpapi"
	"github.com/streamwatch/streamwatch/jobs"
	"github.com/streamwatch/streamwatch/log"
	"github.com/streamwatch/streamwatch/metrics"
	"github.com/streamwatch/streamwatch/platforms"
	"github.com/streamwatch/streamwatch/platforms/chaturbate"
	"github.com/streamwatch/streamwatch/platforms/dlive"
	"github.com/streamwatch/streamwatch/platforms/kick"
	"github.com/streamwatch/streamwatch/platforms/rumble"
	"github.com/streamwatch/streamwatch/platforms/trovo"
	"github.com/streamwatch/streamwatch/platforms/twitch"
	"github.com/streamwatch/streamwatch/platforms/youtube"
	"github.com/streamwatch/streamwatch/resolver"
	"github.com/streamwatch/streamwatch/scheduler"
	"github.com/streamwatch/streamwatch/uploader"
)

func main() {
	_ = flag.Set("logtostderr", "true")

	if len(os.Args) > 1 && os.Args[1] == "-version" {
		fmt.Printf("streamwatch version: %s\n", config.Version)
		return
	}

	cli, err := config.ParseCli(os.Args[1:])
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}

	if err := os.MkdirAll(cli.DataDir, 0o755); err != nil {
		glog.Fatalf("error creating data dir %s: %s", cli.DataDir, err)
	}

	creds, err := config.LoadCredentials(cli.CredentialsFile)
	if err != nil {
		glog.Fatalf("error loading credentials file %s: %s", cli.CredentialsFile, err)
	}
	roster, err := platforms.LoadRoster(cli.RosterFile)
	if err != nil {
		glog.Fatalf("error loading roster file %s: %s", cli.RosterFile, err)
	}

	m := metrics.New()
	bus := events.NewBus()
	bus.OnDrop(func(kind events.Kind) {
		m.EventsDropped.WithLabelValues(string(kind)).Inc()
	})
	owner := browser.New()

	twitchCreds := creds["twitch"]
	apiAdapters := []platforms.Adapter{
		kick.New(),
		trovo.New(),
		chaturbate.New(),
		dlive.New(),
		twitch.New(twitchCreds.ClientID, twitchCreds.ClientSecret),
	}
	scrapeAdapters := []platforms.Adapter{
		youtube.New(owner),
		rumble.New(owner),
	}

	catalogPath := filepath.Join(cli.DataDir, config.CatalogFileName)
	aggregator := catalog.NewAggregator(roster, apiAdapters, scrapeAdapters, catalogPath, bus, m)

	broker := jobs.NewBroker(bus)
	res := resolver.New(aggregator, owner)
	captureWorker := capture.NewWorker(broker, res, cli.DataDir)
	clipExtractor := clip.NewExtractor(broker, cli.DataDir)
	up := uploader.New(cli.UploadEndpoint, broker)
	collector := gc.NewCollector(broker, cli.DataDir, m)
	sched := scheduler.New(aggregator, collector, cli.RefreshInterval, cli.StallSweepPeriod, cli.DiskSweepPeriod)

	server := httpapi.NewServer(aggregator, broker, captureWorker, clipExtractor, up, bus, m, cli.DataDir, cli.APIKey, cli.MaxClipDuration)
	router := httpapi.NewRouter(server)

	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return handleSignals(ctx)
	})

	group.Go(func() error {
		sched.Run(ctx)
		return nil
	})

	group.Go(func() error {
		return metrics.ListenAndServe(cli.PromPort)
	})

	group.Go(func() error {
		return listenAndServe(ctx, cli.HTTPAddr, router)
	})

	err = group.Wait()
	owner.Shutdown()
	log.LogNoRequestID("shutdown complete", "reason", err)
}

// listenAndServe runs the HTTP API server until ctx is cancelled, then
// drains in-flight requests with a bounded grace period, grounded on the
// teacher's api.ListenAndServe.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID("starting streamwatch http api", "version", config.Version, "host", addr)

	var serveErr error
	go func() {
		serveErr = srv.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if serveErr != nil && serveErr != http.ErrServerClosed {
		return serveErr
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	select {
	case s := <-c:
		glog.Errorf("caught signal=%v, attempting clean shutdown", s)
		return fmt.Errorf("caught signal=%v", s)
	case <-ctx.Done():
		return nil
	}
}
