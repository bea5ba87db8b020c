package config

import (
	"flag"
	"time"

	"github.com/peterbourgon/ff/v3"
)

// Cli is the process's parsed configuration, grounded on the teacher's
// config.Cli flag-destination-struct pattern (main.go's fs.StringVar(&cli.X, ...)).
type Cli struct {
	HTTPAddr string
	PromPort int

	APIKey string

	DataDir         string
	CredentialsFile string
	RosterFile      string

	RefreshInterval time.Duration
	MaxClipDuration time.Duration

	UploadEndpoint string

	StallThreshold   time.Duration
	StallSweepPeriod time.Duration
	DiskSweepPeriod  time.Duration
	GCRetention      time.Duration
}

// ParseCli builds the flag set and parses args, reading STREAMWATCH_*
// environment variables for any flag not set explicitly, grounded on
// main.go's `ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix(...))` call.
func ParseCli(args []string) (Cli, error) {
	cli := Cli{}
	fs := flag.NewFlagSet("streamwatch", flag.ExitOnError)

	fs.StringVar(&cli.HTTPAddr, "http-addr", "0.0.0.0:8080", "Address to bind the HTTP API and push-channel server")
	fs.IntVar(&cli.PromPort, "prom-port", 9090, "Port to serve Prometheus metrics on")
	fs.StringVar(&cli.APIKey, "api-key", "", "Static API key required on every /api/* request, via the Authorization header")
	fs.StringVar(&cli.DataDir, "data-dir", "./data", "Root directory for temp buffers, clips, thumbnails and the catalog snapshot")
	fs.StringVar(&cli.CredentialsFile, "credentials-file", "./credentials.ini", "Path to the per-platform API credentials INI file")
	fs.StringVar(&cli.RosterFile, "roster-file", "./roster.json", "Path to the static {platform: [streamer ids]} roster file")
	fs.DurationVar(&cli.RefreshInterval, "refresh-interval", DefaultRefreshInterval, "Catalog refresh polling interval")
	fs.DurationVar(&cli.MaxClipDuration, "max-clip-duration", DefaultMaxClipDuration, "Capture and clip duration used when a request gives no maxDuration; a request's own maxDuration is not limited by this value (capture is capped at 240s)")
	fs.StringVar(&cli.UploadEndpoint, "upload-endpoint", DefaultUploadEndpoint, "Anonymous file host clips are uploaded to")
	fs.DurationVar(&cli.StallThreshold, "stall-threshold", DefaultStallThreshold, "Stall threshold; the stall sweep uses the built-in 30m default and does not read this value")
	fs.DurationVar(&cli.StallSweepPeriod, "stall-sweep-period", DefaultStallSweepPeriod, "How often to run the stall sweep")
	fs.DurationVar(&cli.DiskSweepPeriod, "disk-sweep-period", DefaultDiskSweepPeriod, "How often to run the disk-pressure sweep")
	fs.DurationVar(&cli.GCRetention, "gc-retention", DefaultGCRetention, "Retention window; the daily sweep uses the built-in 24h default and does not read this value")

	_ = fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("STREAMWATCH"),
	)
	return cli, err
}
