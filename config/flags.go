package config

import "flag"

// Flags are command-line overrides for a loaded Config.
type Flags struct {
	listen         *string
	metricsListen  *string
	platformSigner *string
	journalPath    *string
	journalMemory  *bool
	logLevel       *string
	logFormat      *string
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		listen:         fs.String("listen", "", "gRPC listen address"),
		metricsListen:  fs.String("metrics-listen", "", "Prometheus /metrics listen address (empty disables)"),
		platformSigner: fs.String("platform-signer", "", "Platform signer address"),
		journalPath:    fs.String("journal", "", "Badger journal directory"),
		journalMemory:  fs.Bool("journal-in-memory", false, "Keep the journal in memory"),
		logLevel:       fs.String("log-level", "", "debug, info, warn or error"),
		logFormat:      fs.String("log-format", "", "text or json"),
	}
}

// Apply copies the flags that were set on the command line into c.
func (f *Flags) Apply(fs *flag.FlagSet, c *Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "listen":
			c.Listen = *f.listen
		case "metrics-listen":
			c.MetricsListen = *f.metricsListen
		case "platform-signer":
			c.PlatformSigner = *f.platformSigner
		case "journal":
			c.Journal.Path = *f.journalPath
			c.Journal.InMemory = false
		case "journal-in-memory":
			c.Journal.InMemory = *f.journalMemory
		case "log-level":
			c.Log.Level = *f.logLevel
		case "log-format":
			c.Log.Format = *f.logFormat
		}
	})
}
