package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   server endpoint URL
//	-d string   path to the local SQLite database
//	-f int      fare amount, minor currency units
//	-b int      default balance for new cards, minor currency units
//	-i int      sync retry interval in seconds
//	-t int      network request timeout in seconds
//	-p string   vault passphrase (empty -> interactive prompt)
//	-s string   vault salt
//
// The function filters os.Args to only the flags it knows about, using
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-f", "-b", "-i", "-t", "-p", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "server endpoint URL")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local database path")
	fs.Int64Var(&cfg.FareAmount, "f", cfg.FareAmount, "fare amount (minor units)")
	fs.Int64Var(&cfg.DefaultBalance, "b", cfg.DefaultBalance, "default balance for new cards (minor units)")
	retryInterval := fs.Int("i", int(cfg.RetryInterval.Seconds()), "sync retry interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.Passphrase, "p", cfg.Passphrase, "vault passphrase")
	fs.StringVar(&cfg.Salt, "s", cfg.Salt, "vault salt")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RetryInterval = time.Duration(*retryInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
