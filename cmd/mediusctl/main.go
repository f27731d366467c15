// Command mediusctl queries the admin API of a running Medius server and
// prints the result as tables.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: mediusctl [flags] <command> [args]

Commands:
  health              server status and host load
  games               games in progress
  end <game-id>       end a game and release its name
  channels            chat channels
  clients             logged-in and held identities
  nodes               registered routing nodes

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Admin API base URL")
	appID := flag.Int("app", 0, "Only show entries of this application id")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	version := flag.Bool("version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("mediusctl %s\n", Version)
		return
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	api := &apiClient{
		base:  *addr,
		appID: int32(*appID),
		http:  &http.Client{Timeout: *timeout},
	}
	if err := run(api, os.Stdout, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
