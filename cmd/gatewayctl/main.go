// gatewayctl is a thin client for the daemon's HTTP control surface.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gatewayctl [-addr host:port] <command>

commands:
  status   print daemon status
  events   print recent events
  start    start the monitor loop
  stop     stop the monitor loop
`)
	os.Exit(2)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8250", "daemon address")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}

	var method, path string
	switch flag.Arg(0) {
	case "status":
		method, path = http.MethodGet, "/api/status"
	case "events":
		method, path = http.MethodGet, "/api/events"
	case "start":
		method, path = http.MethodPost, "/api/monitor/start"
	case "stop":
		method, path = http.MethodPost, "/api/monitor/stop"
	default:
		usage()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(method, "http://"+*addr+path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v (is gatewayd running?)\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
