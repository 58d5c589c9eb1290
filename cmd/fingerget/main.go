package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thumbplan/fingerd/internal/protocol/finger"
)

// fingerget is a minimal finger client for querying a plan server.
//
// Usage:
//
//	fingerget [-l] [target][@host]
//
// With no target the server returns the plan listing. The @host suffix
// selects the server to query; it defaults to localhost.
func main() {
	long := flag.Bool("l", false, "Request the long output format")
	port := flag.Int("p", finger.DefaultPort, "Server port")
	timeout := flag.Duration("timeout", 10*time.Second, "Dial and exchange timeout")
	flag.Parse()

	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "usage: fingerget [-l] [target][@host]")
		os.Exit(2)
	}

	query := flag.Arg(0)
	target, host := splitQuery(query)

	if err := run(target, host, *port, *long, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "fingerget: %v\n", err)
		os.Exit(1)
	}
}

// splitQuery separates "target@host" into its parts. Everything from
// the first @ on names the host.
func splitQuery(query string) (target, host string) {
	if i := strings.IndexByte(query, '@'); i >= 0 {
		return query[:i], query[i+1:]
	}
	return query, ""
}

func run(target, host string, port int, long bool, timeout time.Duration) error {
	if host == "" {
		host = "localhost"
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	line := target
	if long {
		line = finger.FlagLong + " " + target
	}

	if _, err := fmt.Fprintf(conn, "%s\r\n", line); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	if _, err := io.Copy(os.Stdout, conn); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	return nil
}
