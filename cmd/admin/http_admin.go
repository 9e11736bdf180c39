package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Commands that talk to a running server rather than the data directory.
// The admin endpoints answer only loopback callers, so -url normally stays local.

func stateCmd(args []string) {
	serverCmd("state", http.MethodGet, "/v1/state", 5*time.Second, args)
}

func snapshotCmd(args []string) {
	serverCmd("snapshot", http.MethodPost, "/admin/v1/snapshot", 10*time.Second, args)
}

func indexCmd(args []string) {
	serverCmd("index", http.MethodGet, "/admin/v1/index", 5*time.Second, args)
}

func serverCmd(name, method, path string, timeout time.Duration, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	pretty := fs.Bool("pretty", false, "indent JSON responses")
	_ = fs.Parse(args)

	cl := &http.Client{Timeout: timeout}
	if err := callServer(cl, method, *baseURL, path, *pretty, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, name+":", err)
		os.Exit(1)
	}
}

// callServer sends one bodiless request and copies the response body to out.
// The body is printed even on a non-2xx status, which is then returned as an error.
func callServer(cl *http.Client, method, baseURL, path string, pretty bool, out io.Writer) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	b = bytes.TrimRight(b, "\n")
	if pretty {
		var buf bytes.Buffer
		if json.Indent(&buf, b, "", "  ") == nil {
			b = buf.Bytes()
		}
	}
	fmt.Fprintln(out, string(b))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
