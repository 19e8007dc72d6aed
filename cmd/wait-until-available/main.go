package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080/swagger/health -timeout=2m
func main() {
	url := flag.String("url", "http://localhost:8080/swagger/health", "the health endpoint to poll")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait before giving up")
	flag.Parse()

	if err := waitUntilAvailable(context.Background(), *url, *timeout); err != nil {
		fmt.Println("service did not become available:", err)
		os.Exit(1)
	}
	fmt.Println("service is available")
}

func waitUntilAvailable(ctx context.Context, url string, timeout time.Duration) error {
	client := &http.Client{Timeout: 5 * time.Second}
	started := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	return backoff.RetryNotify(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s", res.Status)
		}
		return nil
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		fmt.Printf("Waited %s: %v, retrying in %s\n", time.Since(started).Round(time.Second), err, next.Round(time.Millisecond))
	})
}
