package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/identity-service/pkg/model"
)

// Usage example on the command line:
// > go run main.go
// > go run main.go --url=http://localhost:8080 --sizes=100,1000
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var baseURL string
	var sizes []int
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Measure the latency of POST /api/identify",
		Long: `Sends batches of identify requests and prints the average latency in microseconds
per request for each kind of submission: brand new identities, exact repeats, new
secondaries and merges of two primaries.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := &bench{url: baseURL + "/api/identify", client: &http.Client{Timeout: 10 * time.Second}}
			return b.run(cmd.OutOrStdout(), sizes)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the identity service")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{100, 500, 1000, 5000}, "number of identities per round")
	return cmd
}

type bench struct {
	url    string
	client *http.Client
}

type identity struct {
	email string
	phone string
}

func (b *bench) run(out io.Writer, sizes []int) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Elements       NEW    REPEAT    SECOND     MERGE ")
	fmt.Fprintln(out, "---------------------------------------------------")
	for _, loops := range sizes {
		fmt.Fprintf(out, "%10d", loops)
		identities := randomIdentities(loops)

		// new identities
		d, err := b.measure(identities, func(id identity) model.IdentifyRequest {
			return request(id.email, id.phone)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%10d", d)

		// exact repeats in random order
		shuffled := shuffle(identities)
		d, err = b.measure(shuffled, func(id identity) model.IdentifyRequest {
			return request(id.email, id.phone)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%10d", d)

		// known phone with a new email
		d, err = b.measure(shuffled, func(id identity) model.IdentifyRequest {
			return request("second-"+id.email, id.phone)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%10d", d)

		// pair up primaries: the email of one with the phone of the next
		pairs := make([]identity, 0, loops/2)
		for i := 0; i+1 < loops; i += 2 {
			pairs = append(pairs, identity{email: identities[i].email, phone: identities[i+1].phone})
		}
		d, err = b.measure(pairs, func(id identity) model.IdentifyRequest {
			return request(id.email, id.phone)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%10d", d)
		fmt.Fprintln(out)
	}
	return nil
}

// measure sends one request per identity and returns the average duration in microseconds.
func (b *bench) measure(identities []identity, build func(identity) model.IdentifyRequest) (int64, error) {
	if len(identities) == 0 {
		return 0, nil
	}
	var duration time.Duration
	for _, id := range identities {
		d, err := b.send(build(id))
		if err != nil {
			return 0, err
		}
		duration += d
	}
	return duration.Microseconds() / int64(len(identities)), nil
}

func (b *bench) send(body model.IdentifyRequest) (time.Duration, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("could not marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	before := time.Now()
	res, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("could not read response body: %w", err)
	}
	elapsed := time.Since(before)

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d: %s", res.StatusCode, resBody)
	}
	var response model.IdentifyResponse
	if err := json.Unmarshal(resBody, &response); err != nil {
		return 0, fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	return elapsed, nil
}

func request(email, phone string) model.IdentifyRequest {
	number := model.PhoneNumber(phone)
	return model.IdentifyRequest{Email: &email, PhoneNumber: &number}
}

func randomIdentities(n int) []identity {
	run := uuid.NewString()[:8]
	identities := make([]identity, 0, n)
	for i := 0; i < n; i++ {
		identities = append(identities, identity{
			email: fmt.Sprintf("%s-%d@bench.example", run, i),
			phone: fmt.Sprintf("+1%09d", rand.Int63n(1_000_000_000)),
		})
	}
	return identities
}

func shuffle(identities []identity) []identity {
	shuffled := make([]identity, len(identities))
	copy(shuffled, identities)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
