package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	bundb "github.com/padraicbc/usertokenapi/db"
	"github.com/padraicbc/usertokenapi/handlers"
)

// Options configures a load run.
type Options struct {
	BaseURL     string
	Requests    int
	Concurrency int
	// Users is the seeded population; request i logs in as user (i % Users)+1.
	Users int
}

// Stats summarises a load run. Matched counts 200 responses with
// success=true; Rejected counts 200 responses with success=false; Failed
// counts transport errors and non-200 statuses.
type Stats struct {
	Requests int
	Matched  int
	Rejected int
	Failed   int
	Min      time.Duration
	Max      time.Duration
	Total    time.Duration
	Elapsed  time.Duration
}

// Avg returns the mean latency of completed requests.
func (s Stats) Avg() time.Duration {
	done := s.Matched + s.Rejected
	if done == 0 {
		return 0
	}
	return s.Total / time.Duration(done)
}

// RPS returns completed requests per second of wall time. Failed
// requests are not counted.
func (s Stats) RPS() float64 {
	done := s.Matched + s.Rejected
	if s.Elapsed <= 0 || done == 0 {
		return 0
	}
	return float64(done) / s.Elapsed.Seconds()
}

func (s Stats) String() string {
	return fmt.Sprintf("requests=%d matched=%d rejected=%d failed=%d min=%s avg=%s max=%s elapsed=%s rps=%.0f",
		s.Requests, s.Matched, s.Rejected, s.Failed,
		s.Min, s.Avg(), s.Max, s.Elapsed.Round(time.Millisecond), s.RPS())
}

type result struct {
	latency time.Duration
	matched bool
	err     error
}

func run(client *http.Client, opts Options) (Stats, error) {
	if opts.Requests <= 0 || opts.Concurrency <= 0 || opts.Users <= 0 {
		return Stats{}, errors.New("requests, concurrency and users must be positive")
	}
	url := strings.TrimRight(opts.BaseURL, "/") + "/api/auth/get-user-token"

	var (
		mu    sync.Mutex
		stats = Stats{Requests: opts.Requests}
	)
	record := func(r result) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.err != nil:
			stats.Failed++
			return
		case r.matched:
			stats.Matched++
		default:
			stats.Rejected++
		}
		stats.Total += r.latency
		if stats.Min == 0 || r.latency < stats.Min {
			stats.Min = r.latency
		}
		if r.latency > stats.Max {
			stats.Max = r.latency
		}
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(opts.Concurrency)

	start := time.Now()
	for i := 0; i < opts.Requests; i++ {
		user := i%opts.Users + 1
		g.Go(func() error {
			record(verifyOnce(ctx, client, url, user))
			return nil
		})
	}
	_ = g.Wait()
	stats.Elapsed = time.Since(start)
	return stats, nil
}

func verifyOnce(ctx context.Context, client *http.Client, url string, user int) result {
	body, err := json.Marshal(handlers.LoginRequest{
		Username:       bundb.SeedMail(user),
		HashedPassword: bundb.SeedPasswordHash(user),
	})
	if err != nil {
		return result{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result{err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	var lr handlers.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return result{err: err}
	}
	return result{latency: time.Since(start), matched: lr.Success}
}
