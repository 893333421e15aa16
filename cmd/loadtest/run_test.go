package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bundb "github.com/padraicbc/usertokenapi/db"
	"github.com/padraicbc/usertokenapi/handlers"
)

func TestRun_CountsOutcomes(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req handlers.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch req.Username {
		case bundb.SeedMail(3):
			w.WriteHeader(http.StatusInternalServerError)
			return
		case bundb.SeedMail(2):
			_ = json.NewEncoder(w).Encode(handlers.LoginResponse{Success: false})
			return
		}
		ok := req.HashedPassword == bundb.HashPassword("password1")
		_ = json.NewEncoder(w).Encode(handlers.LoginResponse{Success: ok})
	}))
	defer srv.Close()

	stats, err := run(srv.Client(), Options{BaseURL: srv.URL + "/", Requests: 9, Concurrency: 3, Users: 3})
	require.NoError(t, err)

	assert.EqualValues(t, 9, hits.Load())
	assert.Equal(t, 9, stats.Requests)
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 3, stats.Rejected)
	assert.Equal(t, 3, stats.Failed)
	assert.LessOrEqual(t, stats.Min, stats.Max)
	assert.Positive(t, stats.RPS())
	assert.Contains(t, stats.String(), "matched=3")
}

func TestRun_InvalidOptions(t *testing.T) {
	_, err := run(http.DefaultClient, Options{Requests: 1, Concurrency: 0, Users: 1})
	assert.Error(t, err)
}

func TestStats_RPSCountsCompletedOnly(t *testing.T) {
	s := Stats{Requests: 10, Matched: 3, Rejected: 1, Failed: 6, Elapsed: 2 * time.Second}
	assert.InDelta(t, 2.0, s.RPS(), 1e-9)

	s = Stats{Requests: 4, Failed: 4, Elapsed: time.Second}
	assert.Zero(t, s.RPS())
}
