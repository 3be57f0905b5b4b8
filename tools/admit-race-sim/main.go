package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fires n concurrent overlapping booking requests at one slot and
// tallies the responses. With the exclusion constraint in place exactly
// one should come back 201 and the rest 409.
func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8081"), "parking-service base url")
		slotID  = flag.String("slot", getenv("SLOT_ID", ""), "slot to fight over")
		n       = flag.Int("n", 10, "number of concurrent admissions")
		startAt = flag.String("start", "", "interval start (RFC3339, default now+24h)")
		hours   = flag.Int("hours", 2, "interval length in hours")
		token   = flag.String("token", getenv("TOKEN", ""), "bearer token when going through the gateway")
	)
	flag.Parse()

	if strings.TrimSpace(*slotID) == "" {
		fatal("SLOT_ID is required")
	}
	if *n <= 0 {
		fatal("-n must be positive")
	}

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Minute)
	if *startAt != "" {
		parsed, err := time.Parse(time.RFC3339, *startAt)
		if err != nil {
			fatal("invalid -start: " + err.Error())
		}
		start = parsed.UTC()
	}
	end := start.Add(time.Duration(*hours) * time.Hour)

	body, err := json.Marshal(map[string]string{
		"slot_id":    *slotID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
	})
	if err != nil {
		fatal(err.Error())
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/bookings"
	results := make([]result, *n)

	// Release every request at once so they actually race.
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < *n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-release
			results[i] = fire(url, *token, fmt.Sprintf("res-sim-%d", i+1), body)
		}(i)
	}
	close(release)
	wg.Wait()

	tally := map[int]int{}
	var winner string
	for _, r := range results {
		if r.err != nil {
			tally[-1]++
			continue
		}
		tally[r.status]++
		if r.status == http.StatusCreated && winner == "" {
			winner = r.bookingID
		}
	}

	fmt.Printf("slot=%s interval=[%s, %s) n=%d\n", *slotID, start.Format(time.RFC3339), end.Format(time.RFC3339), *n)
	statuses := make([]int, 0, len(tally))
	for s := range tally {
		statuses = append(statuses, s)
	}
	sort.Ints(statuses)
	for _, s := range statuses {
		if s == -1 {
			fmt.Printf("  transport errors: %d\n", tally[s])
			continue
		}
		fmt.Printf("  status %d: %d\n", s, tally[s])
	}
	if winner != "" {
		fmt.Printf("winner booking_id=%s\n", winner)
	}

	if tally[http.StatusCreated] != 1 {
		fmt.Fprintf(os.Stderr, "expected exactly one admission, got %d\n", tally[http.StatusCreated])
		os.Exit(1)
	}
}

type result struct {
	status    int
	bookingID string
	err       error
}

func fire(url, token, residentID string, body []byte) result {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("X-Resident-Id", residentID)
		req.Header.Set("X-Resident-Role", "resident")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()

	var parsed struct {
		BookingID string `json:"booking_id"`
	}
	data, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(data, &parsed)
	return result{status: resp.StatusCode, bookingID: parsed.BookingID}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
