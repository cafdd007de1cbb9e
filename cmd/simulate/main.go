package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/logger"
)

// The simulator races many patients for the same slot, round after round,
// and checks that every round has exactly one winner.

type SimConfig struct {
	APIBaseURL string
	Rounds     int
	Racers     int
	CancelRate float64
	SearchDays int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking OperationMetrics
	Cancel  OperationMetrics
	Slots   OperationMetrics
}

type target struct {
	DoctorID uuid.UUID
	Date     string
	Time     string
}

type Simulator struct {
	config  SimConfig
	issuer  *auth.Issuer
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger

	rounds     int64
	violations int64
	noWinner   int64
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(zerolog.NewConsoleWriter())
		boot.Fatal().Err(err).Msg("failed to load base config")
	}
	log := logger.New(baseCfg.ServiceName, baseCfg.Env, baseCfg.LogLevel).With().Str("cmd", "simulate").Logger()

	cfg := SimConfig{
		APIBaseURL: strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Rounds:     getInt("SIM_ROUNDS", 50),
		Racers:     getInt("SIM_RACERS", 20),
		CancelRate: getFloat("SIM_CANCEL_RATE", 0.3),
		SearchDays: getInt("SIM_SEARCH_DAYS", 14),
	}
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Int("rounds", cfg.Rounds).
		Int("racers", cfg.Racers).
		Float64("cancel_rate", cfg.CancelRate).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		issuer: auth.NewIssuer(baseCfg.JWTSecret, time.Hour),
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, stop := context.WithTimeout(context.Background(), 10*time.Minute)
	defer stop()

	doctors, err := sim.listDoctors(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list doctors")
	}
	if len(doctors) == 0 {
		log.Fatal().Msg("no active doctors, run the seed command first")
	}
	log.Info().Int("doctors", len(doctors)).Msg("loaded doctors")

	sim.Run(ctx, doctors)
	sim.PrintReport()

	if atomic.LoadInt64(&sim.violations) > 0 {
		os.Exit(1)
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Rounds <= 0 {
		return errors.New("SIM_ROUNDS must be > 0")
	}
	if cfg.Racers < 2 {
		return errors.New("SIM_RACERS must be >= 2")
	}
	if cfg.CancelRate < 0 || cfg.CancelRate > 1 {
		return errors.New("SIM_CANCEL_RATE must be within [0, 1]")
	}
	return nil
}

func (s *Simulator) Run(ctx context.Context, doctors []uuid.UUID) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < s.config.Rounds && ctx.Err() == nil; i++ {
		doctorID := doctors[rng.Intn(len(doctors))]
		t, ok := s.findSlot(ctx, rng, doctorID)
		if !ok {
			continue
		}
		s.race(ctx, t, rng.Float64() < s.config.CancelRate)
	}

	s.log.Info().Int64("rounds", atomic.LoadInt64(&s.rounds)).Msg("simulation complete")
}

// race fires Racers concurrent bookings for one slot. With cancelAfter the
// winner cancels and a second booking must then succeed.
func (s *Simulator) race(ctx context.Context, t target, cancelAfter bool) {
	atomic.AddInt64(&s.rounds, 1)

	start := make(chan struct{})
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []booked
	)
	for i := 0; i < s.config.Racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if b, ok := s.book(ctx, t); ok {
				mu.Lock()
				winners = append(winners, b)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	switch len(winners) {
	case 1:
	case 0:
		atomic.AddInt64(&s.noWinner, 1)
		s.log.Warn().Str("doctor_id", t.DoctorID.String()).Str("date", t.Date).Str("time", t.Time).Msg("round had no winner")
		return
	default:
		atomic.AddInt64(&s.violations, 1)
		s.log.Error().
			Str("doctor_id", t.DoctorID.String()).
			Str("date", t.Date).
			Str("time", t.Time).
			Int("winners", len(winners)).
			Msg("double booking detected")
		return
	}

	if !cancelAfter {
		return
	}
	if !s.cancel(ctx, winners[0]) {
		return
	}
	if _, ok := s.book(ctx, t); !ok {
		s.log.Warn().Str("time", t.Time).Msg("slot not bookable again after cancellation")
	}
}

type booked struct {
	ID    uuid.UUID
	Token string
}

func (s *Simulator) book(ctx context.Context, t target) (booked, bool) {
	token, err := s.issuer.Issue(auth.Principal{UserID: uuid.New(), Role: auth.RolePatient})
	if err != nil {
		s.log.Error().Err(err).Msg("issue token")
		return booked{}, false
	}

	body, _ := json.Marshal(map[string]string{
		"doctor_id": t.DoctorID.String(),
		"date":      t.Date,
		"time":      t.Time,
		"reason":    "load simulation",
	})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", token, body)
	latency := time.Since(start)

	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return booked{}, false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var out struct {
			ID uuid.UUID `json:"id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		s.metrics.Booking.Record(latency, true, false)
		return booked{ID: out.ID, Token: token}, true
	case http.StatusConflict:
		s.metrics.Booking.Record(latency, false, true)
	default:
		s.metrics.Booking.Record(latency, false, false)
	}
	return booked{}, false
}

func (s *Simulator) cancel(ctx context.Context, b booked) bool {
	body, _ := json.Marshal(map[string]string{"reason": "simulated change of plans"})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodDelete, "/appointments/"+b.ID.String(), b.Token, body)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Cancel.Record(latency, false, false)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	s.metrics.Cancel.Record(latency, ok, resp.StatusCode == http.StatusConflict)
	return ok
}

// findSlot looks ahead up to SearchDays for a bookable slot of doctorID.
func (s *Simulator) findSlot(ctx context.Context, rng *rand.Rand, doctorID uuid.UUID) (target, bool) {
	day := time.Now().AddDate(0, 0, 1)
	for i := 0; i < s.config.SearchDays; i++ {
		date := day.AddDate(0, 0, i).Format("2006-01-02")

		start := time.Now()
		resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, date), "", nil)
		latency := time.Since(start)
		if err != nil {
			s.metrics.Slots.Record(latency, false, false)
			return target{}, false
		}

		var out struct {
			Slots []string `json:"slots"`
		}
		ok := resp.StatusCode == http.StatusOK
		if ok {
			_ = json.NewDecoder(resp.Body).Decode(&out)
		}
		resp.Body.Close()
		s.metrics.Slots.Record(latency, ok, false)

		if len(out.Slots) > 0 {
			return target{DoctorID: doctorID, Date: date, Time: out.Slots[rng.Intn(len(out.Slots))]}, true
		}
	}
	return target{}, false
}

func (s *Simulator) listDoctors(ctx context.Context) ([]uuid.UUID, error) {
	resp, err := s.do(ctx, http.MethodGet, "/doctors?limit=100", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /doctors: status %d", resp.StatusCode)
	}

	var out struct {
		Doctors []struct {
			ID uuid.UUID `json:"id"`
		} `json:"doctors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode doctors: %w", err)
	}

	ids := make([]uuid.UUID, len(out.Doctors))
	for i, d := range out.Doctors {
		ids[i] = d.ID
	}
	return ids, nil
}

func (s *Simulator) do(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Rounds: %d\n", atomic.LoadInt64(&s.rounds))
	fmt.Printf("Racers per round: %d\n", s.config.Racers)
	fmt.Printf("Rounds without a winner: %d\n", atomic.LoadInt64(&s.noWinner))
	fmt.Printf("Double bookings: %d\n", atomic.LoadInt64(&s.violations))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Slot lookup", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
