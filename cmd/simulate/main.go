package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/awnhealth/scheduling-engine/internal/appointment"
	"github.com/awnhealth/scheduling-engine/internal/config"
	"github.com/awnhealth/scheduling-engine/internal/db"
)

// The simulator hammers the public booking endpoints with concurrent guest
// traffic. Workers deliberately collide on a small pool of (therapist, date,
// time) slots so the run exercises the slot lock and the unique index under
// real contention. After the run it audits the bookings table: any slot with
// more than one active booking is a double-book and fails the run.

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	AvailabilityRatio float64
	ReadRatio         float64
	TherapistLimit    int
	DayCount          int
	PostgresDSN       string
}

type createdBooking struct {
	ID    uuid.UUID
	Email string
}

type DataPool struct {
	Therapists []uuid.UUID
	Days       []string

	mu       sync.RWMutex
	bookings []createdBooking
}

func (dp *DataPool) AddBooking(id uuid.UUID, email string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, createdBooking{ID: id, Email: email})
}

func (dp *DataPool) GetRandomBooking() (createdBooking, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return createdBooking{}, false
	}
	return dp.bookings[rand.Intn(len(dp.bookings))], true
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

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking      OperationMetrics
	Availability OperationMetrics
	PatientList  OperationMetrics
	DaySchedule  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("booking simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f availability=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.AvailabilityRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d therapists, %d target days, %d slot times",
		len(dataPool.Therapists), len(dataPool.Days), len(appointment.DailySlotTimes))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()

	if err := auditSlotExclusivity(context.Background(), pgPool); err != nil {
		log.Fatalf("slot exclusivity audit FAILED: %v", err)
	}
	log.Println("slot exclusivity audit passed: no slot holds more than one active booking")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 20),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.6),
		AvailabilityRatio: getFloat("SIM_AVAILABILITY_RATIO", 0.2),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.2),
		TherapistLimit:    getInt("SIM_THERAPIST_LIMIT", 5),
		DayCount:          getInt("SIM_DAY_COUNT", 3),
		PostgresDSN:       baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.AvailabilityRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.AvailabilityRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DayCount <= 0 {
		return fmt.Errorf("SIM_DAY_COUNT must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	// A deliberately small therapist pool keeps workers colliding on the
	// same slots.
	rows, err := pool.Query(ctx, `
		SELECT id FROM therapists WHERE active = true ORDER BY created_at LIMIT $1
	`, cfg.TherapistLimit)
	if err != nil {
		return nil, fmt.Errorf("load therapists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Therapists = append(dataPool.Therapists, id)
	}

	if len(dataPool.Therapists) == 0 {
		return nil, fmt.Errorf("no active therapists loaded (run cmd/seed first)")
	}

	for i := 1; i <= cfg.DayCount; i++ {
		day := time.Now().AddDate(0, 0, i).Format("2006-01-02")
		dataPool.Days = append(dataPool.Days, day)
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.AvailabilityRatio:
				s.doAvailability(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doPatientList(ctx, rng)
				} else {
					s.doDaySchedule(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomSlot(rng *rand.Rand) (uuid.UUID, string, string) {
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
	date := s.pool.Days[rng.Intn(len(s.pool.Days))]
	slotTime := appointment.DailySlotTimes[rng.Intn(len(appointment.DailySlotTimes))]
	return therapistID, date, slotTime
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	therapistID, date, slotTime := s.randomSlot(rng)
	email := strings.ToLower(gofakeit.Email())

	reqBody := map[string]any{
		"therapist_id":  therapistID.String(),
		"patient_name":  gofakeit.Name(),
		"patient_email": email,
		"patient_phone": gofakeit.Phone(),
		"booking_date":  date,
		"booking_time":  slotTime,
		"session_type":  pickKind(rng),
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/api/booking", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var envelope struct {
				Data struct {
					ID uuid.UUID `json:"id"`
				} `json:"data"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &envelope)
				if envelope.Data.ID != uuid.Nil {
					s.pool.AddBooking(envelope.Data.ID, email)
				}
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	therapistID, date, slotTime := s.randomSlot(rng)

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/bookings/availability?therapist_id=%s&date=%s&time=%s",
			s.config.APIBaseURL, therapistID.String(), date, slotTime), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Availability.Record(latency, success, false)
}

func (s *Simulator) doPatientList(ctx context.Context, rng *rand.Rand) {
	booking, ok := s.pool.GetRandomBooking()
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/bookings/patient/%s", s.config.APIBaseURL, booking.Email), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.PatientList.Record(latency, success, false)
}

func (s *Simulator) doDaySchedule(ctx context.Context, rng *rand.Rand) {
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
	date := s.pool.Days[rng.Intn(len(s.pool.Days))]

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/api/bookings/availability?therapist_id=%s&date=%s",
			s.config.APIBaseURL, therapistID.String(), date), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.DaySchedule.Record(latency, success, false)
}

func pickKind(rng *rand.Rand) string {
	if rng.Intn(2) == 0 {
		return "home"
	}
	return "online"
}

// auditSlotExclusivity is the point of the whole exercise: after the run,
// no (therapist, date, time) slot may hold more than one active booking.
func auditSlotExclusivity(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
		SELECT therapist_id, booking_date, booking_time, count(*)
		FROM bookings
		WHERE status IN ('pending', 'confirmed')
		GROUP BY therapist_id, booking_date, booking_time
		HAVING count(*) > 1
	`)
	if err != nil {
		return fmt.Errorf("audit query: %w", err)
	}
	defer rows.Close()

	var violations int
	for rows.Next() {
		var therapistID uuid.UUID
		var date, slotTime string
		var n int64
		if err := rows.Scan(&therapistID, &date, &slotTime, &n); err != nil {
			return err
		}
		violations++
		log.Printf("DOUBLE BOOKING: therapist=%s date=%s time=%s active=%d", therapistID, date, slotTime, n)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if violations > 0 {
		return fmt.Errorf("%d slots hold more than one active booking", violations)
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Contended slots: %d therapists x %d days x %d times\n",
		len(s.pool.Therapists), len(s.pool.Days), len(appointment.DailySlotTimes))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Patient List", &s.metrics.PatientList)
	printOperationReport("Day Schedule", &s.metrics.DaySchedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errors := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errors > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errors, float64(errors)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
