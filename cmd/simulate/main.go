// simulate runs booking-contention scenarios against a gateway instance.
//
// It starts a stub booking backend (in-memory slots, JWT-minting refresh
// endpoint) for the gateway to talk to, then drives concurrent simulated
// patients through the guard → refresh → hold → confirm flow and reports
// success / conflict / expired counts with latency percentiles.
//
// Point the gateway at the stub (BACKEND_BASE_URL=http://127.0.0.1:9100)
// and this tool at the gateway (GATEWAY_BASE_URL=http://127.0.0.1:8080).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/carebridge/booking-gateway/internal/slot"
)

type SimConfig struct {
	GatewayBaseURL string
	StubAddr       string
	Duration       time.Duration
	Workers        int
	Patients       int
	Slots          int
	HoldDuration   time.Duration
	ConfirmRatio   float64
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "http://127.0.0.1:8080"),
		StubAddr:       getEnv("STUB_ADDR", "127.0.0.1:9100"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 16),
		Patients:       getInt("SIM_PATIENTS", 50),
		Slots:          getInt("SIM_SLOTS", 40),
		HoldDuration:   getDuration("SIM_HOLD_DURATION", 5*time.Second),
		ConfirmRatio:   0.7,
	}
	return cfg
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// stubBackend is the authoritative store the gateway proxies to during a
// simulation: slots guarded by one mutex, refresh tokens mapped to patients,
// HS256 access tokens.
type stubBackend struct {
	mu       sync.Mutex
	machine  slot.Machine
	slots    map[uuid.UUID]*slot.Slot
	sessions map[string]uuid.UUID // refresh token -> patient id
	secret   []byte
}

func newStubBackend(cfg SimConfig) *stubBackend {
	sb := &stubBackend{
		machine:  slot.NewMachine(cfg.HoldDuration),
		slots:    make(map[uuid.UUID]*slot.Slot),
		sessions: make(map[string]uuid.UUID),
		secret:   []byte(gofakeit.UUID()),
	}

	doctors := make([]uuid.UUID, 5)
	for i := range doctors {
		doctors[i] = uuid.New()
	}

	day := time.Now().Add(24 * time.Hour)
	for i := 0; i < cfg.Slots; i++ {
		start := day.Add(time.Duration(i) * 30 * time.Minute)
		s := &slot.Slot{
			ID:        uuid.New(),
			DoctorID:  doctors[i%len(doctors)],
			Date:      start.Format("2006-01-02"),
			StartTime: start.Format("15:04"),
			EndTime:   start.Add(30 * time.Minute).Format("15:04"),
			Status:    slot.StatusFree,
		}
		sb.slots[s.ID] = s
	}

	return sb
}

func (sb *stubBackend) newSession(patientID uuid.UUID) string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	token := gofakeit.UUID() + gofakeit.UUID()
	sb.sessions[token] = patientID
	return token
}

func (sb *stubBackend) mintAccessToken(patientID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   patientID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sb.secret)
}

func (sb *stubBackend) actorFromRequest(r *http.Request) (uuid.UUID, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return uuid.Nil, false
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(t *jwt.Token) (any, error) {
		return sb.secret, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (sb *stubBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("refresh_token")
		if err != nil {
			stubError(w, http.StatusUnauthorized, "missing refresh token")
			return
		}
		sb.mu.Lock()
		patientID, ok := sb.sessions[c.Value]
		sb.mu.Unlock()
		if !ok {
			stubError(w, http.StatusUnauthorized, "unknown refresh token")
			return
		}
		access, err := sb.mintAccessToken(patientID)
		if err != nil {
			stubError(w, http.StatusInternalServerError, err.Error())
			return
		}
		stubJSON(w, http.StatusOK, map[string]string{"access_token": access})
	})

	mux.HandleFunc("GET /patient/view/slots", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sb.actorFromRequest(r); !ok {
			stubError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		sb.mu.Lock()
		out := make([]slot.Slot, 0, len(sb.slots))
		for _, s := range sb.slots {
			out = append(out, *s)
		}
		sb.mu.Unlock()
		stubJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /patient/slots/{id}/{op}", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := sb.actorFromRequest(r)
		if !ok {
			stubError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			stubError(w, http.StatusBadRequest, "bad slot id")
			return
		}

		sb.mu.Lock()
		defer sb.mu.Unlock()
		s, ok := sb.slots[id]
		if !ok {
			stubError(w, http.StatusNotFound, "slot not found")
			return
		}

		now := time.Now()
		switch r.PathValue("op") {
		case "hold":
			err = sb.machine.Hold(s, actor, now)
		case "release":
			err = sb.machine.Release(s, actor, now)
		case "confirm":
			err = sb.machine.Confirm(s, actor, now)
			if err == nil {
				stubJSON(w, http.StatusCreated, map[string]any{
					"appointment_id": uuid.New().String(),
					"slot_id":        s.ID.String(),
					"doctor_id":      s.DoctorID.String(),
					"patient_id":     actor.String(),
					"status":         "pending",
					"created_at":     now,
					"updated_at":     now,
				})
				return
			}
		default:
			stubError(w, http.StatusNotFound, "unknown operation")
			return
		}

		switch err {
		case nil:
			stubJSON(w, http.StatusOK, s)
		case slot.ErrHoldExpired:
			stubError(w, http.StatusGone, "hold expired")
		default:
			stubError(w, http.StatusConflict, err.Error())
		}
	})

	return mux
}

func stubJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func stubError(w http.ResponseWriter, status int, detail string) {
	stubJSON(w, status, map[string]string{"detail": detail})
}

type OperationMetrics struct {
	mu        sync.Mutex
	Total     int64
	Success   int64
	Conflict  int64
	Expired   int64
	Error     int64
	Latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	om.mu.Lock()
	defer om.mu.Unlock()
	om.Total++
	switch {
	case status >= 200 && status < 300:
		om.Success++
	case status == http.StatusConflict:
		om.Conflict++
	case status == http.StatusGone:
		om.Expired++
	default:
		om.Error++
	}
	om.Latencies = append(om.Latencies, latency)
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type patientSession struct {
	name   string
	client *http.Client
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()
	gofakeit.Seed(time.Now().UnixNano())

	sb := newStubBackend(cfg)
	stubSrv := &http.Server{Addr: cfg.StubAddr, Handler: sb.handler()}
	go func() {
		log.Printf("stub backend listening on %s", cfg.StubAddr)
		if err := stubSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("stub backend: %v", err)
		}
	}()
	defer stubSrv.Close()

	// One cookie jar per patient so refresh cookies stay per-session. Half
	// the sessions start without an access token to exercise the silent
	// refresh path.
	sessions := make([]*patientSession, cfg.Patients)
	for i := range sessions {
		patientID := uuid.New()
		refresh := sb.newSession(patientID)

		jar, err := cookiejar.New(nil)
		if err != nil {
			log.Fatalf("cookie jar: %v", err)
		}
		client := &http.Client{Jar: jar, Timeout: 10 * time.Second}
		seedCookies(client, cfg.GatewayBaseURL, refresh)
		if i%2 == 0 {
			if access, err := sb.mintAccessToken(patientID); err == nil {
				seedAccessCookie(client, cfg.GatewayBaseURL, access)
			}
		}
		sessions[i] = &patientSession{name: gofakeit.Name(), client: client}
	}

	holds := &OperationMetrics{}
	confirms := &OperationMetrics{}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, cfg, sessions, holds, confirms)
		}()
	}
	wg.Wait()

	report("hold", holds)
	report("confirm", confirms)
}

func runWorker(ctx context.Context, cfg SimConfig, sessions []*patientSession, holds, confirms *OperationMetrics) {
	for ctx.Err() == nil {
		sess := sessions[rand.Intn(len(sessions))]

		slots, err := fetchSlots(ctx, cfg, sess)
		if err != nil || len(slots) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		free := slots[:0]
		for _, s := range slots {
			if s.Status == slot.StatusFree {
				free = append(free, s)
			}
		}
		if len(free) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		target := free[rand.Intn(len(free))]

		status, latency := post(ctx, sess, cfg.GatewayBaseURL+"/api/slots/"+target.ID.String()+"/hold")
		holds.Record(latency, status)
		if status != http.StatusOK {
			continue
		}

		if rand.Float64() < cfg.ConfirmRatio {
			status, latency = post(ctx, sess, cfg.GatewayBaseURL+"/api/slots/"+target.ID.String()+"/confirm")
			confirms.Record(latency, status)
		} else {
			post(ctx, sess, cfg.GatewayBaseURL+"/api/slots/"+target.ID.String()+"/release")
		}
	}
}

func fetchSlots(ctx context.Context, cfg SimConfig, sess *patientSession) ([]slot.Slot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.GatewayBaseURL+"/api/slots", nil)
	if err != nil {
		return nil, err
	}
	resp, err := sess.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list slots: status %d", resp.StatusCode)
	}
	var slots []slot.Slot
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func post(ctx context.Context, sess *patientSession, url string) (int, time.Duration) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return 0, time.Since(start)
	}
	resp, err := sess.client.Do(req)
	if err != nil {
		return 0, time.Since(start)
	}
	defer resp.Body.Close()
	return resp.StatusCode, time.Since(start)
}

func seedCookies(client *http.Client, baseURL, refresh string) {
	req, err := http.NewRequest(http.MethodGet, baseURL, nil)
	if err != nil {
		return
	}
	client.Jar.SetCookies(req.URL, []*http.Cookie{{Name: "refresh_token", Value: refresh, Path: "/"}})
}

func seedAccessCookie(client *http.Client, baseURL, access string) {
	req, err := http.NewRequest(http.MethodGet, baseURL, nil)
	if err != nil {
		return
	}
	client.Jar.SetCookies(req.URL, []*http.Cookie{{Name: "access_token", Value: access, Path: "/"}})
}

func report(name string, om *OperationMetrics) {
	avg, p50, p95 := om.Stats()
	log.Printf("%s: total=%d success=%d conflict=%d expired=%d error=%d avg=%s p50=%s p95=%s",
		name, om.Total, om.Success, om.Conflict, om.Expired, om.Error, avg, p50, p95)
}
