// Command fake_ecpower_server is a local stand-in for the EC Power
// backend used in development and load testing. It implements the
// endpoints the portal consumes with in-memory state and optional
// latency and failure injection.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeServer struct {
	start    time.Time
	latency  time.Duration
	failRate float64
	email    string
	password string

	mu          sync.Mutex
	facilitySeq int64
	customerSeq int64
	facilities  map[string]map[string]any
	byUser      map[string][]string
	customers   map[string]map[string]any
}

func main() {
	addr := getenvDefault("FAKE_ECPOWER_ADDR", ":18080")
	latencyMs := getenvIntDefault("FAKE_ECPOWER_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_ECPOWER_FAIL_RATE", 0)

	srv := &fakeServer{
		start:      time.Now().UTC(),
		latency:    time.Duration(latencyMs) * time.Millisecond,
		failRate:   failRate,
		email:      getenvDefault("FAKE_ECPOWER_EMAIL", "demo@example.com"),
		password:   getenvDefault("FAKE_ECPOWER_PASSWORD", "demo-password"),
		facilities: make(map[string]map[string]any),
		byUser:     make(map[string][]string),
		customers:  make(map[string]map[string]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/auth/login", srv.handleLogin)
	mux.HandleFunc("/api/auth/change-password", srv.handleChangePassword)
	mux.HandleFunc("/api/create-facility", srv.handleCreateFacility)
	mux.HandleFunc("/api/update-facility", srv.handleUpdateFacility)
	mux.HandleFunc("/api/get-user-facility", srv.handleGetUserFacilities)
	mux.HandleFunc("/api/create-or-update-customer", srv.handleSaveCustomer)
	mux.HandleFunc("/api/get-customer", srv.handleGetCustomer)
	mux.HandleFunc("/api/facility-statistics", srv.handleStatistics)
	mux.HandleFunc("/api/facility-service-log", srv.handleServiceLog)

	log.Printf("fake ecpower server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, srv.wrap(mux)))
}

func (s *fakeServer) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if s.failRate > 0 && rand.Float64() < s.failRate {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *fakeServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "uptime": time.Since(s.start).String()})
}

func (s *fakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Email != s.email || req.Password != s.password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"authToken": "fake-auth-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		"idToken":   "fake-id-token",
		"userId":    "user-demo-001",
	})
}

func (s *fakeServer) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.OldPassword != s.password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.password = req.NewPassword
	w.WriteHeader(http.StatusOK)
}

func (s *fakeServer) handleCreateFacility(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.facilitySeq++
	id := fmt.Sprintf("facility-%04d", s.facilitySeq)
	payload["id"] = id
	payload["status"] = "operational"
	payload["createdAt"] = time.Now().UTC()
	payload["updatedAt"] = time.Now().UTC()
	s.facilities[id] = payload
	s.byUser["user-demo-001"] = append(s.byUser["user-demo-001"], id)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, payload)
}

func (s *fakeServer) handleUpdateFacility(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id := r.URL.Query().Get("id")
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.facilities[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	for key, value := range payload {
		existing[key] = value
	}
	existing["id"] = id
	existing["updatedAt"] = time.Now().UTC()
	writeJSON(w, http.StatusOK, existing)
}

func (s *fakeServer) handleGetUserFacilities(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	userID := r.URL.Query().Get("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byUser[userID]
	if len(ids) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	facilities := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		facilities = append(facilities, s.facilities[id])
	}
	writeJSON(w, http.StatusOK, facilities)
}

func (s *fakeServer) handleSaveCustomer(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	var profile map[string]any
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	id, _ := profile["customerId"].(string)
	if id == "" {
		s.customerSeq++
		id = fmt.Sprintf("customer-%04d", s.customerSeq)
	}
	profile["customerId"] = id
	s.customers[id] = profile
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"customerId": id})
}

func (s *fakeServer) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Single demo user; return the first stored profile.
	for _, profile := range s.customers {
		writeJSON(w, http.StatusOK, profile)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (s *fakeServer) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	_, ok := s.facilities[id]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	now := time.Now().UTC()
	monthly := make(map[string]float64, 12)
	for _, month := range []string{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	} {
		monthly[month] = 50 + rand.Float64()*50
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facilityId":        id,
		"periodStart":       now.AddDate(-1, 0, 0),
		"periodEnd":         now,
		"producedEnergyKWh": 12000 + rand.Float64()*2000,
		"operatingHours":    900 + rand.Float64()*100,
		"co2SavingsKg":      3500 + rand.Float64()*500,
		"monthlyHours":      monthly,
	})
}

func (s *fakeServer) handleServiceLog(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id := r.URL.Query().Get("id")
	now := time.Now().UTC()
	entries := make([]map[string]any, 0, 12)
	for i := 0; i < 12; i++ {
		severity := "info"
		if i%5 == 0 {
			severity = "warning"
		}
		entries = append(entries, map[string]any{
			"id":         fmt.Sprintf("log-%s-%03d", id, i),
			"facilityId": id,
			"message":    fmt.Sprintf("scheduled check %d completed", i),
			"severity":   severity,
			"occurredAt": now.AddDate(0, 0, -i*7),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *fakeServer) authed(w http.ResponseWriter, r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer fake-auth-") {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
