package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"smart_bartender/internal/models"
	"smart_bartender/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockBartender struct {
	pourRes   models.PourResult
	pourErr   error
	refillRes models.RefillResult
	refillErr error
	book      map[string]models.Recipe

	lastPour   string
	lastRefill int
}

func (m *mockBartender) StartPour(name string) (models.PourResult, error) {
	m.lastPour = name
	return m.pourRes, m.pourErr
}
func (m *mockBartender) StartRefill(id int) (models.RefillResult, error) {
	m.lastRefill = id
	return m.refillRes, m.refillErr
}
func (m *mockBartender) ListRecipes() []string {
	names := make([]string, 0, len(m.book))
	for n := range m.book {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
func (m *mockBartender) Recipes() map[string]models.Recipe { return m.book }

type mockManual struct {
	err        error
	lastKind   string
	lastID     int
	lastAction string
	calls      int
}

func (m *mockManual) Switch(kind string, id int, action string) error {
	m.calls++
	m.lastKind, m.lastID, m.lastAction = kind, id, action
	return m.err
}

type mockMonitoring struct {
	status    models.SystemStatus
	err       error
	reservoir models.ReservoirStatus
	resErr    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.SystemStatus, error) {
	return m.status, m.err
}
func (m *mockMonitoring) GetReservoir(ctx context.Context, id int) (models.ReservoirStatus, error) {
	return m.reservoir, m.resErr
}

type mockEventLog struct {
	resp     []models.BarEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.BarEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
