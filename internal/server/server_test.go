package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/gradesim/gradesim/internal/cache"
	"github.com/gradesim/gradesim/internal/engine"
	"github.com/gradesim/gradesim/internal/risk"
	"github.com/gradesim/gradesim/internal/state"
	"github.com/gradesim/gradesim/internal/testutil"
)

type fakeWarehouse struct {
	rows          []engine.FeatureRow
	stats         []engine.CourseStat
	err           error
	saveErr       error
	saved         []engine.Prediction
	interventions []InterventionRequest
	lastLimit     int
	courseCalls   int
}

func (f *fakeWarehouse) Ping(context.Context) error { return f.err }

func (f *fakeWarehouse) StudentFeatures(_ context.Context, limit int) ([]engine.FeatureRow, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[:min(limit, len(f.rows))], nil
}

func (f *fakeWarehouse) CourseStats(context.Context) ([]engine.CourseStat, error) {
	f.courseCalls++
	return f.stats, f.err
}

func (f *fakeWarehouse) FeatureRows(_ context.Context, ids []int) ([]engine.FeatureRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(ids) == 0 {
		return f.rows, nil
	}
	var out []engine.FeatureRow
	for _, r := range f.rows {
		for _, id := range ids {
			if r.EnrollID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeWarehouse) SavePredictions(_ context.Context, preds []engine.Prediction) error {
	f.saved = preds
	return f.saveErr
}

func (f *fakeWarehouse) LogIntervention(_ context.Context, id int, typ, notes string) error {
	if f.err != nil {
		return f.err
	}
	for _, r := range f.rows {
		if r.EnrollID == id {
			f.interventions = append(f.interventions, InterventionRequest{EnrollID: id, Type: typ, Notes: notes})
			return nil
		}
	}
	return fmt.Errorf("enrollment %d: %w", id, engine.ErrNotFound)
}

type fakeUsers struct {
	users map[string]*state.User
}

func (f *fakeUsers) GetOrCreateUser(_ context.Context, email string) (*state.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	u := &state.User{ID: int64(len(f.users) + 1), Email: email, Role: state.DefaultRole}
	f.users[email] = u
	return u, nil
}

type memCache struct {
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string, dest any) error {
	b, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Close() error { return nil }

func testRows() []engine.FeatureRow {
	return []engine.FeatureRow{
		{StudentID: 1, Name: "Ada", EnrollID: 1, EntryGPA: 8.1, AttendancePct: 0.9, AvgAssessment: 72},
		{StudentID: 1, Name: "Ada", EnrollID: 2, EntryGPA: 8.1, AttendancePct: 0.2, AvgAssessment: 30},
		{StudentID: 2, Name: "Bo", EnrollID: 3, EntryGPA: 5.0, AttendancePct: 0.85, AvgAssessment: 64},
	}
}

// attendanceModel flags enrollments whose attendance is below 0.5.
func attendanceModel() *risk.Model {
	return &risk.Model{
		Features:  []string{"entry_gpa", "attendance_pct", "avg_assessment"},
		Weights:   []float64{0, -10, 0},
		Bias:      5,
		Means:     []float64{0, 0, 0},
		Stds:      []float64{1, 1, 1},
		Threshold: 0.5,
	}
}

func newTestServer(t *testing.T, wh *fakeWarehouse, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Warehouse:     wh,
		Users:         &fakeUsers{users: map[string]*state.User{}},
		SessionSecret: "test-secret-key-32-bytes-long!!",
		Logger:        testutil.NewTestLogger(t),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewServer(cfg)
}

func do(t *testing.T, h http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeWarehouse{})
	rec := do(t, s.Handler(), http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	h := newTestServer(t, &fakeWarehouse{}).Handler()
	rec := do(t, h, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := &fakeWarehouse{err: fmt.Errorf("ping: %w: %w", engine.ErrUnavailable, errors.New("refused"))}
	rec = do(t, newTestServer(t, down).Handler(), http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStudents(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
		wantRows  int
	}{
		{name: "default limit", query: "", wantCode: http.StatusOK, wantLimit: MaxStudents, wantRows: 3},
		{name: "explicit limit", query: "?limit=2", wantCode: http.StatusOK, wantLimit: 2, wantRows: 2},
		{name: "limit capped", query: "?limit=5000", wantCode: http.StatusOK, wantLimit: MaxStudents, wantRows: 3},
		{name: "non numeric", query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "zero", query: "?limit=0", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := &fakeWarehouse{rows: testRows()}
			s := newTestServer(t, wh)
			rec := do(t, s.Handler(), http.MethodGet, "/api/students"+tt.query, "")

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, "invalid limit", decodeError(t, rec))
				return
			}
			assert.Equal(t, tt.wantLimit, wh.lastLimit)
			var rows []engine.FeatureRow
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
			assert.Len(t, rows, tt.wantRows)
		})
	}
}

func TestStoreUnavailable(t *testing.T) {
	wh := &fakeWarehouse{err: fmt.Errorf("student features: %w: %w", engine.ErrUnavailable, errors.New("dial tcp: refused"))}
	s := newTestServer(t, wh, func(c *Config) { c.Cache = &memCache{data: map[string][]byte{}} })
	s.SetModel(attendanceModel())
	h := s.Handler()

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/students", ""},
		{http.MethodGet, "/api/courses", ""},
		{http.MethodPost, "/api/predict", ""},
		{http.MethodPost, "/api/intervention", `{"enroll_id": 1}`},
	} {
		rec := do(t, h, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
		assert.Equal(t, "service unavailable", decodeError(t, rec), tc.path)
	}
}

func TestCourses_Cached(t *testing.T) {
	wh := &fakeWarehouse{stats: []engine.CourseStat{
		{CourseID: 1, Code: "CSE100", Title: "Course 1", Enrollments: 10, AvgFinalScore: 61.5, RiskPct: 20},
	}}
	mc := &memCache{data: map[string][]byte{}}
	s := newTestServer(t, wh, func(c *Config) { c.Cache = mc })
	h := s.Handler()

	for range 2 {
		rec := do(t, h, http.MethodGet, "/api/courses", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var stats []engine.CourseStat
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, wh.stats, stats)
	}
	assert.Equal(t, 1, wh.courseCalls)
	assert.Contains(t, mc.data, cache.KeyCourseStats)
}

func TestCourses_NoCache(t *testing.T) {
	wh := &fakeWarehouse{stats: []engine.CourseStat{}}
	h := newTestServer(t, wh).Handler()

	do(t, h, http.MethodGet, "/api/courses", "")
	rec := do(t, h, http.MethodGet, "/api/courses", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 2, wh.courseCalls)
}

func TestPredict_NoModel(t *testing.T) {
	s := newTestServer(t, &fakeWarehouse{rows: testRows()})
	rec := do(t, s.Handler(), http.MethodPost, "/api/predict", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "model not available on server", decodeError(t, rec))
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []int
	}{
		{name: "empty body scores all", body: "", wantIDs: []int{1, 2, 3}},
		{name: "empty object scores all", body: `{}`, wantIDs: []int{1, 2, 3}},
		{name: "selected ids", body: `{"enroll_ids":[2]}`, wantIDs: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := &fakeWarehouse{rows: testRows()}
			s := newTestServer(t, wh)
			s.SetModel(attendanceModel())

			rec := do(t, s.Handler(), http.MethodPost, "/api/predict", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var out []PredictedRow
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			require.Len(t, out, len(tt.wantIDs))
			for i, row := range out {
				assert.Equal(t, tt.wantIDs[i], row.EnrollID)
				assert.Equal(t, row.AttendancePct < 0.5, row.PredictedRisk)
			}
			assert.Len(t, wh.saved, len(tt.wantIDs))
		})
	}
}

func TestPredict_NoRows(t *testing.T) {
	wh := &fakeWarehouse{rows: testRows()}
	s := newTestServer(t, wh)
	s.SetModel(attendanceModel())

	rec := do(t, s.Handler(), http.MethodPost, "/api/predict", `{"enroll_ids":[99]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Nil(t, wh.saved)
}

func TestPredict_SaveFailureIsNotFatal(t *testing.T) {
	wh := &fakeWarehouse{rows: testRows(), saveErr: errors.New("read-only")}
	s := newTestServer(t, wh)
	s.SetModel(attendanceModel())

	rec := do(t, s.Handler(), http.MethodPost, "/api/predict", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredict_BadBody(t *testing.T) {
	s := newTestServer(t, &fakeWarehouse{rows: testRows()})
	s.SetModel(attendanceModel())

	rec := do(t, s.Handler(), http.MethodPost, "/api/predict", `{"enroll_ids":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntervention(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "logged", body: `{"enroll_id":1,"type":"mentoring","notes":"weekly"}`, wantCode: http.StatusOK},
		{name: "missing id", body: `{"type":"tutoring"}`, wantCode: http.StatusBadRequest, wantErr: "missing enroll_id"},
		{name: "empty body", body: "", wantCode: http.StatusBadRequest, wantErr: "missing enroll_id"},
		{name: "bad json", body: `{"enroll_id":`, wantCode: http.StatusBadRequest, wantErr: "invalid request body"},
		{name: "unknown enrollment", body: `{"enroll_id":42}`, wantCode: http.StatusNotFound, wantErr: "enrollment not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := &fakeWarehouse{rows: testRows()}
			rec := do(t, newTestServer(t, wh).Handler(), http.MethodPost, "/api/intervention", tt.body)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, rec))
				return
			}
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
			require.Len(t, wh.interventions, 1)
			assert.Equal(t, "mentoring", wh.interventions[0].Type)
		})
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeWarehouse{}, func(c *Config) {
		c.CORSOrigins = []string{"http://localhost:8080"}
	}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/students", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMe_NotLoggedIn(t *testing.T) {
	rec := do(t, newTestServer(t, &fakeWarehouse{}).Handler(), http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "not logged in", decodeError(t, rec))
}

func TestLogin_NotConfigured(t *testing.T) {
	h := newTestServer(t, &fakeWarehouse{}).Handler()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/login/google", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/auth/callback?code=x", "").Code)
}

// fakeGoogle serves the token and userinfo endpoints.
func fakeGoogle(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"email":%q}`, email)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newOAuthServer(t *testing.T, google *httptest.Server, users *fakeUsers) *Server {
	t.Helper()
	return newTestServer(t, &fakeWarehouse{}, func(c *Config) {
		c.Users = users
		c.FrontendURL = "http://frontend.test/"
		c.UserInfoURL = google.URL + "/userinfo"
		c.OAuth = &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://api.test/auth/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   google.URL + "/auth",
				TokenURL:  google.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	})
}

// login runs the redirect leg and returns the state and session cookie.
func login(t *testing.T, h http.Handler) (string, []*http.Cookie) {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/login/google", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth", loc.Path)
	oauthState := loc.Query().Get("state")
	require.NotEmpty(t, oauthState)
	return oauthState, rec.Result().Cookies()
}

func TestOAuthFlow(t *testing.T) {
	google := fakeGoogle(t, "new.student@example.com")
	users := &fakeUsers{users: map[string]*state.User{}}
	h := newOAuthServer(t, google, users).Handler()

	oauthState, cookies := login(t, h)

	rec := do(t, h, http.MethodGet, "/auth/callback?code=good-code&state="+oauthState, "", cookies...)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://frontend.test/", rec.Header().Get("Location"))
	require.Contains(t, users.users, "new.student@example.com")

	rec = do(t, h, http.MethodGet, "/auth/me", "", rec.Result().Cookies()...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"new.student@example.com","role":"student"}`, rec.Body.String())
}

func TestOAuthCallback_Failures(t *testing.T) {
	google := fakeGoogle(t, "x@example.com")
	h := newOAuthServer(t, google, &fakeUsers{users: map[string]*state.User{}}).Handler()

	// No code restarts the login.
	rec := do(t, h, http.MethodGet, "/auth/callback", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/google", rec.Header().Get("Location"))

	oauthState, cookies := login(t, h)

	rec = do(t, h, http.MethodGet, "/auth/callback?code=good-code&state=wrong", "", cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid oauth state", decodeError(t, rec))

	rec = do(t, h, http.MethodGet, "/auth/callback?code=bad-code&state="+oauthState, "", cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Google login failed", decodeError(t, rec))
}

func TestModelReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.json")
	s := newTestServer(t, &fakeWarehouse{}, func(c *Config) { c.ModelPath = path })
	assert.Nil(t, s.Model(), "missing artifact leaves no model")

	m := attendanceModel()
	require.NoError(t, m.Save(path))
	s.reloadModel()
	require.NotNil(t, s.Model())
	assert.Equal(t, m.Bias, s.Model().Bias)
}

func TestWatchModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.json")
	require.NoError(t, attendanceModel().Save(path))

	s := newTestServer(t, &fakeWarehouse{}, func(c *Config) { c.ModelPath = path })
	require.NotNil(t, s.Model())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watchModel(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := attendanceModel()
	updated.Bias = 7
	require.NoError(t, updated.Save(path))

	assert.Eventually(t, func() bool {
		m := s.Model()
		return m != nil && m.Bias == 7
	}, 3*time.Second, 20*time.Millisecond)
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(t, &fakeWarehouse{}, func(c *Config) { c.Addr = "127.0.0.1:0" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
