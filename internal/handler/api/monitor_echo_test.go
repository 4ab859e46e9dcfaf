package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "SignalPulse/internal/domain/models"
	"SignalPulse/internal/repository"
	"SignalPulse/internal/service/arbiter"
	"SignalPulse/internal/service/audio"
	"SignalPulse/internal/service/cache"
	"SignalPulse/internal/service/lock"
	"SignalPulse/internal/service/notify"
	"SignalPulse/internal/usecase"
	"SignalPulse/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	e       *echo.Echo
	store   *repository.MemorySignalStore
	engine  *usecase.Engine
	history *repository.MemoryFireHistory
}

func newFixture(t *testing.T, signals []models.Signal) *fixture {
	t.Helper()
	now := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := repository.NewMemorySignalStore(signals, 0)
	rec := metrics.New(prometheus.NewRegistry())
	history := repository.NewMemoryFireHistory(8)
	storageLock := lock.NewStorageLock(time.Millisecond, time.Second)
	engine := usecase.NewEngine(
		arbiter.New(nil),
		lock.NewKeyLocks(lock.WithClock(clock)),
		cache.NewSignalCache(store, rec, nil),
		usecase.NewAtomicUpdater(store, storageLock, nil),
		notify.NewLogDispatcher("Signal", nil),
		audio.NewLogPlayer(nil),
		history,
		rec,
		nil,
		usecase.WithEngineClock(clock),
		usecase.WithTickInterval(10*time.Millisecond),
	)
	admin := usecase.NewSignalAdmin(store, storageLock, engine, nil)

	e := echo.New()
	NewMonitorEchoHandler(nil, engine, admin, history).RegisterRoutes(e)
	t.Cleanup(func() {
		for _, id := range engine.Status().RunningInstances {
			engine.Stop(id)
		}
		_ = store.Close()
	})
	return &fixture{e: e, store: store, engine: engine, history: history}
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestSignalAdministration(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodPost, "/api/signals", `{"asset":"EURUSD","timestamp":"09:15","direction":"CALL"}`)
	require.Equal(t, http.StatusCreated, code)

	code, env := f.do(t, http.MethodPost, "/api/signals", `{"asset":"EURUSD","timestamp":"09:15","direction":"CALL"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(env.Data), "ERR_CONFLICT")

	code, env = f.do(t, http.MethodPost, "/api/signals", `{"asset":"EURUSD","timestamp":"9h15","direction":"CALL"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(env.Data), "timestamp")

	code, env = f.do(t, http.MethodGet, "/api/signals", "")
	require.Equal(t, http.StatusOK, code)
	var list signalsResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Signals, 1)
	assert.Equal(t, "1m", list.Signals[0].Timeframe)
	assert.False(t, list.Signals[0].Triggered)

	code, _ = f.do(t, http.MethodDelete, "/api/signals?timestamp=09:15&asset=EURUSD&direction=CALL", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = f.do(t, http.MethodDelete, "/api/signals?timestamp=09:15&asset=EURUSD&direction=CALL", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReplaceSignalsKeepsTriggeredState(t *testing.T) {
	f := newFixture(t, []models.Signal{
		{Timeframe: "1m", Asset: "EURUSD", Timestamp: "09:15", Direction: "CALL", Triggered: true},
		{Timeframe: "1m", Asset: "GBPUSD", Timestamp: "10:00", Direction: "PUT"},
	})

	code, env := f.do(t, http.MethodPut, "/api/signals", `{"signals":[
		{"asset":"EURUSD","timestamp":"09:15","direction":"CALL"},
		{"asset":"USDJPY","timestamp":"11:30","direction":"PUT","timeframe":"5m"}
	]}`)
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Rows  []models.Signal `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.EqualValues(t, 2, out.Total)
	assert.True(t, out.Rows[0].Triggered)
	assert.Equal(t, "5m", out.Rows[1].Timeframe)
	assert.False(t, out.Rows[1].Triggered)
}

func TestSetAntidelayClamps(t *testing.T) {
	f := newFixture(t, nil)

	code, env := f.do(t, http.MethodPut, "/api/antidelay", `{"seconds":150}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"antidelay_seconds":99}`, string(env.Data))

	got, err := f.store.LoadAntidelaySeconds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, got)

	code, _ = f.do(t, http.MethodPut, "/api/antidelay", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWakeFiresDueSignalAndRecordsHistory(t *testing.T) {
	f := newFixture(t, []models.Signal{{Timeframe: "1m", Asset: "EURUSD", Timestamp: "14:30", Direction: "CALL"}})

	code, env := f.do(t, http.MethodPost, "/api/wake", "")
	require.Equal(t, http.StatusOK, code)
	var report models.TickReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.True(t, strings.HasPrefix(report.InstanceID, "wake-"))
	assert.Equal(t, []string{"14:30|EURUSD|CALL"}, report.Fired)

	code, env = f.do(t, http.MethodGet, "/api/fires?limit=10", "")
	require.Equal(t, http.StatusOK, code)
	var fires struct {
		Rows  []models.FireEvent `json:"rows"`
		Total int64              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fires))
	require.EqualValues(t, 1, fires.Total)
	assert.Equal(t, "14:30|EURUSD|CALL", fires.Rows[0].Key)
	assert.True(t, fires.Rows[0].Persisted)

	code, env = f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, code)
	var status models.EngineStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.IsActive)
	assert.EqualValues(t, 1, status.Metrics.SignalFires)
}

func TestMonitorOwnership(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodPost, "/api/monitors/foreground/start", "")
	require.Equal(t, http.StatusAccepted, code)

	code, env := f.do(t, http.MethodPost, "/api/monitors/background/start", "")
	assert.Equal(t, http.StatusConflict, code)
	var resp monitorResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.Running)
	assert.Equal(t, "foreground", resp.OwnerID)

	code, env = f.do(t, http.MethodPost, "/api/monitors/background/wake", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(env.Data), "foreground")

	code, _ = f.do(t, http.MethodPost, "/api/monitors/foreground/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, f.engine.Running("foreground"))

	code, _ = f.do(t, http.MethodPost, "/api/monitors/background/start", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "background", f.engine.Status().OwnerID)
}

func TestFiresRejectsOutOfRangeLimit(t *testing.T) {
	f := newFixture(t, nil)

	code, _ := f.do(t, http.MethodGet, "/api/fires?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := f.do(t, http.MethodGet, "/api/fires", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"rows":[],"total":0}`, string(env.Data))
}
