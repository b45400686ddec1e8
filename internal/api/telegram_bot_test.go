package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
	"github.com/abelzeko/aquaguard/internal/integration"
	"github.com/abelzeko/aquaguard/internal/repository"
	"github.com/abelzeko/aquaguard/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testChatID = int64(42)

// fakeSender records everything the bot sends
type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func newTestBot(t *testing.T, routes map[string]http.HandlerFunc) (*TelegramBot, *fakeSender) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}`))
	}))
	t.Cleanup(server.Close)

	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	backend := integration.NewBackend(integration.ClientOptions{BaseURL: server.URL}, zap.NewNop())
	uc := usecases.NewDashboardUseCase(backend, store, nil, zap.NewNop())
	sender := &fakeSender{}
	bot := newTelegramBot(sender, uc, zap.NewNop())
	t.Cleanup(bot.shutdown)
	return bot, sender
}

// send delivers text to the bot as if typed in the test chat
func send(bot *TelegramBot, text string) {
	message := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChatID},
		From: &tgbotapi.User{UserName: "tester"},
	}
	if len(text) > 0 && text[0] == '/' {
		length := len(text)
		for i, r := range text {
			if r == ' ' {
				length = i
				break
			}
		}
		message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	bot.handleMessage(context.Background(), tgbotapi.Update{Message: message})
}

func jsonHandler(v interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	bot, sender := newTestBot(t, nil)

	send(bot, "/start")
	assert.Contains(t, sender.last(), "Welcome to AquaGuard")

	send(bot, "/sensors")
	assert.Contains(t, sender.last(), "Please sign in first")

	send(bot, "how is my water?")
	assert.Contains(t, sender.last(), "Please sign in first")
}

func TestLoginLogoutAndRoleGating(t *testing.T) {
	bot, sender := newTestBot(t, nil)

	send(bot, "/login user a@b.com anything")
	assert.Contains(t, sender.last(), "household dashboard")

	send(bot, "/whoami")
	assert.Equal(t, "Signed in as a <a@b.com> with role user.", sender.last())

	send(bot, "/reports")
	assert.Contains(t, sender.last(), "not available for your role")

	send(bot, "/complaints")
	assert.Equal(t, "You have not filed any complaints.", sender.last())

	send(bot, "/logout")
	assert.Equal(t, "You have been signed out.", sender.last())

	send(bot, "/complaints")
	assert.Contains(t, sender.last(), "Please sign in first")

	send(bot, "/login government gov@city.org pw")
	assert.Contains(t, sender.last(), "government dashboard")

	send(bot, "/reports")
	assert.Contains(t, sender.last(), "#101 Downtown - Block A")

	send(bot, "/complain s1 Odor | smells")
	assert.Contains(t, sender.last(), "not available for your role")
}

func TestLoginValidationMessages(t *testing.T) {
	bot, sender := newTestBot(t, nil)

	send(bot, "/login user not-an-email pw")
	assert.Equal(t, "Please enter a valid email", sender.last())

	send(bot, "/login admin a@b.com pw")
	assert.Contains(t, sender.last(), "unknown role")

	send(bot, "/login user")
	assert.Contains(t, sender.last(), "Usage: /login")
}

func TestComplaintFlow(t *testing.T) {
	bot, sender := newTestBot(t, nil)
	send(bot, "/login user a@b.com pw")

	send(bot, "/complain s1 Discolored water | Brown water from the kitchen tap")
	assert.Equal(t, `📝 Complaint "Discolored water" submitted.`, sender.last())

	send(bot, "/complaints")
	assert.Contains(t, sender.last(), "Discolored water [submitted]")
}

func TestVerifyFlow(t *testing.T) {
	bot, sender := newTestBot(t, nil)
	send(bot, "/login government gov@city.org pw")

	send(bot, "/verify 103 0.4 2026-02-21 within limits")
	assert.Equal(t, "✅ Report #103 (Industrial - Sector C) verified.", sender.last())

	send(bot, "/verify 103 0.4 2026-02-21")
	assert.Contains(t, sender.last(), "already verified")

	send(bot, "/verify abc 0.4 2026-02-21")
	assert.Equal(t, "Report id must be a number.", sender.last())
}

func TestAlertsAndAcknowledge(t *testing.T) {
	acked := make(chan string, 1)
	bot, sender := newTestBot(t, map[string]http.HandlerFunc{
		"GET /api/alerts": jsonHandler([]entities.Alert{
			{ID: "1", SensorID: "s1", AlertType: entities.AlertPHHigh, Severity: entities.SeverityHigh, Message: "pH 9.2"},
			{ID: "2", SensorID: "s1", AlertType: entities.AlertTDSHigh, Severity: entities.SeverityMedium, Message: "TDS 610"},
		}),
		"PUT /api/alerts/1/acknowledge": func(w http.ResponseWriter, r *http.Request) {
			acked <- "1"
			jsonHandler(map[string]string{"message": "Alert acknowledged successfully"})(w, r)
		},
	})
	send(bot, "/login user a@b.com pw")

	send(bot, "/alerts")
	assert.Contains(t, sender.last(), "2 pending of 2")

	send(bot, "/ack 1")
	assert.Equal(t, "✅ Alert 1 acknowledged.", sender.last())
	assert.Equal(t, "1", <-acked)

	chat := bot.chat(testChatID)
	require.Len(t, chat.alerts, 2)
	assert.True(t, chat.alerts[0].IsAcknowledged)
	assert.False(t, chat.alerts[1].IsAcknowledged)

	send(bot, "/ack 9")
	assert.Contains(t, sender.last(), "Could not acknowledge the alert")
}

func TestAddSensor(t *testing.T) {
	bot, sender := newTestBot(t, map[string]http.HandlerFunc{
		"POST /api/sensors": func(w http.ResponseWriter, r *http.Request) {
			var in entities.SensorCreate
			json.NewDecoder(r.Body).Decode(&in)
			jsonHandler(entities.Sensor{ID: "s9", Name: in.Name, Location: in.Location, DeviceType: in.DeviceType})(w, r)
		},
	})
	send(bot, "/login user a@b.com pw")

	send(bot, "/addsensor kitchen_tap Kitchen Tap | Ground floor")
	assert.Equal(t, "✅ Sensor Kitchen Tap registered with id s9.", sender.last())

	send(bot, "/addsensor bathtub Tub | Upstairs")
	assert.Contains(t, sender.last(), "unknown device type")

	send(bot, "/addsensor kitchen_tap")
	assert.Contains(t, sender.last(), "Usage: /addsensor")
}

func TestExportSendsDocument(t *testing.T) {
	bot, sender := newTestBot(t, nil)
	send(bot, "/login government gov@city.org pw")

	send(bot, "/export monthly")

	sender.mu.Lock()
	defer sender.mu.Unlock()
	doc, ok := sender.sent[len(sender.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok, "expected a document")
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Contains(t, file.Name, "aquaguard-monthly-")
	assert.NotEmpty(t, file.Bytes)
}

func TestWatchPushesNewAlerts(t *testing.T) {
	var mu sync.Mutex
	alerts := []entities.Alert{{ID: "1", SensorID: "s1", AlertType: entities.AlertPHLow, Severity: entities.SeverityHigh, Message: "pH 5.9"}}
	bot, sender := newTestBot(t, map[string]http.HandlerFunc{
		"GET /api/alerts": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			jsonHandler(alerts)(w, r)
		},
	})
	send(bot, "/login user a@b.com pw")

	send(bot, "/watch")
	assert.Contains(t, sender.last(), "Watching alerts")

	chat := bot.chat(testChatID)
	require.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		return chat.primed
	}, 2*time.Second, 10*time.Millisecond)

	// existing alerts are not pushed
	for _, text := range sender.texts() {
		assert.NotContains(t, text, "New alerts")
	}

	mu.Lock()
	alerts = append(alerts, entities.Alert{ID: "2", SensorID: "s1", AlertType: entities.AlertTurbidityHigh, Severity: entities.SeverityCritical, Message: "12 NTU"})
	mu.Unlock()

	// the next poll result carries one new alert
	fresh := chat.newAlerts(alerts)
	require.Len(t, fresh, 1)
	assert.Equal(t, "2", fresh[0].ID)
	assert.Empty(t, chat.newAlerts(alerts))

	send(bot, "/unwatch")
	assert.Equal(t, "Stopped watching alerts.", sender.last())
	send(bot, "/unwatch")
	assert.Equal(t, "Alerts were not being watched.", sender.last())
}

func TestSensorCommands(t *testing.T) {
	bot, sender := newTestBot(t, map[string]http.HandlerFunc{
		"GET /api/sensors": jsonHandler([]entities.Sensor{
			{ID: "s1", Name: "Overhead Tank", Location: "Roof", DeviceType: entities.DeviceOverheadTank, Status: entities.SensorActive},
		}),
		"GET /api/sensors/s1/stats": jsonHandler(entities.SensorStats{SensorID: "s1", ReadingCount: 4, AvgPH: 7.2, AvgTDS: 300, AvgTurbidity: 2}),
		"GET /api/alerts/sensor/s1": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			jsonHandler([]entities.Alert{{ID: "a1", SensorID: "s1", AlertType: entities.AlertTDSHigh, Severity: entities.SeverityMedium, Message: "TDS 620 ppm"}})(w, r)
		},
		"GET /api/readings/sensor/s1/range": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "6", r.URL.Query().Get("hours"))
			jsonHandler([]entities.Reading{{ID: "r1", SensorID: "s1", PHLevel: 7.2, TDSLevel: 300, Turbidity: 2, QualityStatus: entities.QualityGood, CreatedAt: "2026-02-21T12:00:00"}})(w, r)
		},
	})
	send(bot, "/login user a@b.com pw")

	send(bot, "/sensors")
	assert.Contains(t, sender.last(), "Overhead Tank [s1]")

	send(bot, "/sensor overhead tank")
	assert.Contains(t, sender.last(), "Overhead Tank (s1)")
	assert.Contains(t, sender.last(), "4 readings")
	assert.Contains(t, sender.last(), "Recent alerts (1 pending)")
	assert.Contains(t, sender.last(), "TDS 620 ppm")

	send(bot, "/readings s1 6")
	assert.Contains(t, sender.last(), "Overhead Tank, last 6h")
	assert.Contains(t, sender.last(), "02-21 12:00")

	send(bot, "/sensor nowhere")
	assert.Contains(t, sender.last(), "Not found")
}

func TestSensorAndHours(t *testing.T) {
	key, hours := sensorAndHours("Kitchen Tap 12")
	assert.Equal(t, "Kitchen Tap", key)
	assert.Equal(t, 12, hours)

	key, hours = sensorAndHours("s1")
	assert.Equal(t, "s1", key)
	assert.Equal(t, integration.DefaultHours, hours)
}

func TestDashboardCombinesStatsHealthAndAnomalies(t *testing.T) {
	bot, sender := newTestBot(t, map[string]http.HandlerFunc{
		"GET /api/stats":  jsonHandler(entities.SystemStats{TotalSensors: 3, TotalReadings: 120, TotalAnomalies: 4, ActiveAlerts: 2}),
		"GET /api/health": jsonHandler(entities.Health{Status: entities.HealthHealthy}),
		"GET /api/anomalies/all-stats": jsonHandler(map[string]interface{}{
			"sensors": []entities.AnomalyStats{
				{SensorID: "s1", SensorName: "Kitchen Tap", TotalReadings: 40, AnomaliesDetected: 4, AnomalyPercentage: 10},
			},
		}),
	})
	send(bot, "/login user a@b.com pw")

	send(bot, "/dashboard")
	reply := sender.last()
	assert.Contains(t, reply, "📡 Sensors: 3")
	assert.Contains(t, reply, "🟢 healthy")
	assert.Contains(t, reply, "Kitchen Tap: 4 of 40 readings (10.0%)")
}

func TestDashboardDegradesWhenBackendIsDown(t *testing.T) {
	bot, sender := newTestBot(t, nil)
	send(bot, "/login user a@b.com pw")

	send(bot, "/dashboard")
	assert.Contains(t, sender.last(), "📡 Sensors: 0")
	assert.Contains(t, sender.last(), "🔴 unreachable")
	assert.Contains(t, sender.last(), "Statistics are unavailable")
	assert.Contains(t, sender.last(), "No anomalies in the last 24h.")
}

func TestDashboardKeepsLastGoodStatsWhenRefreshFails(t *testing.T) {
	var calls atomic.Int32
	bot, sender := newTestBot(t, map[string]http.HandlerFunc{
		"GET /api/stats": func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				jsonHandler(entities.SystemStats{TotalSensors: 4, TotalReadings: 90})(w, r)
				return
			}
			jsonHandler(map[string]string{"error": "firestore unavailable"})(w, r)
		},
		"GET /api/health": jsonHandler(entities.Health{Status: entities.HealthHealthy}),
	})
	send(bot, "/login government g@city.org pw")

	bot.stats.Activate(struct{}{})
	require.Eventually(t, func() bool { return !bot.stats.Snapshot().UpdatedAt.IsZero() }, 2*time.Second, 5*time.Millisecond)
	send(bot, "/dashboard")
	assert.Contains(t, sender.last(), "📡 Sensors: 4")
	assert.NotContains(t, sender.last(), "refresh failed")

	// the restart fetches immediately and gets the error body
	bot.stats.Deactivate()
	bot.stats.Activate(struct{}{})
	require.Eventually(t, func() bool { return bot.stats.Snapshot().Err != nil }, 2*time.Second, 5*time.Millisecond)

	send(bot, "/dashboard")
	assert.Contains(t, sender.last(), "📡 Sensors: 4")
	assert.Contains(t, sender.last(), "Last refresh failed, showing data from")
	assert.Equal(t, int32(2), calls.Load())
}
