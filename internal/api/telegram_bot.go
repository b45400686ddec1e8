// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abelzeko/aquaguard/internal/entities"
	"github.com/abelzeko/aquaguard/internal/integration"
	"github.com/abelzeko/aquaguard/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Sender is the part of the Telegram API used to reply
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// chatState is the view state of one Telegram chat
type chatState struct {
	session *usecases.Session

	mu      sync.Mutex
	alerts  []entities.Alert
	watcher *usecases.Poller[int, []entities.Alert]
	seen    map[string]bool
	primed  bool
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	sender  Sender
	useCase *usecases.DashboardUseCase
	logger  *zap.Logger
	stats   *usecases.Poller[struct{}, entities.SystemStats]

	mu    sync.Mutex
	chats map[int64]*chatState
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, useCase *usecases.DashboardUseCase, logger *zap.Logger) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	t := newTelegramBot(bot, useCase, logger)
	t.bot = bot
	return t, nil
}

func newTelegramBot(sender Sender, useCase *usecases.DashboardUseCase, logger *zap.Logger) *TelegramBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramBot{
		sender:  sender,
		useCase: useCase,
		logger:  logger,
		stats:   usecases.NewSystemStatsPoller(useCase.Backend(), logger.Named("stats")),
		chats:   make(map[int64]*chatState),
	}
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	t.logger.Info("Authorized on Telegram account", zap.String("username", t.bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("Bot is now listening for messages")

	t.stats.Activate(struct{}{})
	defer t.shutdown()
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			t.logger.Debug("Received message",
				zap.String("username", username(update.Message)),
				zap.Int64("chat_id", update.Message.Chat.ID),
				zap.String("text", update.Message.Text))
			t.handleMessage(ctx, update)
		}
	}
}

// shutdown stops the stats poller and every alert watcher
func (t *TelegramBot) shutdown() {
	t.stats.Deactivate()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, chat := range t.chats {
		chat.stopWatching()
	}
}

func (t *TelegramBot) chat(chatID int64) *chatState {
	t.mu.Lock()
	defer t.mu.Unlock()
	chat, ok := t.chats[chatID]
	if !ok {
		chat = &chatState{session: usecases.NewSession()}
		t.chats[chatID] = chat
	}
	return chat
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	message := update.Message
	var text string
	if message.IsCommand() {
		text = t.handleCommand(ctx, message)
	} else {
		text = t.handleNonCommand(ctx, message)
	}
	if text == "" {
		return
	}
	t.reply(message.Chat.ID, text)
}

func (t *TelegramBot) reply(chatID int64, text string) {
	if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.logger.Error("Error sending message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

const helpText = "Available commands:\n" +
	"/login <user|government> <email> <password> [name] - Sign in\n" +
	"/logout - Sign out\n" +
	"/whoami - Show who is signed in\n" +
	"/dashboard - System overview\n" +
	"/sensors - List sensors\n" +
	"/sensor <id> - Sensor card with 24h averages and recent alerts\n" +
	"/readings <id> [hours] - Latest readings\n" +
	"/anomalies <id> [hours] - Anomaly report\n" +
	"/alerts - Latest alerts\n" +
	"/ack <alert id> - Acknowledge an alert\n" +
	"/addsensor <device_type> <name> | <location> - Register a sensor\n" +
	"/watch, /unwatch - Push new alerts to this chat\n" +
	"/export readings <sensor id> - Readings workbook\n\n" +
	"Household users:\n" +
	"/complain <sensor id> <subject> | <description> - File a complaint\n" +
	"/complaints - Your complaints\n\n" +
	"Government users:\n" +
	"/reports - Household reports\n" +
	"/verify <report id> <chlorine mg/L> <test date YYYY-MM-DD> [notes] - Verify a report\n" +
	"/discrepancies - Disclosed vs official data\n" +
	"/export <monthly|discrepancy|verified> - Download a report"

// roleGated lists the commands reserved for one role
var roleGated = map[string]entities.Role{
	"complain":      entities.RoleUser,
	"complaints":    entities.RoleUser,
	"reports":       entities.RoleGovernment,
	"verify":        entities.RoleGovernment,
	"discrepancies": entities.RoleGovernment,
}

func username(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}

// handleCommand processes commands like /start, /help, etc. and returns the reply
func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) string {
	chat := t.chat(message.Chat.ID)
	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())
	t.logger.Info("Handling command",
		zap.String("command", command),
		zap.String("username", username(message)),
		zap.Int64("chat_id", message.Chat.ID))

	switch command {
	case "start":
		return "Welcome to AquaGuard 💧 Sign in with /login user <email> <password> or /login government <email> <password>. Use /help for more information."
	case "help":
		return helpText
	case "login":
		return t.handleLogin(chat, args)
	}

	user, ok := chat.session.Current()
	if !ok {
		return "Please sign in first with /login. Use /help for details."
	}
	if role, gated := roleGated[command]; gated && !chat.session.HasRole(role) {
		return userMessage(usecases.ErrForbidden)
	}

	switch command {
	case "logout":
		chat.stopWatching()
		chat.session.Logout()
		return "You have been signed out."
	case "whoami":
		return fmt.Sprintf("Signed in as %s <%s> with role %s.", user.Name, user.Email, user.Role)
	case "dashboard":
		return t.handleDashboard(ctx)
	case "sensors":
		sensors, err := t.useCase.Backend().Sensors.GetAllSensors(ctx)
		if err != nil {
			return "Error fetching sensors. Please try again later."
		}
		return t.useCase.FormatSensorList(sensors)
	case "sensor":
		return t.handleSensor(ctx, args)
	case "readings":
		return t.handleReadings(ctx, args)
	case "anomalies":
		return t.handleAnomalies(ctx, args)
	case "alerts":
		return t.handleAlerts(ctx, chat)
	case "ack":
		return t.handleAck(ctx, chat, args)
	case "addsensor":
		return t.handleAddSensor(ctx, args)
	case "watch":
		return t.handleWatch(message.Chat.ID, chat)
	case "unwatch":
		if chat.stopWatching() {
			return "Stopped watching alerts."
		}
		return "Alerts were not being watched."
	case "export":
		return t.handleExport(ctx, message.Chat.ID, user, args)
	case "complain":
		return t.handleComplain(ctx, user, args)
	case "complaints":
		complaints, err := t.useCase.ListComplaints(user)
		if err != nil {
			return userMessage(err)
		}
		return t.useCase.FormatComplaints(complaints)
	case "reports":
		reports, err := t.useCase.ListReports(user)
		if err != nil {
			return userMessage(err)
		}
		return t.useCase.FormatReports(reports)
	case "verify":
		return t.handleVerify(ctx, user, args)
	case "discrepancies":
		months, err := t.useCase.MonthlyDiscrepancies(user)
		if err != nil {
			return userMessage(err)
		}
		areas, err := t.useCase.HouseholdAreas(user)
		if err != nil {
			return userMessage(err)
		}
		return t.useCase.FormatDiscrepancies(months, areas)
	default:
		t.logger.Debug("Received unknown command", zap.String("command", command))
		return "Unknown command. Use /help to see available commands."
	}
}

// handleDashboard shows the polled system snapshot. Before the first poll
// completes it fetches the snapshot directly.
func (t *TelegramBot) handleDashboard(ctx context.Context) string {
	state := t.stats.Snapshot()
	if state.UpdatedAt.IsZero() && state.Err == nil {
		state.Data, state.Err = t.useCase.Backend().System.GetStats(ctx)
	}
	health, _ := t.useCase.Backend().System.HealthCheck(ctx)
	anomalies, _ := t.useCase.Backend().Anomalies.GetAllAnomalyStats(ctx, integration.DefaultHours)

	text := t.useCase.FormatSystemStats(state.Data, health)
	if status := t.useCase.FormatRefreshStatus(state.Err, state.UpdatedAt); status != "" {
		text += "\n" + status
	}
	return text + "\n\n" + t.useCase.FormatAnomalyOverview(anomalies, integration.DefaultHours)
}

func (t *TelegramBot) handleLogin(chat *chatState, args string) string {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "Usage: /login <user|government> <email> <password> [name]"
	}
	form := usecases.LoginForm{
		Email:    fields[1],
		Password: fields[2],
		Name:     strings.Join(fields[3:], " "),
	}
	chat.stopWatching()
	user, err := chat.session.Login(form, entities.Role(strings.ToLower(fields[0])))
	if err != nil {
		return userMessage(err)
	}
	if user.Role == entities.RoleGovernment {
		return fmt.Sprintf("Welcome, %s. You are signed in to the government dashboard. Try /reports or /discrepancies.", user.Name)
	}
	return fmt.Sprintf("Welcome, %s. You are signed in to your household dashboard. Try /sensors or /alerts.", user.Name)
}

func (t *TelegramBot) handleSensor(ctx context.Context, args string) string {
	if args == "" {
		return "Please specify a sensor. Example: /sensor Kitchen Tap"
	}
	sensor, err := t.useCase.FindSensor(ctx, args)
	if err != nil {
		return userMessage(err)
	}
	stats, _ := t.useCase.Backend().Sensors.GetSensorStats(ctx, sensor.ID, integration.DefaultHours)
	alerts, _ := t.useCase.Backend().Alerts.GetSensorAlerts(ctx, sensor.ID, 5)
	return t.useCase.FormatSensorCard(*sensor, stats) + "\n" + t.useCase.FormatSensorAlerts(alerts)
}

// sensorAndHours parses "<sensor id> [hours]"
func sensorAndHours(args string) (string, int) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", 0
	}
	hours := integration.DefaultHours
	if len(fields) > 1 {
		if h, err := strconv.Atoi(fields[len(fields)-1]); err == nil && h > 0 {
			hours = h
			fields = fields[:len(fields)-1]
		}
	}
	return strings.Join(fields, " "), hours
}

func (t *TelegramBot) handleReadings(ctx context.Context, args string) string {
	key, hours := sensorAndHours(args)
	if key == "" {
		return "Please specify a sensor. Example: /readings s1 6"
	}
	sensor, err := t.useCase.FindSensor(ctx, key)
	if err != nil {
		return userMessage(err)
	}
	readings, err := t.useCase.Backend().Readings.GetReadingsByTimeRange(ctx, sensor.ID, hours)
	if err != nil {
		return "Error fetching readings. Please try again later."
	}
	return fmt.Sprintf("%s, last %dh\n", sensor.Name, hours) + t.useCase.FormatReadings(readings, 10)
}

func (t *TelegramBot) handleAnomalies(ctx context.Context, args string) string {
	key, hours := sensorAndHours(args)
	if key == "" {
		return "Please specify a sensor. Example: /anomalies s1 24"
	}
	sensor, err := t.useCase.FindSensor(ctx, key)
	if err != nil {
		return userMessage(err)
	}
	detection, err := t.useCase.Backend().Anomalies.DetectAnomalies(ctx, sensor.ID, hours)
	if err != nil {
		return "Error running anomaly detection. Please try again later."
	}
	stats, _ := t.useCase.Backend().Anomalies.GetAnomalyStats(ctx, sensor.ID, hours)
	return t.useCase.FormatAnomalies(detection, stats)
}

func (t *TelegramBot) handleAlerts(ctx context.Context, chat *chatState) string {
	alerts, err := t.useCase.Backend().Alerts.GetAlerts(ctx, usecases.DefaultAlertsViewLimit)
	if err != nil {
		return "Error fetching alerts. Please try again later."
	}
	chat.mu.Lock()
	chat.alerts = alerts
	chat.mu.Unlock()
	return t.useCase.FormatAlerts(alerts) + "\n\nUse /ack <id> to acknowledge."
}

func (t *TelegramBot) handleAck(ctx context.Context, chat *chatState, args string) string {
	if args == "" {
		return "Please specify an alert id. Example: /ack 3f2a"
	}
	chat.mu.Lock()
	alerts := chat.alerts
	watcher := chat.watcher
	chat.mu.Unlock()

	updated, err := t.useCase.Acknowledge(ctx, alerts, args)
	if err != nil {
		return "Could not acknowledge the alert: " + userMessage(err)
	}
	chat.mu.Lock()
	chat.alerts = updated
	chat.mu.Unlock()
	if watcher != nil {
		watcher.Update(func(a []entities.Alert) []entities.Alert {
			return entities.AcknowledgeLocal(a, args)
		})
	}
	return fmt.Sprintf("✅ Alert %s acknowledged.", args)
}

func (t *TelegramBot) handleAddSensor(ctx context.Context, args string) string {
	head, location, ok := strings.Cut(args, "|")
	fields := strings.Fields(head)
	if !ok || len(fields) < 2 {
		return "Usage: /addsensor <overhead_tank|underground_tank|kitchen_tap|storage_bucket> <name> | <location>"
	}
	sensor, err := t.useCase.AddSensor(ctx, entities.SensorCreate{
		DeviceType: entities.DeviceType(fields[0]),
		Name:       strings.Join(fields[1:], " "),
		Location:   location,
	})
	if err != nil {
		return "Could not add the sensor: " + userMessage(err)
	}
	return fmt.Sprintf("✅ Sensor %s registered with id %s.", sensor.Name, sensor.ID)
}

func (t *TelegramBot) handleComplain(ctx context.Context, user entities.User, args string) string {
	head, description, ok := strings.Cut(args, "|")
	fields := strings.Fields(head)
	if !ok || len(fields) < 2 {
		return "Usage: /complain <sensor id> <subject> | <description>"
	}
	complaint, err := t.useCase.FileComplaint(ctx, user, entities.ComplaintCreate{
		SensorID:    fields[0],
		Subject:     strings.Join(fields[1:], " "),
		Description: description,
	})
	if err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("📝 Complaint \"%s\" submitted.", complaint.Subject)
}

func (t *TelegramBot) handleVerify(ctx context.Context, user entities.User, args string) string {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "Usage: /verify <report id> <chlorine mg/L> <test date YYYY-MM-DD> [notes]"
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "Report id must be a number."
	}
	report, err := t.useCase.VerifyReport(ctx, id, entities.Verification{
		ChlorineLevel: fields[1],
		TestDate:      fields[2],
		Notes:         strings.Join(fields[3:], " "),
	}, user)
	if err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("✅ Report #%d (%s) verified.", report.ID, report.Household)
}

func (t *TelegramBot) handleExport(ctx context.Context, chatID int64, user entities.User, args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /export <monthly|discrepancy|verified|readings> [sensor id]"
	}
	kind := usecases.ExportKind(strings.ToLower(fields[0]))
	sensorID := ""
	if kind == usecases.ExportReadings && len(fields) > 1 {
		sensor, err := t.useCase.FindSensor(ctx, strings.Join(fields[1:], " "))
		if err != nil {
			return userMessage(err)
		}
		sensorID = sensor.ID
	}

	name, data, err := t.useCase.Export(ctx, user, kind, sensorID)
	if err != nil {
		return userMessage(err)
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = "📊 " + name
	if _, err := t.sender.Send(doc); err != nil {
		t.logger.Error("Error sending document", zap.String("file", name), zap.Error(err))
		return "Sorry, I couldn't send the file. Please try again later."
	}
	return ""
}

// handleWatch starts pushing new unacknowledged alerts to the chat
func (t *TelegramBot) handleWatch(chatID int64, chat *chatState) string {
	chat.mu.Lock()
	defer chat.mu.Unlock()
	if chat.watcher != nil {
		return "Already watching alerts. Use /unwatch to stop."
	}

	watcher := usecases.NewAlertsPoller(t.useCase.Backend(), t.logger.With(zap.Int64("chat_id", chatID)))
	chat.seen = make(map[string]bool)
	chat.primed = false
	watcher.OnChange(func(state usecases.PollState[[]entities.Alert]) {
		if state.Loading || state.Err != nil {
			return
		}
		if fresh := chat.newAlerts(state.Data); len(fresh) > 0 {
			t.reply(chatID, "🔔 New alerts\n\n"+t.useCase.FormatAlerts(fresh))
		}
	})
	chat.watcher = watcher
	watcher.Activate(usecases.DefaultAlertsViewLimit)
	return fmt.Sprintf("👀 Watching alerts, checking every %s. Use /unwatch to stop.", usecases.AlertsInterval)
}

// newAlerts returns unacknowledged alerts not reported before. The first
// successful poll only records what already exists.
func (c *chatState) newAlerts(alerts []entities.Alert) []entities.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		return nil
	}
	var fresh []entities.Alert
	for _, a := range alerts {
		if a.IsAcknowledged || c.seen[a.ID] {
			continue
		}
		c.seen[a.ID] = true
		if c.primed {
			fresh = append(fresh, a)
		}
	}
	c.primed = true
	return fresh
}

// stopWatching deactivates the alert watcher and reports whether one was running
func (c *chatState) stopWatching() bool {
	c.mu.Lock()
	watcher := c.watcher
	c.watcher = nil
	c.seen = nil
	c.mu.Unlock()
	if watcher == nil {
		return false
	}
	watcher.Deactivate()
	return true
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(ctx context.Context, message *tgbotapi.Message) string {
	if strings.TrimSpace(message.Text) == "" {
		return ""
	}
	if !t.chat(message.Chat.ID).session.IsAuthenticated() {
		return "Please sign in first with /login. Use /help for details."
	}
	response, err := t.useCase.HandleNaturalLanguageQuery(ctx, message.Text)
	if err != nil {
		t.logger.Error("Error handling query", zap.Error(err))
		return "I don't understand. Use /help to see available commands."
	}
	return response
}

// userMessage turns a use case or backend error into text for the chat
func userMessage(err error) string {
	var apiErr *integration.APIError
	switch {
	case errors.Is(err, usecases.ErrValidation):
		return strings.TrimPrefix(err.Error(), usecases.ErrValidation.Error()+": ")
	case errors.Is(err, usecases.ErrForbidden):
		return "⛔ This command is not available for your role."
	case errors.Is(err, usecases.ErrNotFound):
		return "Not found: " + strings.TrimPrefix(err.Error(), usecases.ErrNotFound.Error()+": ")
	case errors.As(err, &apiErr):
		if apiErr.StatusCode > 0 && apiErr.Payload != "" {
			return fmt.Sprintf("The backend rejected the request (%d): %s", apiErr.StatusCode, apiErr.Payload)
		}
		return "The backend returned an unexpected response. Please try again later."
	default:
		return "The backend is unavailable. Please try again later."
	}
}
