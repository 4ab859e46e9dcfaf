package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalPulse/internal/domain/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSignal = models.Signal{Timeframe: "1m", Asset: "EURUSD", Timestamp: "14:30", Direction: "CALL"}

type dispatchFunc func(ctx context.Context, sig models.Signal) error

func (f dispatchFunc) Dispatch(ctx context.Context, sig models.Signal) error { return f(ctx, sig) }

func TestBody(t *testing.T) {
	assert.Equal(t, "EURUSD CALL at 14:30 (1m)", Body(testSignal))
	s := testSignal
	s.Timeframe = ""
	assert.Equal(t, "EURUSD CALL at 14:30", Body(s))
}

func TestFanOutDeliversDespiteFailure(t *testing.T) {
	var delivered []string
	ok := dispatchFunc(func(context.Context, models.Signal) error {
		delivered = append(delivered, "ok")
		return nil
	})
	bad := dispatchFunc(func(context.Context, models.Signal) error { return errors.New("permission denied") })

	f := NewFanOut(Named{Name: "desktop", Dispatcher: bad}, Named{Name: "log", Dispatcher: ok})
	err := f.Dispatch(context.Background(), testSignal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "desktop: permission denied")
	assert.Equal(t, []string{"ok"}, delivered)
	assert.Equal(t, []string{"desktop", "log"}, f.Channels())

	assert.NoError(t, NewFanOut(Named{Name: "log", Dispatcher: ok}).Dispatch(context.Background(), testSignal))
}

func TestEscapeAppleScript(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{`say "hello"`, `say \"hello\"`},
		{`path\to\file`, `path\\to\\file`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeAppleScript(tt.input))
	}
}

func TestDesktopCommandLine(t *testing.T) {
	var gotName string
	var gotArgs []string
	d := NewDesktopDispatcher("osascript", `Signal "alert"`)
	d.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, nil
	}
	require.NoError(t, d.Dispatch(context.Background(), testSignal))
	assert.Equal(t, "osascript", gotName)
	require.Len(t, gotArgs, 2)
	assert.Equal(t, `display notification "EURUSD CALL at 14:30 (1m)" with title "Signal \"alert\"" sound name "default"`, gotArgs[1])

	d = NewDesktopDispatcher("notify-send", "Signal")
	d.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte("no display\n"), errors.New("exit status 1")
	}
	err := d.Dispatch(context.Background(), testSignal)
	assert.EqualError(t, err, "notify-send: exit status 1: no display")
}

type fakeBot struct {
	sent []tgbot.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbot.Chattable) (tgbot.Message, error) {
	b.sent = append(b.sent, c)
	return tgbot.Message{}, b.err
}

func TestTelegramDispatch(t *testing.T) {
	bot := &fakeBot{}
	d := &TelegramDispatcher{bot: bot, chatID: 42, title: "Signal"}
	require.NoError(t, d.Dispatch(context.Background(), testSignal))
	require.Len(t, bot.sent, 1)
	msg := bot.sent[0].(tgbot.MessageConfig)
	assert.EqualValues(t, 42, msg.ChatID)
	assert.Equal(t, "Signal\nEURUSD CALL at 14:30 (1m)", msg.Text)

	bot.err = errors.New("chat not found")
	assert.Error(t, d.Dispatch(context.Background(), testSignal))
}

type fakePublisher struct {
	topic string
	key   []byte
	value interface{}
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaDispatch(t *testing.T) {
	p := &fakePublisher{}
	d := NewKafkaDispatcher(p, "signal-alerts", "Signal")
	require.NoError(t, d.Dispatch(context.Background(), testSignal))
	assert.Equal(t, "signal-alerts", p.topic)
	assert.Equal(t, "14:30|EURUSD|CALL", string(p.key))
	alert := p.value.(Alert)
	assert.Equal(t, "EURUSD", alert.Asset)
	assert.Equal(t, "EURUSD CALL at 14:30 (1m)", alert.Body)
}

func TestAlertHubBroadcast(t *testing.T) {
	hub := NewAlertHub("Signal", nil)
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	require.NoError(t, hub.Dispatch(context.Background(), testSignal), "no subscribers is not an error")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Dispatch(context.Background(), testSignal))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var alert Alert
	require.NoError(t, json.Unmarshal(raw, &alert))
	assert.Equal(t, "14:30|EURUSD|CALL", alert.Key)
	assert.Equal(t, "Signal", alert.Title)

	hub.Close()
	assert.Zero(t, hub.Subscribers())
}
