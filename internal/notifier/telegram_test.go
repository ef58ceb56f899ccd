package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramServer struct {
	mu       sync.Mutex
	sent     []map[string]string
	failChat string
}

func (s *telegramServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Sentinel","username":"sentinel_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			fields := map[string]string{
				"chat_id":                  r.PostForm.Get("chat_id"),
				"text":                     r.PostForm.Get("text"),
				"parse_mode":               r.PostForm.Get("parse_mode"),
				"disable_web_page_preview": r.PostForm.Get("disable_web_page_preview"),
			}
			s.mu.Lock()
			s.sent = append(s.sent, fields)
			s.mu.Unlock()

			if fields["chat_id"] == s.failChat {
				w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			t.Errorf("Unexpected request %s", r.URL.Path)
		}
	}
}

func newTestBot(t *testing.T, s *telegramServer) *tgbotapi.BotAPI {
	t.Helper()
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewBotAPIWithClient() error = %v", err)
	}
	return bot
}

func TestTelegramSend(t *testing.T) {
	s := &telegramServer{}
	tg := NewTelegram(newTestBot(t, s))

	if err := tg.Send(context.Background(), "42", "*hello*"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(s.sent))
	}
	got := s.sent[0]
	if got["chat_id"] != "42" || got["text"] != "*hello*" {
		t.Errorf("Unexpected message %v", got)
	}
	if got["parse_mode"] != tgbotapi.ModeMarkdown {
		t.Errorf("Expected Markdown parse mode, got %q", got["parse_mode"])
	}
	if got["disable_web_page_preview"] != "true" {
		t.Errorf("Expected web preview disabled, got %q", got["disable_web_page_preview"])
	}
}

func TestTelegramSendFailure(t *testing.T) {
	s := &telegramServer{failChat: "13"}
	tg := NewTelegram(newTestBot(t, s))

	if err := tg.Send(context.Background(), "13", "hi"); err == nil {
		t.Fatal("Expected error when Telegram rejects the message")
	}
}

func TestTelegramInvalidChatID(t *testing.T) {
	tg := NewTelegram(&blockingSender{})

	err := tg.Send(context.Background(), "not-a-chat", "hi")
	if !errors.Is(err, ErrInvalidChatID) {
		t.Errorf("Expected ErrInvalidChatID, got %v", err)
	}
}

type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-b.release
	return tgbotapi.Message{}, nil
}

func TestTelegramSendHonoursContext(t *testing.T) {
	sender := &blockingSender{release: make(chan struct{})}
	defer close(sender.release)
	tg := NewTelegram(sender)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tg.Send(ctx, "42", "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
