// Package telegram mirrors alert notifications into a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"backlogalert/internal/slack"
	"backlogalert/pkg/tgui"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int    // forum topic; 0 posts to the main chat
	URL      string // Bot API base; empty uses the public endpoint
	Timeout  time.Duration
}

// Sink sends payloads with the Bot API. It never polls for updates.
type Sink struct {
	bot      *tele.Bot
	chat     tele.ChatID
	threadID int
}

func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Sink{bot: b, chat: tele.ChatID(cfg.ChatID), threadID: cfg.ThreadID}, nil
}

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) Send(ctx context.Context, p slack.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(s.chat, Render(p), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              s.threadID,
	})
	return err
}

// Render turns a webhook payload into Telegram HTML: a bold title line
// followed by the escaped issue lines. Long bodies are cut to fit one message.
func Render(p slack.Payload) string {
	title := tgui.B(p.Title())
	room := tgui.MaxMessageLen - utf8.RuneCountInString(title.String()) - 1
	body := tgui.EscTrunc(strings.TrimRight(p.Body(), "\n"), room)
	return tgui.JoinH("\n", title, body).String()
}
