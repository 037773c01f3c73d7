package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ws "github.com/gorilla/websocket"

	"elaine/internal/llm"
)

const defaultTwitchURL = "wss://irc-ws.chat.twitch.tv:443"

// Config for the Twitch chat bridge. With no token the bridge runs
// read-only under an anonymous justinfan nick.
type Config struct {
	URL     string
	Nick    string
	Token   string
	Channel string
}

// Bridge subscribes to channel messages, answers them through the
// generator and hands replies to the voice path.
type Bridge struct {
	cfg       Config
	gen       llm.Generator
	prompt    llm.PromptBuilder
	say       func(ctx context.Context, text string)
	onMsg     func(user, text string)
	reconnect time.Duration
	log       *slog.Logger
}

func NewBridge(cfg Config, gen llm.Generator, prompt llm.PromptBuilder, say func(context.Context, string), onMsg func(user, text string)) *Bridge {
	if cfg.URL == "" {
		cfg.URL = defaultTwitchURL
	}
	if cfg.Nick == "" {
		cfg.Nick = "justinfan12345"
	}
	return &Bridge{
		cfg:       cfg,
		gen:       gen,
		prompt:    prompt,
		say:       say,
		onMsg:     onMsg,
		reconnect: 5 * time.Second,
		log:       slog.Default().With("component", "chat"),
	}
}

// Run processes chat until ctx ends, reconnecting after dropped
// connections.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		err := b.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn("chat connection lost, reconnecting", "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.reconnect):
		}
	}
}

func (b *Bridge) runOnce(ctx context.Context) error {
	conn, _, err := ws.DefaultDialer.DialContext(ctx, b.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial twitch: %w", err)
	}
	defer conn.Close()

	if b.cfg.Token != "" {
		token := b.cfg.Token
		if !strings.HasPrefix(token, "oauth:") {
			token = "oauth:" + token
		}
		if err := writeLine(conn, "PASS "+token); err != nil {
			return err
		}
	}
	if err := writeLine(conn, "NICK "+b.cfg.Nick); err != nil {
		return err
	}
	if err := writeLine(conn, "JOIN #"+b.cfg.Channel); err != nil {
		return err
	}
	b.log.Info("joined channel", "channel", b.cfg.Channel)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		for _, line := range strings.Split(string(payload), "\r\n") {
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "PING") {
				_ = writeLine(conn, strings.Replace(line, "PING", "PONG", 1))
				continue
			}
			user, _, text, ok := ParseLine(line)
			if !ok {
				continue
			}
			// Ignore our own messages echoed back.
			if strings.EqualFold(user, b.cfg.Nick) {
				continue
			}
			b.handle(ctx, conn, user, text)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, conn *ws.Conn, user, text string) {
	b.log.Info("chat message", "user", user, "text", text)
	if b.onMsg != nil {
		b.onMsg(user, text)
	}

	reply, err := b.gen.Generate(ctx, b.prompt.Build(nil, user+": "+text))
	if err != nil {
		b.log.Warn("chat reply generation failed", "err", err)
		return
	}
	reply = llm.DedupClauses(strings.TrimSpace(reply))
	if reply == "" {
		return
	}

	if b.cfg.Token != "" {
		if err := writeLine(conn, "PRIVMSG #"+b.cfg.Channel+" :"+reply); err != nil {
			b.log.Warn("send chat reply failed", "err", err)
		}
	}
	if b.say != nil {
		b.say(ctx, reply)
	}
}

func writeLine(conn *ws.Conn, line string) error {
	return conn.WriteMessage(ws.TextMessage, []byte(line+"\r\n"))
}

// ParseLine extracts a PRIVMSG from one raw IRC line:
// ":nick!user@host PRIVMSG #channel :message text".
func ParseLine(line string) (user, channel, text string, ok bool) {
	if !strings.HasPrefix(line, ":") {
		return "", "", "", false
	}
	prefix, rest, found := strings.Cut(line[1:], " ")
	if !found {
		return "", "", "", false
	}
	if !strings.HasPrefix(rest, "PRIVMSG ") {
		return "", "", "", false
	}
	rest = strings.TrimPrefix(rest, "PRIVMSG ")

	channel, msg, found := strings.Cut(rest, " :")
	if !found {
		return "", "", "", false
	}
	channel = strings.TrimPrefix(strings.TrimSpace(channel), "#")

	if i := strings.Index(prefix, "!"); i > 0 {
		user = prefix[:i]
	} else {
		user = prefix
	}
	return user, channel, msg, true
}
