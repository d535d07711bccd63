// Package twitch provides a platform.Source reading a Twitch channel's chat
// over the IRC-over-WebSocket gateway at irc-ws.chat.twitch.tv.
//
// Without a token the source connects anonymously as a justinfan user, which
// Twitch permits for read-only chat access.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

const gatewayURL = "wss://irc-ws.chat.twitch.tv:443"

// Compile-time interface assertion.
var _ platform.Source = (*Source)(nil)

// privmsgRe matches a tagged PRIVMSG line:
//
//	@tags :user!user@user.tmi.twitch.tv PRIVMSG #channel :text
var privmsgRe = regexp.MustCompile(`^(?:@(\S+) )?:(\w+)!\S+ PRIVMSG #(\w+) :(.*)$`)

// Config holds Twitch source configuration.
type Config struct {
	// Channel is the Twitch channel name to join, without the "#" prefix.
	Channel string `yaml:"channel"`

	// Token is an OAuth token for authenticated access. The "oauth:" prefix
	// is optional. When empty the source connects anonymously.
	Token string `yaml:"token"`

	// Username is the IRC nick used with an authenticated token. Ignored for
	// anonymous connections.
	Username string `yaml:"username"`
}

// Source is a chat source reading messages from Twitch IRC.
type Source struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	lastErr   error
}

// New creates a Twitch Source. The source does not connect until Start.
func New(cfg Config) (*Source, error) {
	if cfg.Channel == "" {
		return nil, errors.New("twitch: channel must not be empty")
	}
	cfg.Channel = strings.ToLower(strings.TrimPrefix(cfg.Channel, "#"))
	cfg.Token = strings.TrimPrefix(cfg.Token, "oauth:")
	return &Source{cfg: cfg}, nil
}

// Platform implements platform.Source.
func (s *Source) Platform() string { return "twitch" }

// Start implements platform.Source. It dials the IRC gateway, authenticates,
// joins the configured channel, and starts the receive loop.
func (s *Source) Start(ctx context.Context, h platform.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return errors.New("twitch: source already connected")
	}

	conn, _, err := websocket.Dial(ctx, gatewayURL, nil)
	if err != nil {
		s.lastErr = err
		return fmt.Errorf("twitch: dial: %w", err)
	}

	nick := s.cfg.Username
	if s.cfg.Token == "" || nick == "" {
		// Anonymous read-only login.
		nick = fmt.Sprintf("justinfan%d", 10000+rand.IntN(90000))
	}

	login := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"NICK " + nick,
		"JOIN #" + s.cfg.Channel,
	}
	if s.cfg.Token != "" {
		login = append([]string{"PASS oauth:" + s.cfg.Token}, login...)
	}
	for _, line := range login {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line+"\r\n")); err != nil {
			conn.Close(websocket.StatusInternalError, "login failed")
			s.lastErr = err
			return fmt.Errorf("twitch: login: %w", err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.connected = true
	s.lastErr = nil

	go s.receiveLoop(loopCtx, conn, h)

	slog.Info("twitch source connected", "channel", s.cfg.Channel, "nick", nick)
	return nil
}

// Stop implements platform.Source.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return errors.New("twitch: source not connected")
	}
	conn, cancel, done := s.conn, s.cancel, s.done
	s.conn = nil
	s.cancel = nil
	s.connected = false
	s.mu.Unlock()

	cancel()
	conn.Close(websocket.StatusNormalClosure, "disconnect")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}

	slog.Info("twitch source disconnected", "channel", s.cfg.Channel)
	return nil
}

// Status implements platform.Source.
func (s *Source) Status() platform.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := platform.Status{Platform: "twitch", Connected: s.connected}
	switch {
	case s.connected:
		st.Detail = "channel #" + s.cfg.Channel
	case s.lastErr != nil:
		st.Detail = s.lastErr.Error()
	}
	return st
}

// receiveLoop reads IRC lines until the connection closes, answering PINGs
// and forwarding PRIVMSGs to h.
func (s *Source) receiveLoop(ctx context.Context, conn *websocket.Conn, h platform.Handler) {
	defer close(s.done)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("twitch receive loop ended", "channel", s.cfg.Channel, "err", err)
				s.mu.Lock()
				s.lastErr = err
				s.connected = false
				s.mu.Unlock()
			}
			return
		}

		// The gateway may batch several IRC lines per frame.
		for _, line := range strings.Split(string(data), "\r\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "PING") {
				_ = conn.Write(ctx, websocket.MessageText, []byte("PONG :tmi.twitch.tv\r\n"))
				continue
			}
			if msg, ok := parsePrivmsg(line); ok {
				h(msg)
			}
		}
	}
}

// parsePrivmsg parses one IRC line into a ChatMessage. Non-PRIVMSG lines
// return ok=false.
func parsePrivmsg(line string) (platform.ChatMessage, bool) {
	m := privmsgRe.FindStringSubmatch(line)
	if m == nil {
		return platform.ChatMessage{}, false
	}
	tags, username, text := m[1], m[2], m[4]

	userID := username
	displayName := username
	for _, tag := range strings.Split(tags, ";") {
		k, v, ok := strings.Cut(tag, "=")
		if !ok || v == "" {
			continue
		}
		switch k {
		case "user-id":
			userID = v
		case "display-name":
			displayName = v
		}
	}

	return platform.ChatMessage{
		Platform:  "twitch",
		UserID:    userID,
		Username:  displayName,
		Text:      text,
		Timestamp: time.Now(),
	}, true
}
