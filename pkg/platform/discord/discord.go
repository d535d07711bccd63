// Package discord provides a platform.Source backed by the Discord gateway.
// It owns the discordgo.Session lifecycle and forwards guild text messages
// to the ingest handler.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

// Compile-time interface assertion.
var _ platform.Source = (*Source)(nil)

// Config holds Discord source configuration.
type Config struct {
	// Token is the Discord bot token (without the "Bot " prefix).
	Token string `yaml:"token"`

	// ChannelID optionally restricts ingestion to a single text channel.
	// When empty, messages from all channels the bot can read are forwarded.
	ChannelID string `yaml:"channel_id"`
}

// Source is a chat source reading messages from Discord text channels.
type Source struct {
	cfg Config

	mu        sync.Mutex
	session   *discordgo.Session
	connected bool
	lastErr   error
}

// New creates a Discord Source. The source does not connect until Start.
func New(cfg Config) (*Source, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token must not be empty")
	}
	return &Source{cfg: cfg}, nil
}

// Platform implements platform.Source.
func (s *Source) Platform() string { return "discord" }

// Start implements platform.Source. It opens the gateway session and
// registers a message handler that forwards non-bot messages to h.
func (s *Source) Start(_ context.Context, h platform.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return errors.New("discord: source already connected")
	}

	session, err := discordgo.New("Bot " + s.cfg.Token)
	if err != nil {
		s.lastErr = err
		return fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	session.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageCreate) {
		s.handleMessage(ds, m, h)
	})

	if err := session.Open(); err != nil {
		s.lastErr = err
		return fmt.Errorf("discord: open session: %w", err)
	}

	s.session = session
	s.connected = true
	s.lastErr = nil
	slog.Info("discord source connected", "channel_id", s.cfg.ChannelID)
	return nil
}

// Stop implements platform.Source.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return errors.New("discord: source not connected")
	}

	err := s.session.Close()
	s.session = nil
	s.connected = false
	if err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	slog.Info("discord source disconnected")
	return nil
}

// Status implements platform.Source.
func (s *Source) Status() platform.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := platform.Status{Platform: "discord", Connected: s.connected}
	switch {
	case s.connected && s.cfg.ChannelID != "":
		st.Detail = "channel " + s.cfg.ChannelID
	case !s.connected && s.lastErr != nil:
		st.Detail = s.lastErr.Error()
	}
	return st
}

func (s *Source) handleMessage(ds *discordgo.Session, m *discordgo.MessageCreate, h platform.Handler) {
	// Ignore our own messages and other bots.
	if m.Author == nil || m.Author.Bot {
		return
	}
	if ds.State != nil && ds.State.User != nil && m.Author.ID == ds.State.User.ID {
		return
	}
	if s.cfg.ChannelID != "" && m.ChannelID != s.cfg.ChannelID {
		return
	}
	if m.Content == "" {
		return
	}

	ts := m.Timestamp
	h(platform.ChatMessage{
		Platform:  "discord",
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Text:      m.Content,
		Timestamp: ts,
	})
}
