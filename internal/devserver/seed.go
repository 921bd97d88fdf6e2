package devserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/clk-66/spectrus-go/internal/devserver/auth"
	"github.com/clk-66/spectrus-go/internal/devserver/store"
	"github.com/clk-66/spectrus-go/payload"
)

// Seeded is what Seed created, or what Bootstrap found.
type Seeded struct {
	Guild    *store.Guild
	Bot      *store.User
	BotToken string
	Owner    *store.User
}

// Seed creates the guild, an owner account with a password, a bot account
// holding an Administrator role, and a text and a voice channel. It fails
// with store.ErrConflict on an already seeded database.
func (s *Server) Seed(ctx context.Context) (*Seeded, error) {
	hash, err := auth.HashPassword(s.cfg.OwnerPassword)
	if err != nil {
		return nil, fmt.Errorf("hash owner password: %w", err)
	}
	owner, err := s.store.CreateUser(ctx, store.UserInput{Username: s.cfg.OwnerName, PasswordHash: hash})
	if err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	if _, err := s.store.CreateGuild(ctx, s.cfg.GuildName, owner.ID); err != nil {
		return nil, fmt.Errorf("create guild: %w", err)
	}
	if _, err := s.store.AddMember(ctx, owner.ID); err != nil {
		return nil, fmt.Errorf("add owner: %w", err)
	}

	bot, err := s.store.CreateUser(ctx, store.UserInput{Username: s.cfg.BotName, Bot: true})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if _, err := s.store.AddMember(ctx, bot.ID); err != nil {
		return nil, fmt.Errorf("add bot: %w", err)
	}
	role, err := s.store.CreateRole(ctx, store.RolePatch{
		Name:        strPtr("bot"),
		Permissions: strPtr(payload.Permissions(payload.PermAdministrator)),
	})
	if err != nil {
		return nil, fmt.Errorf("create bot role: %w", err)
	}
	if _, err := s.store.AddMemberRole(ctx, bot.ID, role.ID); err != nil {
		return nil, fmt.Errorf("assign bot role: %w", err)
	}

	text, voice := int(payload.ChannelText), int(payload.ChannelVoice)
	if _, err := s.store.CreateChannel(ctx, store.ChannelPatch{Name: strPtr("general"), Type: &text}); err != nil {
		return nil, fmt.Errorf("create text channel: %w", err)
	}
	if _, err := s.store.CreateChannel(ctx, store.ChannelPatch{Name: strPtr("voice"), Type: &voice}); err != nil {
		return nil, fmt.Errorf("create voice channel: %w", err)
	}

	return s.adopt(ctx, bot, owner)
}

// Bootstrap seeds an empty database, or picks up the configured bot and
// owner from an existing one. Either way it issues a fresh bot token.
func (s *Server) Bootstrap(ctx context.Context) (*Seeded, error) {
	if s.store.GuildID() == "" {
		return s.Seed(ctx)
	}
	bot, _, err := s.store.UserByUsername(ctx, s.cfg.BotName)
	if err != nil {
		return nil, fmt.Errorf("load bot %q: %w", s.cfg.BotName, err)
	}
	if !bot.Bot {
		return nil, errors.New("configured bot name belongs to a non-bot user")
	}
	owner, _, err := s.store.UserByUsername(ctx, s.cfg.OwnerName)
	if err != nil {
		return nil, fmt.Errorf("load owner %q: %w", s.cfg.OwnerName, err)
	}
	return s.adopt(ctx, bot, owner)
}

// adopt records bot as the application and issues its token.
func (s *Server) adopt(ctx context.Context, bot, owner *store.User) (*Seeded, error) {
	token, err := s.issuer.Issue(bot.ID, true)
	if err != nil {
		return nil, fmt.Errorf("issue bot token: %w", err)
	}
	g, err := s.store.Guild(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.appID = bot.ID
	s.mu.Unlock()
	return &Seeded{Guild: g, Bot: bot, BotToken: token, Owner: owner}, nil
}

// IssueToken returns a token for an existing user, for tooling that acts as
// a human member.
func (s *Server) IssueToken(userID string) (string, error) {
	return s.issuer.Issue(userID, false)
}

func strPtr(v string) *string { return &v }
