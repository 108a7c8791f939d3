package config

import (
	"time"

	"github.com/tableside/admin-auth/auth"
	"github.com/tableside/admin-auth/token"
)

type TokenConfig interface {
	GetJWTSecret() []byte
	GetAccessTokenTTL() time.Duration
	GetSessionTTL() time.Duration
	GetInviteTTL() time.Duration
	GetResetTTL() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetJWTSecret() []byte {
	return []byte(GetEnv(jwtSecretVar, ""))
}

func (Tokens) GetAccessTokenTTL() time.Duration {
	return getDuration("ACCESS_TOKEN_TTL", token.DefaultAccessTTL)
}

func (Tokens) GetSessionTTL() time.Duration {
	return getDuration("SESSION_TTL", auth.DefaultSessionTTL)
}

func (Tokens) GetInviteTTL() time.Duration {
	return getDuration("INVITE_TTL", token.DefaultInviteTTL)
}

func (Tokens) GetResetTTL() time.Duration {
	return getDuration("RESET_TTL", token.DefaultResetTTL)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
