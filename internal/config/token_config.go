package config

import "time"

type TokenConfig interface {
	GetAccessTokenMaxAge() time.Duration
	GetRefreshTokenMaxAge() time.Duration
	GetTokenFile() string
	GetTokenKey() string
	GetUserFile() string
}

type Tokens struct {
	file fileValues
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetAccessTokenMaxAge() time.Duration {
	return t.file.duration("ACCESS_TOKEN_MAX_AGE", 15*time.Minute)
}

func (t Tokens) GetRefreshTokenMaxAge() time.Duration {
	return t.file.duration("REFRESH_TOKEN_MAX_AGE", 7*24*time.Hour) // 7 days
}

func (t Tokens) GetTokenFile() string {
	return t.file.get("TOKEN_FILE", "./data/tokens.bin")
}

// GetTokenKey is the passphrase the token file is encrypted with.
func (t Tokens) GetTokenKey() string {
	return t.file.get("TOKEN_KEY", "")
}

func (t Tokens) GetUserFile() string {
	return t.file.get("USER_FILE", "./data/user.json")
}

type CacheConfig interface {
	GetCacheSweepInterval() time.Duration
}

type Cache struct {
	file fileValues
}

var _ CacheConfig = Cache{}

func (c Cache) GetCacheSweepInterval() time.Duration {
	return c.file.duration("CACHE_SWEEP_INTERVAL", time.Minute)
}
