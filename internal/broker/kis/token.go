package kis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wonny/stockhunter/pkg/config"
	"github.com/wonny/stockhunter/pkg/logger"
)

// KIS 토큰은 하루 1회 발급이 원칙. 재시작/동시요청이 발급 횟수를
// 부풀리지 않도록 메모리 → 파일 → 발급 순서로만 조회한다.
const tokenSafetyMargin = 5 * time.Minute

// TokenGrant is a minted broker access token with its validity window.
type TokenGrant struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// tokenCacheFile is the on-disk representation (epoch seconds)
type tokenCacheFile struct {
	Token     string `json:"token"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// MintFunc performs the actual broker token issuance call.
type MintFunc func(ctx context.Context) (*TokenGrant, error)

// TokenManager serialises token acquisition for one (environment, app key)
// pair and persists minted tokens across process restarts.
// ⭐ SSOT: 토큰 발급/재사용은 이 매니저에서만
type TokenManager struct {
	dir        string
	env        string
	appKeyHash string
	logger     *logger.Logger

	mu      sync.Mutex
	current *TokenGrant
}

// NewTokenManager creates a token manager caching under dir
// (normally ~/.stockhunter).
func NewTokenManager(kisCfg config.KISConfig, dir string, log *logger.Logger) *TokenManager {
	return &TokenManager{
		dir:        dir,
		env:        kisCfg.EnvLabel(),
		appKeyHash: hashAppKey(kisCfg.AppKey),
		logger:     log.WithField("module", "kis_token"),
	}
}

// hashAppKey derives the cache file discriminator from the app key
func hashAppKey(appKey string) string {
	sum := sha256.Sum256([]byte(appKey))
	return hex.EncodeToString(sum[:8])
}

// cachePath returns token_{env}_{hash}.json under the cache dir
func (m *TokenManager) cachePath() string {
	return filepath.Join(m.dir, fmt.Sprintf("token_%s_%s.json", m.env, m.appKeyHash))
}

// Acquire returns a non-expired token, minting at most once even under
// concurrent callers. Order of attempts: in-memory cache, filesystem cache,
// broker mint. Mint failures propagate as *AuthError without retry.
func (m *TokenManager) Acquire(ctx context.Context, mint MintFunc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	// (i) in-memory
	if m.current != nil && now.Before(m.current.ExpiresAt.Add(-tokenSafetyMargin)) {
		return m.current.Token, nil
	}

	// (ii) filesystem
	if grant, err := m.loadFromFile(); err == nil && grant != nil {
		if now.Before(grant.ExpiresAt.Add(-tokenSafetyMargin)) {
			m.current = grant
			m.logger.WithField("expires_at", grant.ExpiresAt).Info("Reusing cached KIS token")
			return grant.Token, nil
		}
		// Expired file: remove so the next restart does not reconsider it
		_ = os.Remove(m.cachePath())
	}

	// (iii) broker mint
	grant, err := mint(ctx)
	if err != nil {
		return "", err
	}

	m.current = grant
	if err := m.saveToFile(grant); err != nil {
		m.logger.WithError(err).Warn("Failed to persist token cache")
	}

	m.logger.WithFields(map[string]interface{}{
		"env":        m.env,
		"expires_at": grant.ExpiresAt,
	}).Info("Minted new KIS token")

	return grant.Token, nil
}

// Purge removes both caches, e.g. on app-key rotation
func (m *TokenManager) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	if err := os.Remove(m.cachePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}

func (m *TokenManager) loadFromFile() (*TokenGrant, error) {
	data, err := os.ReadFile(m.cachePath())
	if err != nil {
		return nil, err
	}

	var cached tokenCacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("decode token cache: %w", err)
	}
	if cached.Token == "" {
		return nil, fmt.Errorf("empty token in cache file")
	}

	return &TokenGrant{
		Token:     cached.Token,
		IssuedAt:  time.Unix(cached.IssuedAt, 0),
		ExpiresAt: time.Unix(cached.ExpiresAt, 0),
	}, nil
}

func (m *TokenManager) saveToFile(grant *TokenGrant) error {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(tokenCacheFile{
		Token:     grant.Token,
		IssuedAt:  grant.IssuedAt.Unix(),
		ExpiresAt: grant.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}

	return os.WriteFile(m.cachePath(), data, 0o600)
}
