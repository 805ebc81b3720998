package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 12 * time.Hour
	defaultIssuer   = "yandal-patrol"
	bearerPrefix    = "Bearer "
)

// CookieName carries the session token for browser clients that cannot set headers, such as EventSource.
const CookieName = "patrol_session"

var (
	ErrMissingSigningSecret = errors.New("session: signing secret required")
	ErrMissingToken         = errors.New("session: token required")
	ErrInvalidToken         = errors.New("session: invalid token")
	ErrExpiredToken         = errors.New("session: token expired")
)

// Claims is the JWT payload of a session token.
type Claims struct {
	Role     Role   `json:"role"`
	Unit     string `json:"ulp,omitempty"`
	Officer1 string `json:"petugas1,omitempty"`
	Officer2 string `json:"petugas2,omitempty"`
	jwt.RegisteredClaims
}

// ManagerConfig configures session token handling.
type ManagerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// Manager issues and validates HS256 session tokens. Sessions are never stored server-side.
type Manager struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewManager constructs a Manager with sane defaults.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// Issue validates the session and produces a signed token plus its lifetime in seconds.
func (m *Manager) Issue(s Session) (string, int64, Session, error) {
	normalized, err := s.Normalize()
	if err != nil {
		return "", 0, Session{}, err
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.ttl).UTC()
	claims := Claims{
		Role:     normalized.Role,
		Unit:     normalized.Unit,
		Officer1: normalized.Officer1,
		Officer2: normalized.Officer2,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(normalized.Role),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingSecret)
	if err != nil {
		return "", 0, Session{}, err
	}
	return signed, int64(expiresAt.Sub(now).Seconds()), normalized, nil
}

// ValidateToken parses tokenString and returns the session it carries.
func (m *Manager) ValidateToken(tokenString string) (Session, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Session{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithTimeFunc(m.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredToken
		}
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}

	session, err := Session{
		Role:     claims.Role,
		Unit:     claims.Unit,
		Officer1: claims.Officer1,
		Officer2: claims.Officer2,
	}.Normalize()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return session, nil
}

// ValidateRequest reads the bearer token, falling back to the session cookie.
func (m *Manager) ValidateRequest(r *http.Request) (Session, error) {
	if r == nil {
		return Session{}, ErrMissingToken
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return m.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie == nil {
		return Session{}, ErrMissingToken
	}
	return m.ValidateToken(cookie.Value)
}
