package utils // package utils provides helpers for password hashing and session tokens

import (
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

    "github.com/iliyamo/user-auth/internal/model"
)

// ErrInvalidToken is returned for tokens that fail signature, algorithm or
// expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims is the payload of a session token. It carries the user's id,
// email and role alongside the standard exp/iat/sub claims.
type SessionClaims struct {
    UserID uint64 `json:"id"`
    Email  string `json:"email"`
    Role   string `json:"role"`
    jwt.RegisteredClaims
}

// SessionToken is a signed token with its expiry.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for the user.
func NewSessionToken(secret string, u model.PublicUser, ttl time.Duration) (SessionToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := SessionClaims{
        UserID: u.ID,
        Email:  u.Email,
        Role:   u.Role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(u.ID, 10),
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw with secret and returns its claims. Only
// HMAC signatures are accepted.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
    claims := &SessionClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    }, jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return nil, ErrInvalidToken
    }
    return claims, nil
}
