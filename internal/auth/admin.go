package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ds2api/internal/config"
)

// ErrAdminUnauthorized is returned when an admin credential or session token
// does not check out.
var ErrAdminUnauthorized = errors.New("invalid or expired admin token")

const defaultAdminKey = "admin"

// AdminSecretSource is the slice of config the admin auth helpers read.
// *config.Store satisfies it, as does the admin handler's store interface.
type AdminSecretSource interface {
	Snapshot() config.Config
	AdminJWTExpireHours() int
}

var _ AdminSecretSource = (*config.Store)(nil)

func envAdminKey() string {
	if k := strings.TrimSpace(os.Getenv("DS2API_ADMIN_KEY")); k != "" {
		return k
	}
	return defaultAdminKey
}

// HashAdminPassword returns the stored form of an admin password.
func HashAdminPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// UsingDefaultAdminKey reports whether admin auth still falls back to the
// out-of-the-box "admin" key: no password hash stored and no custom
// DS2API_ADMIN_KEY in the environment.
func UsingDefaultAdminKey(src AdminSecretSource) bool {
	if strings.TrimSpace(src.Snapshot().Admin.PasswordHash) != "" {
		return false
	}
	return envAdminKey() == defaultAdminKey
}

// VerifyAdminKey checks a presented admin key or password. A stored password
// hash takes precedence over the environment key.
func VerifyAdminKey(src AdminSecretSource, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if hash := strings.TrimSpace(src.Snapshot().Admin.PasswordHash); hash != "" {
		sum := HashAdminPassword(candidate)
		return subtle.ConstantTimeCompare([]byte(sum), []byte(hash)) == 1
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(envAdminKey())) == 1
}

// adminJWTSecret derives the HMAC key for session tokens from the active
// admin credential, so a password change rotates the key as well.
func adminJWTSecret(src AdminSecretSource) []byte {
	material := strings.TrimSpace(src.Snapshot().Admin.PasswordHash)
	if material == "" {
		material = envAdminKey()
	}
	sum := sha256.Sum256([]byte("admin-jwt:" + material))
	return sum[:]
}

// IssueAdminJWT signs a session token and returns it with its expiry unix
// time. expireHours <= 0 falls back to the configured default.
func IssueAdminJWT(src AdminSecretSource, expireHours int) (string, int64, error) {
	if expireHours <= 0 {
		expireHours = src.AdminJWTExpireHours()
	}
	now := time.Now()
	exp := now.Add(time.Duration(expireHours) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString(adminJWTSecret(src))
	if err != nil {
		return "", 0, err
	}
	return signed, exp.Unix(), nil
}

// VerifyAdminJWT validates a session token. Tokens issued before the
// password-change cutoff (Admin.JWTValidAfterUnix) are rejected even when
// their signature still verifies.
func VerifyAdminJWT(src AdminSecretSource, tokenString string) error {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ErrAdminUnauthorized
	}
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return adminJWTSecret(src), nil
	})
	if err != nil || !parsed.Valid {
		return ErrAdminUnauthorized
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ErrAdminUnauthorized
	}
	if cutoff := src.Snapshot().Admin.JWTValidAfterUnix; cutoff > 0 {
		iat, ok := claims["iat"].(float64)
		if !ok || int64(iat) < cutoff {
			return ErrAdminUnauthorized
		}
	}
	return nil
}
