package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Claims binds a caller to one room and one user. Transports trust UserID from a verified token over any
// user id in the request body.
type Claims struct {
	RoomID int64 `json:"room_id"`
	UserID int64 `json:"user_id"`
	Exp    int64 `json:"exp"`
}

// DefaultTokenExpiry covers a long session of back-to-back matches in one room.
const DefaultTokenExpiry = 24 * time.Hour

var (
	ErrNoSecret     = errors.New("token secret is required")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// GenerateToken signs claims for (roomID, userID) valid for expiry.
// Format: base64url(json claims).base64url(hmac-sha256 of the first part).
func GenerateToken(roomID, userID int64, secret []byte, expiry time.Duration) (token string, expiresAt time.Time, err error) {
	if len(secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	expiresAt = time.Now().UTC().Add(expiry)
	payload, err := json.Marshal(Claims{RoomID: roomID, UserID: userID, Exp: expiresAt.Unix()})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal claims: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + base64.RawURLEncoding.EncodeToString(sign(body, secret)), expiresAt, nil
}

// VerifyToken checks the signature, expiry and that both ids are set. Every failure wraps
// ErrInvalidToken or ErrTokenExpired.
func VerifyToken(token string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	body, sig64, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("%w: bad format", ErrInvalidToken)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sig64)
	if err != nil || !hmac.Equal(sig, sign(body, secret)) {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding: %v", ErrInvalidToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}
	if time.Now().UTC().Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	if claims.RoomID == 0 || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: claims missing room_id or user_id", ErrInvalidToken)
	}
	return &claims, nil
}

// BearerToken returns the token from "Authorization: Bearer <token>", falling back to the token query
// parameter when allowQuery is set (browsers cannot set headers on WebSocket upgrades).
func BearerToken(r *http.Request, allowQuery bool) string {
	const prefix = "Bearer "
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, prefix) {
		if t := strings.TrimSpace(v[len(prefix):]); t != "" {
			return t
		}
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

func sign(body string, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}
