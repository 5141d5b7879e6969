package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// bound into every reset link signature
const purposePasswordReset = "crm.password-reset"

var (
	nowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid or already used reset link")
	errTokenExpired = errors.New("reset link expired")
)

// EncodeUID encodes the user ID carried by reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// linkSigner signs single-purpose account links. A token is "<issued hour, base 36>.<mac>" and
// dies as soon as the account it was minted for changes: new password, login, role or email
// change, deactivation.
type linkSigner struct {
	purpose string
	key     []byte
	ttl     time.Duration
}

func newLinkSigner(purpose, secretKey string, ttl time.Duration) linkSigner {
	key := sha256.Sum256([]byte("admitflow:" + purpose + ":" + secretKey))
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return linkSigner{purpose: purpose, key: key[:], ttl: ttl}
}

func resetLinks(secretKey string, ttl time.Duration) linkSigner {
	return newLinkSigner(purposePasswordReset, secretKey, ttl)
}

func hoursSinceEpoch(t time.Time) int64 {
	return t.Unix() / int64(time.Hour/time.Second)
}

func (s linkSigner) make(usr User) string {
	issued := hoursSinceEpoch(nowFunc())
	return strconv.FormatInt(issued, 36) + "." + s.mac(usr, issued)
}

func (s linkSigner) check(usr User, token string) error {
	issuedB36, mac, ok := strings.Cut(token, ".")
	if !ok || mac == "" {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(issuedB36, 36, 64)
	if err != nil {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(mac), []byte(s.mac(usr, issued))) {
		return errInvalidToken
	}

	now := hoursSinceEpoch(nowFunc())
	if issued > now {
		return errInvalidToken
	}
	if time.Duration(now-issued)*time.Hour > s.ttl {
		return errTokenExpired
	}
	return nil
}

// mac covers every account field whose change must void outstanding links.
func (s linkSigner) mac(usr User, issued int64) string {
	h := hmac.New(sha256.New, s.key)
	for _, part := range []string{
		s.purpose,
		usr.ID,
		usr.Email,
		usr.Role,
		strconv.FormatBool(usr.IsActive),
		string(usr.PasswordHash),
		lastLoginStamp(usr),
		strconv.FormatInt(issued, 10),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func lastLoginStamp(usr User) string {
	if usr.LastLogin.IsZero() {
		return ""
	}
	return usr.LastLogin.UTC().Format(time.RFC3339Nano)
}
