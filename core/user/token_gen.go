package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/miradi/core"
)

var (
	tokenKeySalt = []byte("miradi/password-reset")
	tokenEpoch   = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	NowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID encodes the user ID for reset links.
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

// MakeToken returns a password reset token of the form "<hours since epoch, base 36>-<signature>".
// It is invalidated by a password change, a new login, an email change or a deactivation.
func MakeToken(usr User) (string, error) {
	return tokenAt(usr, hoursSinceEpoch(NowFunc()))
}

func verifyToken(usr User, token string) error {
	sep := strings.IndexByte(token, '-')
	if sep <= 0 {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(token[:sep], 36, 64)
	if err != nil || issued < 0 {
		return errInvalidToken
	}

	expected, err := tokenAt(usr, issued)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return errInvalidToken
	}

	if hoursSinceEpoch(NowFunc())-issued > int64(core.Conf.PasswordResetTimeoutDelta/time.Hour) {
		return errTokenExpired
	}
	return nil
}

func tokenAt(usr User, issued int64) (string, error) {
	key := sha256.Sum256(append(append([]byte(nil), tokenKeySalt...), core.Conf.SecretKey...))
	mac := hmac.New(sha256.New, key[:])
	for _, part := range tokenState(usr, issued) {
		if _, err := mac.Write(append(part, 0)); err != nil {
			return "", err
		}
	}
	return strconv.FormatInt(issued, 36) + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// tokenState lists what a token is bound to.
func tokenState(usr User, issued int64) [][]byte {
	lastLogin := ""
	if usr.LastLogin != nil {
		lastLogin = usr.LastLogin.UTC().Format(time.RFC3339Nano)
	}
	return [][]byte{
		[]byte(usr.ID),
		[]byte(usr.Email),
		usr.PasswordHash,
		[]byte(lastLogin),
		[]byte(strconv.FormatBool(usr.IsActive)),
		[]byte(strconv.FormatInt(issued, 10)),
	}
}

func hoursSinceEpoch(t time.Time) int64 {
	return int64(t.Sub(tokenEpoch) / time.Hour)
}
