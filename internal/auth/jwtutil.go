package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

const tokenAudience = "docuhub-portal"

var (
	b64 = base64.RawURLEncoding

	// HS256 header, fixed for every portal token.
	tokenHeader = b64.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	errMalformedToken = errors.New("malformed token")
	errBadSignature   = errors.New("signature mismatch")
)

type tokenClaims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

func signToken(claims tokenClaims, secret []byte) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := tokenHeader + "." + b64.EncodeToString(payload)
	return unsigned + "." + b64.EncodeToString(mac(unsigned, secret)), nil
}

// parseToken checks the signature and audience. Expiry is left to the caller, which
// owns the clock.
func parseToken(token string, secret []byte) (tokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != tokenHeader {
		return tokenClaims{}, errMalformedToken
	}
	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return tokenClaims{}, errMalformedToken
	}
	if !hmac.Equal(sig, mac(parts[0]+"."+parts[1], secret)) {
		return tokenClaims{}, errBadSignature
	}
	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return tokenClaims{}, errMalformedToken
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Audience != tokenAudience {
		return tokenClaims{}, errMalformedToken
	}
	return claims, nil
}

func mac(data string, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(data))
	return h.Sum(nil)
}
