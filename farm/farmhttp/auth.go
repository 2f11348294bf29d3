package farmhttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid      = errors.New("farm token invalid")
	ErrUnexpectedJwtAlg  = errors.New("unexpected jwt signing algorithm")
	ErrMissingBearerAuth = errors.New("missing bearer authorization")
)

// SignFarmToken issues a short lived HS256 token identifying the sending node.
func SignFarmToken(secret []byte, node string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": node,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// VerifyFarmToken validates the token and returns the sending node name.
func VerifyFarmToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedJwtAlg
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrTokenInvalid
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrTokenInvalid
	}
	return sub, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	auths := strings.Split(auth, " ")
	if len(auths) != 2 {
		return "", ErrMissingBearerAuth
	}
	if strings.TrimSpace(auths[0]) != "Bearer" {
		return "", ErrMissingBearerAuth
	}
	return strings.TrimSpace(auths[1]), nil
}
