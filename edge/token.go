package edge

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 校验失败的三种形态。对调用方都是拒绝，但日志里要能区分。
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims 从凭证里解出的身份信息，网关以请求头形式透传给上游
type Claims struct {
	Subject   string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerifyToken 校验签名凭证并返回身份信息。算法固定钉死在 HS256，
// 绝不从凭证头推断，防止算法混淆攻击。
func VerifyToken(tokenString string, secret []byte) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrTokenSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}
	c := &Claims{}
	if sub, ok := mc["sub"].(string); ok {
		c.Subject = sub
	}
	if name, ok := mc["username"].(string); ok {
		c.Username = name
	}
	if iat, ok := mc["iat"].(float64); ok {
		c.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrTokenMalformed)
	}
	return c, nil
}
