package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"live-fixture-service/logger"
	"live-fixture-service/pkg/common"
)

// OperatorClaims 操作员令牌
type OperatorClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type operatorKey struct{}

// Authenticator 校验 HS256 令牌与角色
type Authenticator struct {
	secret []byte
	role   string
}

// NewAuthenticator 创建鉴权器
func NewAuthenticator(secret, role string) *Authenticator {
	return &Authenticator{secret: []byte(secret), role: role}
}

// IssueToken 签发令牌 (运维工具与测试使用)
func (a *Authenticator) IssueToken(sub, role string, ttl time.Duration) (string, error) {
	claims := OperatorClaims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseValidate 解析并校验签名与有效期
func (a *Authenticator) ParseValidate(tokenStr string) (*OperatorClaims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &OperatorClaims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*OperatorClaims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// RequireOperator 只允许操作员角色调用写接口. 缺失/无效令牌 401, 角色不符 403.
func (a *Authenticator) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody("UNAUTHORIZED", "missing bearer token"))
			return
		}

		claims, err := a.ParseValidate(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("UNAUTHORIZED", "invalid token"))
			return
		}
		if claims.Role != a.role {
			writeJSON(w, http.StatusForbidden, errorBody("FORBIDDEN", "operator role required"))
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey{}, claims.Sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFrom 当前请求的操作员
func OperatorFrom(ctx context.Context) (string, error) {
	sub, ok := ctx.Value(operatorKey{}).(string)
	if !ok || sub == "" {
		return "", common.ErrUnauthorized
	}
	return sub, nil
}

// auditOperator 记录操作员写操作, 必须挂在 RequireOperator 之后
func auditOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, err := OperatorFrom(r.Context())
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("UNAUTHORIZED", err.Error()))
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Printf("[Audit] operator=%s %s %s -> %d", operator, r.Method, r.URL.Path, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
