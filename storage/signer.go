package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 签名令牌允许的操作
const (
	OpUpload   = "put"
	OpDownload = "get"
)

// BlobPathPrefix 签名 URL 的路由前缀，由 api 层的 blob 处理器承接
const BlobPathPrefix = "/blobs/"

// BlobClaims 签名令牌载荷
type BlobClaims struct {
	Key         string `json:"key"`
	Op          string `json:"op"`
	ContentType string `json:"ct,omitempty"`
	jwt.RegisteredClaims
}

// Signer 为不支持原生预签名的后端（local / webdav / memory）签发 URL
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewSigner 创建签名器，baseURL 为对外访问地址
func NewSigner(secret, baseURL string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &Signer{
		secret:  []byte(secret),
		baseURL: baseURL,
		now:     time.Now,
	}, nil
}

// SignURL 生成 {baseURL}/blobs/{key}?token=...
func (s *Signer) SignURL(op, key, contentType string, ttl time.Duration) (string, error) {
	if !IsValidStoragePath(key) {
		return "", fmt.Errorf("invalid storage path: %s", key)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := s.now()
	claims := BlobClaims{
		Key:         key,
		Op:          op,
		ContentType: contentType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return s.baseURL + BlobPathPrefix + key + "?token=" + url.QueryEscape(token), nil
}

// Verify 校验令牌并确认操作与键一致
func (s *Signer) Verify(tokenString, op, key string) (*BlobClaims, error) {
	claims := &BlobClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Op != op || claims.Key != key {
		return nil, errors.New("token does not grant this operation")
	}
	return claims, nil
}

// tokenPresigner 通过 Signer 实现 Provider 的预签名方法
type tokenPresigner struct {
	signer *Signer
}

func (p tokenPresigner) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if p.signer == nil {
		return "", errors.New("presign is not configured for this storage")
	}
	return p.signer.SignURL(OpUpload, key, contentType, ttl)
}

func (p tokenPresigner) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if p.signer == nil {
		return "", errors.New("presign is not configured for this storage")
	}
	return p.signer.SignURL(OpDownload, key, "", ttl)
}
