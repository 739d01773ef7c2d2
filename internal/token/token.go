// Package token 签发与校验携带在链接里的小段文本,
// 典型用途是评论退订链接:无需登录,凭签名即可证明来源。
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidToken 表示令牌缺段、payload 损坏或签名不匹配。
var ErrInvalidToken = errors.New("invalid token")

// Signer 用 HMAC-SHA256 对 payload 签名,格式为
// base64url(payload) + "." + base64url(mac),两段都不带填充。
type Signer struct {
	secret []byte
}

// NewSigner 以给定密钥构建 Signer。密钥为空时签名仍可工作,
// 但所有实例间互通,调用方应保证密钥非空。
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign 对 payload 签名并编码成适合放进 URL 查询参数的字符串。
func (s *Signer) Sign(payload string) string {
	mac := s.mac([]byte(payload))
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(payload)) + "." + enc.EncodeToString(mac)
}

// Verify 校验令牌并返回原始 payload。
func (s *Signer) Verify(token string) (string, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidToken
	}
	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(body)
	if err != nil {
		return "", ErrInvalidToken
	}
	got, err := enc.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal(got, s.mac(payload)) {
		return "", ErrInvalidToken
	}
	return string(payload), nil
}

func (s *Signer) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return h.Sum(nil)
}

// NewRandomSecret 生成一个随机密钥,供未配置密钥时的进程内使用;
// 重启后旧令牌全部失效。
func NewRandomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 不可用的环境本身已不可信,直接中止。
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
