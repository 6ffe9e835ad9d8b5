// Package token 生成不透明的会话令牌。
// 服务端只保存令牌的SHA-256摘要，令牌原文只出现在客户端。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes 是令牌的随机字节数。
const tokenBytes = 32

// Generate 生成一个密码学安全的随机令牌，使用URL安全的Base64编码。
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("无法生成会话令牌: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash 返回令牌的十六进制SHA-256摘要，用作存储键。
func Hash(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// WellFormed 检查令牌的格式，格式错误的令牌无需查询存储即可拒绝。
func WellFormed(tok string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	return err == nil && len(raw) == tokenBytes
}
