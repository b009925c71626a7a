// Package textdigest 实现文本归一化与内容摘要.
package textdigest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

// Digest 归一化文本并计算 SHA-256 摘要与基础统计.
// 纯函数: 相同归一化文本必然产生相同哈希，首尾空白不影响结果.
func Digest(text string) *types.TextData {
	normalized := strings.TrimSpace(text)

	sum := sha256.Sum256([]byte(normalized))

	return &types.TextData{
		TextHash:   hex.EncodeToString(sum[:]),
		TextLength: len([]rune(normalized)),
		WordCount:  len(strings.Fields(normalized)),
		LineCount:  countLines(normalized),
	}
}

// DigestFile 读取文本文件并计算摘要.
func DigestFile(path string) (*types.TextData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Digest(string(raw)), nil
}

// countLines 统计归一化文本的行数，空文本为 0 行.
func countLines(s string) int {
	if s == "" {
		return 0
	}

	return strings.Count(s, "\n") + 1
}
