// Package handle 提供请求处理器的实现，用于处理HTTP请求.
package handle

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/rule"
)

func checkUser(c *gin.Context) (string, error) {
	// 提取用户标识：Header 优先 -> query 参数 -> 默认 test-user（便于测试）
	user := c.GetHeader("X-User")
	if user == "" {
		user = c.Query("user")
	}
	// 测试默认值，不为 Release 模式时
	if user == "" && gin.Mode() != gin.ReleaseMode {
		user = "test-user"
	}

	user = strings.TrimSpace(user)

	if err := rule.ValidateVar(user, "required,max=255"); err != nil {
		return "", err
	}

	return user, nil
}
