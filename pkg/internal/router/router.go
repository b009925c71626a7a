// Package router 管理路由配置，用于设置HTTP服务的路由规则.
package router

import (
	"github.com/gin-gonic/gin"
)

// Register 将全部业务路由绑定到传入的 gin 路由组.
// 处理器的实现由 pkg/internal/handle 提供, router 包只负责路径绑定.
func Register(group *gin.RouterGroup) {
	RegisterFingerprintRoutes(group)
	RegisterHealthCheckRoute(group)
}
