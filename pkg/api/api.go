// Package api 定义HTTP服务的接口注册入口.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/router"
)

// RegisterGroup 注册指纹服务相关的路由组到传入的 gin 引擎.
func RegisterGroup(e *gin.Engine) *gin.Engine {
	router.Register(e.Group("/api/v1"))

	return e
}
