package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/handle"
)

// RegisterFingerprintRoutes 注册指纹相关路由.
// 绑定的路径（假定上层会用 g.Group("/fingerprints")）：
//
//	POST   /                 -> GenerateFingerprint  同步生成
//	POST   /async            -> RequestFingerprint   异步投递
//	GET    /                 -> ListFingerprints     按用户分页
//	GET    /exists           -> AssetExists          资产探测
//	GET    /:asset_id        -> GetFingerprint
//	DELETE /:asset_id        -> DeleteFingerprint
func RegisterFingerprintRoutes(g *gin.RouterGroup) {
	fp := g.Group("/fingerprints")
	{
		fp.POST("", handle.GenerateFingerprint)
		fp.POST("/async", handle.RequestFingerprint)
		fp.GET("", handle.ListFingerprints)
		fp.GET("/exists", handle.AssetExists)
		fp.GET("/:asset_id", handle.GetFingerprint)
		fp.DELETE("/:asset_id", handle.DeleteFingerprint)
	}
}
