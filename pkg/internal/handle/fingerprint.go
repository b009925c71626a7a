package handle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/service"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/log"
)

// GenerateFingerprint 同步生成指纹.
//
// POST /api/v1/fingerprints
func GenerateFingerprint(c *gin.Context) {
	var req types.GenerateFingerprintRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if req.UserID == "" {
		user, err := checkUser(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user: " + err.Error()})
			return
		}
		req.UserID = user
	}

	svc := service.NewFingerprintService(c.Request.Context())

	resp, err := svc.Generate(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, fingerprint.ErrUnsupportedType):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrDuplicateAsset):
			status = http.StatusConflict
		}

		log.Logger().Error().Err(err).
			Str("asset_id", req.AssetID).
			Str("object_key", req.ObjectKey).
			Msg("指纹生成失败")
		c.JSON(status, gin.H{"error": err.Error(), "asset_id": req.AssetID})

		return
	}

	c.JSON(http.StatusCreated, resp)
}

// RequestFingerprint 异步生成指纹: 仅投递 ms.fingerprint.requested 事件.
//
// POST /api/v1/fingerprints/async
func RequestFingerprint(c *gin.Context) {
	var req types.GenerateFingerprintRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	force := c.Query("force") == "true"

	svc := service.NewFingerprintService(c.Request.Context())

	if err := svc.PublishRequested(&req, force); err != nil {
		log.Logger().Error().Err(err).Str("asset_id", req.AssetID).Msg("指纹生成请求投递失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusAccepted, gin.H{"asset_id": req.AssetID, "status": "queued", "force": force})
}

// GetFingerprint 按资产 ID 查询指纹.
//
// GET /api/v1/fingerprints/:asset_id
func GetFingerprint(c *gin.Context) {
	assetID := c.Param("asset_id")
	if assetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_id is required"})
		return
	}

	svc := service.NewFingerprintService(c.Request.Context())

	resp, err := svc.GetByAssetID(c.Request.Context(), assetID)
	if err != nil {
		if errors.Is(err, service.ErrFingerprintNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fingerprint not found", "asset_id": assetID})
			return
		}

		log.Logger().Error().Err(err).Str("asset_id", assetID).Msg("指纹查询失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListFingerprints 按用户分页列出指纹.
//
// GET /api/v1/fingerprints?limit=20&offset=0
func ListFingerprints(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user: " + err.Error()})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	svc := service.NewFingerprintService(c.Request.Context())

	items, err := svc.ListByUser(c.Request.Context(), user, limit, offset)
	if err != nil {
		log.Logger().Error().Err(err).Str("user", user).Msg("指纹列表查询失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fingerprints": items,
		"count":        len(items),
		"limit":        limit,
		"offset":       offset,
	})
}

// DeleteFingerprint 删除指纹(软删除).
//
// DELETE /api/v1/fingerprints/:asset_id
func DeleteFingerprint(c *gin.Context) {
	assetID := c.Param("asset_id")
	if assetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_id is required"})
		return
	}

	svc := service.NewFingerprintService(c.Request.Context())

	if err := svc.DeleteByAssetID(c.Request.Context(), assetID); err != nil {
		if errors.Is(err, service.ErrFingerprintNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fingerprint not found", "asset_id": assetID})
			return
		}

		log.Logger().Error().Err(err).Str("asset_id", assetID).Msg("指纹删除失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"asset_id": assetID, "status": "deleted"})
}

// AssetExists 查询对象存储中资产是否存在，供上游在发起生成前探测.
//
// GET /api/v1/fingerprints/exists?object_key=...
func AssetExists(c *gin.Context) {
	objectKey := c.Query("object_key")
	if objectKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_key is required"})
		return
	}

	svc := service.NewFingerprintService(c.Request.Context())

	exists, err := svc.AssetExists(c.Request.Context(), objectKey)
	if err != nil {
		log.Logger().Error().Err(err).Str("object_key", objectKey).Msg("资产存在性检查失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, gin.H{"object_key": objectKey, "exists": exists})
}
