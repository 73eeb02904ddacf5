package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
)

// SendLogAPI 发送历史API
type SendLogAPI struct {
	service *service.SendLogService
}

// NewSendLogAPI 创建发送历史API
func NewSendLogAPI(service *service.SendLogService) *SendLogAPI {
	return &SendLogAPI{
		service: service,
	}
}

// RegisterRoutes 注册路由，删除和清理操作需要认证
func (api *SendLogAPI) RegisterRoutes(router *gin.RouterGroup, authRequired gin.HandlerFunc) {
	logs := router.Group("/logs/sends")
	{
		logs.GET("", api.QueryLogs)                  // 查询发送记录
		logs.GET("/latest", api.GetLatestLogs)       // 获取最新记录
		logs.GET("/stats", api.GetStats)             // 获取统计信息
		logs.GET("/errors", api.GetErrorLogs)        // 获取失败记录
		logs.GET("/trace/:trace_id", api.GetByTrace) // 按追踪ID查询
		logs.GET("/export", api.ExportLogs)          // 导出记录

		logsRequired := logs.Group("")
		logsRequired.Use(authRequired)
		{
			logsRequired.POST("/cleanup", api.CleanupLogs) // 按保留天数清理
			logsRequired.DELETE("", api.DeleteBefore)      // 删除指定时间之前的记录
		}
	}
}

// QueryLogs 查询发送记录
func (api *SendLogAPI) QueryLogs(c *gin.Context) {
	query := parseSendLogQuery(c)

	// 分页参数
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	query.OrderBy = c.DefaultQuery("order_by", "created_at DESC")

	logs, total, err := api.service.Query(query)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询发送记录失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   logs,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetLatestLogs 获取最新记录
func (api *SendLogAPI) GetLatestLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	kind := models.SendKind(c.Query("kind"))

	logs, err := api.service.GetLatest(limit, kind)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "获取最新记录失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}

// GetStats 获取统计信息
func (api *SendLogAPI) GetStats(c *gin.Context) {
	var startTime, endTime *time.Time

	// 解析时间范围
	if start := c.Query("start_time"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			startTime = &t
		}
	}
	if end := c.Query("end_time"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			endTime = &t
		}
	}

	stats, err := api.service.GetStats(startTime, endTime)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "获取统计失败"))
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetErrorLogs 获取失败记录
func (api *SendLogAPI) GetErrorLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := api.service.GetErrorLogs(limit)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "获取失败记录失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}

// GetByTrace 按追踪ID查询
func (api *SendLogAPI) GetByTrace(c *gin.Context) {
	traceID := c.Param("trace_id")

	logs, err := api.service.GetByTraceID(traceID)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询追踪记录失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}

// ExportLogs 导出记录
func (api *SendLogAPI) ExportLogs(c *gin.Context) {
	query := parseSendLogQuery(c)

	// 导出上限
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "1000"))
	query.OrderBy = c.DefaultQuery("order_by", "created_at DESC")

	data, err := api.service.Export(query)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "导出失败"))
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=send_logs_export.json")
	c.Data(http.StatusOK, "application/json", data)
}

// CleanupLogs 按保留天数清理
func (api *SendLogAPI) CleanupLogs(c *gin.Context) {
	retentionDays, _ := strconv.Atoi(c.DefaultPostForm("retention_days", "30"))
	if retentionDays < 1 {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam, "保留天数必须大于0"))
		return
	}

	count, err := api.service.CleanupBefore(time.Now().AddDate(0, 0, -retentionDays))
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "清理失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "清理成功",
		"deleted":        count,
		"retention_days": retentionDays,
	})
}

// DeleteBefore 删除指定时间之前的记录
func (api *SendLogAPI) DeleteBefore(c *gin.Context) {
	before := c.Query("before")
	if before == "" {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam, "缺少before参数"))
		return
	}

	t, err := time.Parse(time.RFC3339, before)
	if err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam, "before参数必须是RFC3339格式"))
		return
	}

	count, err := api.service.CleanupBefore(t)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "删除失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "删除成功",
		"deleted": count,
		"before":  t.Format(time.RFC3339),
	})
}

// parseSendLogQuery 解析查询参数
func parseSendLogQuery(c *gin.Context) *models.SendLogQuery {
	query := &models.SendLogQuery{}

	if kind := c.Query("kind"); kind != "" {
		query.Kind = models.SendKind(kind)
	}
	if slotNo := c.Query("slot_no"); slotNo != "" {
		if v, err := strconv.Atoi(slotNo); err == nil {
			query.SlotNo = &v
		}
	}
	query.Port = c.Query("port")
	query.Command = c.Query("command")
	query.TraceID = c.Query("trace_id")

	// 发送结果过滤
	if success := c.Query("success"); success != "" {
		if v, err := strconv.ParseBool(success); err == nil {
			query.Success = &v
		}
	}

	// 时间范围
	if startTime := c.Query("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.StartTime = &t
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.EndTime = &t
		}
	}

	return query
}
