package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondOK 返回成功数据
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// respondMessage 返回带提示语的成功响应
func respondMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// respondError 返回统一错误响应
// 调用栈只进日志，不随响应返回
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}

	public := &apperrors.AppError{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(public, c.GetString("request_id")))
}

// respondBindError 请求参数解析失败
func respondBindError(c *gin.Context, err error) {
	respondError(c, apperrors.New(apperrors.ErrInvalidParam, err.Error()))
}
