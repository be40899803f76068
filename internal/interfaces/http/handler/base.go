// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"quill-ai-api/internal/interfaces/http/dto"
	apperrors "quill-ai-api/pkg/errors"
	"quill-ai-api/pkg/logger"
)

// accountIDFromGin 读取认证中间件注入的账户 ID
func accountIDFromGin(c *gin.Context) string {
	return c.GetString("account_id")
}

// respondError 将错误映射为统一错误响应。
// 应用错误按其错误码映射状态码，其余一律视为内部错误。
func respondError(ctx context.Context, c *gin.Context, err error) {
	if appErr := apperrors.AsAppError(err); appErr != nil {
		detail := &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
		return
	}

	logger.Error(ctx, "unhandled error", err)
	dto.InternalError(c, "internal server error")
}
