package shared

import (
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	RespondErrorWithData(c, code, msg, nil, err)
}

// RespondErrorWithData 返回带数据的错误响应，并在有原始错误时记录日志。
func RespondErrorWithData(c *gin.Context, code int, msg string, data interface{}, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		log := RequestLog(c).Errorw
		if code < response.CodeInternal {
			log = RequestLog(c).Warnw
		}
		log("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	if data == nil {
		response.Error(c, appErr.Code, appErr.Message)
		return
	}
	response.ErrorWithData(c, appErr.Code, appErr.Message, data)
}
