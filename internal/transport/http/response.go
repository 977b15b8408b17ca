package httptransport

import (
	"github.com/gin-gonic/gin"
)

// errorResponse 统一错误响应体
type errorResponse struct {
	Error string `json:"error"`
}

// actionResponse 带 success 标记的操作结果响应体
type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// fail 按状态码返回错误响应。
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}
