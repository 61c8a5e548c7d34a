package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorResponse 统一错误响应结构
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// OK 成功响应（200），body 中的字段与 success 平铺
func OK(c *gin.Context, body gin.H) {
	respond(c, http.StatusOK, body)
}

// Created 创建成功响应（201）
func Created(c *gin.Context, body gin.H) {
	respond(c, http.StatusCreated, body)
}

// Fail 错误响应
func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Success: false, Error: code, Message: message})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, "invalid_request", message)
}

func respond(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}
