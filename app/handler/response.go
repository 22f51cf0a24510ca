package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorResponse 统一错误响应
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// notFound 404 响应
func notFound(c *gin.Context, message string) {
	errorResponse(c, http.StatusNotFound, message)
}
