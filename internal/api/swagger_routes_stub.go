//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// registerSwaggerRoutes 默认构建不含 Swagger UI，文档入口是 /docs/redoc
func registerSwaggerRoutes(engine *gin.Engine) {}
