// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 文本生成
	v1.POST("/generate", h.Generation.Generate)
	v1.POST("/generate/stream", h.Generation.GenerateStream) // SSE

	// 账户与计费
	account := v1.Group("/account")
	{
		account.GET("/balance", h.Account.GetBalance)
		account.GET("/usage", h.Account.ListUsage)
		account.GET("/usage/summary", h.Account.GetUsageSummary)
	}

	// 项目管理
	projects := v1.Group("/projects")
	{
		projects.GET("", h.Project.ListProjects)
		projects.POST("", h.Project.CreateProject)
		projects.GET("/:pid", h.Project.GetProject)
		projects.GET("/:pid/chapters", h.Chapter.ListChapters)
	}

	// 章节管理
	chapters := v1.Group("/chapters")
	{
		chapters.GET("/:cid", h.Chapter.GetChapter)
	}
}
