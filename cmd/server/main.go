// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/digimarketingai/keyterms-server/internal/api"
	"github.com/digimarketingai/keyterms-server/internal/app"
	"github.com/digimarketingai/keyterms-server/internal/config"
	"github.com/digimarketingai/keyterms-server/internal/utils"
)

func main() {
	log.Println("启动 keyterms-server...")

	// 1. 初始化配置系统
	if err := config.InitConfig(); err != nil {
		log.Fatalf("初始化配置失败: %v", err)
	}
	cfg := config.GetCurrentConfig()
	log.Printf("配置加载完成，端口: %s", cfg.Port)

	// 2. 初始化日志
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		log.Printf("警告: 初始化日志文件失败: %v", err)
	}

	// 3. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Println("所有服务初始化完成")

	// 4. 设置路由
	handlers, err := app.BuildHandlers()
	if err != nil {
		log.Fatalf("装配处理器失败: %v", err)
	}
	router := api.SetupRouter(handlers, cfg.DebugMode)

	// 5. 启动服务器
	log.Printf("服务器启动在端口 %s", cfg.Port)
	setupGracefulShutdown(router, cfg.Port)
}

// 优雅关闭函数
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// 在新的 goroutine 中启动服务器
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器强制关闭: %v", err)
	}

	log.Println("服务器已关闭")
}
