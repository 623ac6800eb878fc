package main

import (
	https_server "LinkMind/api/http"
	"LinkMind/internal/config"
	"LinkMind/pkg/zlog"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()
	host := conf.MainConfig.Host
	port := conf.MainConfig.Port

	// 2. 启动入库任务消费端（Kafka 未配置时自动跳过）
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	https_server.StartIngestConsumer(consumerCtx)

	// 3. 启动 HTTP 服务
	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		zlog.Info(fmt.Sprintf("服务器正在启动，监听地址: %s", addr))
		// 目前使用 HTTP 启动。如果需要 HTTPS，请配置证书并使用 GE.RunTLS
		if err := https_server.GE.Run(addr); err != nil {
			zlog.Fatal("服务器启动失败: " + err.Error())
			return
		}
	}()

	// 4. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 等待退出信号
	<-quit

	zlog.Info("正在关闭服务器...")
	cancelConsumer()
	https_server.Shutdown()

	zlog.Info("服务器已关闭")
}
