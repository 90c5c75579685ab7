package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bingo-server/common"
	"bingo-server/common/logger"
	"bingo-server/internal/config"
	infmysql "bingo-server/internal/infra/mysql"
	infrds "bingo-server/internal/infra/redis"
	"bingo-server/internal/notify"
	"bingo-server/internal/service"
	mysqlstore "bingo-server/internal/store/mysql"
	"bingo-server/internal/worker"
	"bingo-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 加载配置（Nacos 优先，本地文件兜底）
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.Set(cfg)
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 2. 初始化 MySQL 与仓储
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db)
	st := mysqlstore.New(db)

	// 3. 初始化 Redis（不可用时事件通知与快照缓存自动降级）
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(ctx, 3*time.Second); err != nil {
		logger.Warn("redis unreachable, notifier degraded", zap.Error(err))
	}

	// 4. 装配服务层
	service.InitDefaults(st, notify.New())

	// 5. 配置热更新
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.Set(newCfg)
		if oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
		logger.Info("config reloaded")
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 6. Outbox 事件分发器
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(ctx, &wg, st)

	// 7. Prometheus 指标端口（与业务端口隔离）
	if cfg.Observability.EnableProm {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			addr := cfg.Observability.PromAddr
			if addr == "" {
				addr = ":9100"
			}
			logger.Info("prometheus metrics listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server exited", zap.Error(err))
			}
		}()
	}

	// 8. 注册路由并启动 HTTP 服务
	routers.Register()
	beego.BConfig.CopyRequestBody = true
	beego.BConfig.RunMode = beego.PROD
	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}

	// 监听退出信号，优雅停机
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		wg.Wait()
		if err := infrds.Close(); err != nil {
			logger.Warn("close redis client failed", zap.Error(err))
		}
		logger.Sync()
		os.Exit(0)
	}()

	logger.Info("bingo-server starting", zap.Int("port", beego.BConfig.Listen.HTTPPort))
	beego.Run(fmt.Sprintf(":%d", beego.BConfig.Listen.HTTPPort))
}
