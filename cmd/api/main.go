package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cipherpanel/internal/core/auth"
	"cipherpanel/internal/core/cache"
	"cipherpanel/internal/core/config"
	"cipherpanel/internal/core/database"
	"cipherpanel/internal/core/events"
	"cipherpanel/internal/core/logger"
	"cipherpanel/internal/core/server"
	"cipherpanel/internal/feature/layout"
	"cipherpanel/internal/feature/user"
	"cipherpanel/internal/fhe"
	"cipherpanel/internal/oracle"
	"cipherpanel/internal/transport/http/handler"
	"cipherpanel/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		models := append(layout.Models(), &user.UserModel{})
		if err := db.AutoMigrate(models...); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// CKKS 上下文。内嵌预言机部署需要私钥。
	material := mustLoadMaterial(cfg, log)
	if material.SK == nil {
		log.Fatal("key dir holds no secret key; the embedded oracle cannot decrypt",
			zap.String("key_dir", cfg.FHE.KeyDir))
	}
	engine := fhe.NewEngine(material, cfg.FHE.MagnitudeBound, cfg.FHE.GoldschmidtIters)
	holder, err := fhe.NewKeyHolder(material)
	if err != nil {
		log.Fatal("key holder", zap.Error(err))
	}

	// 解密预言机（同进程 worker）
	prover := oracle.NewProver(cfg.Oracle.Secret)
	worker := oracle.NewWorker(holder, prover, cfg.Oracle.QueueSize, log)

	// Redis 可选：缓存 + 事件
	var (
		rcache   *cache.Cache
		notifier events.Notifier
	)
	if cfg.Redis.Enable {
		rcache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		notifier = events.NewRedisNotifier(rcache.RDB, log)
		log.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	}

	svc := layout.NewService(layout.Options{
		DB:        db,
		Eval:      engine,
		Oracle:    worker,
		Verifier:  prover,
		Notifier:  notifier,
		Cache:     rcache,
		Refresher: holder,
		Log:       log,
	})
	worker.Bind(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	if err := svc.InitWeights(ctx); err != nil {
		log.Fatal("seed weights", zap.Error(err))
	}

	// JWT
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	ah := &handler.AuthHandler{DB: db, JWT: jwter, Log: log}
	lh := &handler.LayoutHandler{Svc: svc, Log: log}
	r := router.NewAPIEngine(log, cfg, jwter, ah, lh)

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api start FAILED", zap.Error(err))
		}
	}()
	log.Info("api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel() // stop the oracle worker first; in-flight callbacks finish or drop
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	log.Info("api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

func mustLoadMaterial(cfg *config.Config, l *zap.Logger) *fhe.Material {
	m, err := fhe.Load(cfg.FHE.KeyDir)
	if err == nil {
		l.Info("ckks context loaded", zap.String("key_dir", cfg.FHE.KeyDir))
		return m
	}
	if !cfg.FHE.AutoKeygen {
		l.Fatal("load ckks context", zap.Error(err))
	}

	// dev convenience: generate a throwaway context and persist it
	o := fhe.DefaultOptions()
	if cfg.FHE.LogN > 0 {
		o.LogN = cfg.FHE.LogN
	}
	if cfg.FHE.Levels > 0 {
		o.Levels = cfg.FHE.Levels
	}
	if cfg.FHE.LogScale > 0 {
		o.LogScale = cfg.FHE.LogScale
	}
	l.Warn("no ckks context found, generating one",
		zap.Int("log_n", o.LogN), zap.Int("levels", o.Levels))
	m, err = fhe.Generate(o)
	if err != nil {
		l.Fatal("ckks keygen", zap.Error(err))
	}
	if err := m.Save(cfg.FHE.KeyDir, true); err != nil {
		l.Fatal("save ckks context", zap.Error(err))
	}
	return m
}
