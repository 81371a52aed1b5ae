package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/newsboard/config"
	"github.com/cppla/newsboard/models"
	"github.com/cppla/newsboard/routes"
	"github.com/cppla/newsboard/services"
	"github.com/cppla/newsboard/store"
	"github.com/cppla/newsboard/utils"
	"github.com/cppla/newsboard/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		utils.Sugar.Fatalf("opening %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close()

	var (
		rc    *redis.Client
		cache utils.Cache = utils.NopCache{}
	)
	if cfg.RedisEnabled {
		rc, err = utils.NewRedis(ctx, cfg)
		if err != nil {
			utils.Logger.Warn("redis unavailable, list cache disabled and revocations kept in memory", zap.Error(err))
		} else {
			defer rc.Close()
			cache = utils.NewRedisCache(rc, cfg.CacheTTL())
		}
	}

	categories, err := st.ListCategories(ctx)
	if err != nil {
		utils.Sugar.Fatalf("loading categories: %v", err)
	}
	schema := validation.New(models.CategoryNames(categories))
	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL())

	r := routes.SetupRouter(routes.Deps{
		Config: cfg,
		Posts:  services.NewPostService(st, schema, cache),
		Auth:   services.NewAuthService(st, schema, issuer, utils.NewTokenBlacklist(rc), cache),
	})

	utils.Sugar.Infof("Starting server on port %s with %s store (graceful)", cfg.AppPort, cfg.StoreDriver)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
