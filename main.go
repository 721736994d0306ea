package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"habitlog-api/api"
	"habitlog-api/assetcache"
	"habitlog-api/domain"
	"habitlog-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing storage config")
	}
	tableName := os.Getenv("DAILY_TABLE")
	if tableName == "" {
		tableName = "dailyData"
	}

	catalog := domain.DefaultCatalog()
	if raw := os.Getenv("TASK_CATALOG"); raw != "" {
		var err error
		catalog, err = domain.ParseCatalog([]byte(raw))
		if err != nil {
			log.Fatalf("invalid TASK_CATALOG: %v", err)
		}
	}

	store, err := storage.New(connStr, tableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	cacheTTL := 12 * time.Hour
	if v := os.Getenv("RECORD_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid RECORD_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}

	ctx := context.Background()
	records := storage.NewCache(store, rc, cacheTTL)
	if err := records.Open(ctx); err != nil {
		log.Fatalf("open record store: %v", err)
	}

	logger := log.New()

	assetOrigin := os.Getenv("ASSET_ORIGIN")
	assetVersion := os.Getenv("ASSET_CACHE_VERSION")
	assetManifest := splitManifest(os.Getenv("ASSET_MANIFEST"))
	if assetOrigin == "" || assetVersion == "" {
		log.Fatal("missing asset cache config")
	}
	assets, err := assetcache.New(rc, nil, assetOrigin, assetVersion, logger)
	if err != nil {
		log.Fatalf("asset cache: %v", err)
	}
	// Install must complete before the generation is served, and activation
	// must finish pruning before it is the controlling generation.
	if len(assetManifest) > 0 {
		if err := assets.Install(ctx, assetManifest); err != nil {
			log.Fatalf("install assets: %v", err)
		}
	}
	if err := assets.Activate(ctx); err != nil {
		log.Fatalf("activate asset cache: %v", err)
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.Decompress())

	api.Register(e, records, catalog, logger)
	e.GET("/assets/*", assetcache.Handler(assets))

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func splitManifest(raw string) []string {
	if raw == "" {
		return nil
	}
	paths := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
