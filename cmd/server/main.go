package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"docvault/internal/auth"
	"docvault/internal/cache"
	"docvault/internal/config"
	"docvault/internal/domain/models/docsystem"
	"docvault/internal/domain/repositories"
	docsysRepo "docvault/internal/domain/repositories/docsystem"
	docsysSvc "docvault/internal/domain/services/docsystem"
	"docvault/internal/handler"
	"docvault/internal/middleware"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	postgresDocsys "docvault/internal/repository/postgres/docsystem"
	serviceDocsys "docvault/internal/service/docsystem"
	"docvault/internal/storage"
	blobmem "docvault/internal/storage/memory"
	blobs3 "docvault/internal/storage/s3"
)

// repositorySet is the metadata backend selected by STORE_BACKEND
type repositorySet struct {
	folders   docsysRepo.FolderRepository
	files     docsysRepo.FileRepository
	versions  docsysRepo.VersionRepository
	audit     docsysRepo.AuditRepository
	txManager repositories.TransactionManager
	health    handler.Pinger
	close     func()
}

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging, optionally teed to a rotated log file
	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}
	logger := config.NewLogger(cfg.Environment, logOutput)
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"blob_backend", cfg.BlobBackend,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()

	repos, err := setupRepositories(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up metadata store: %v", err)
	}
	defer repos.close()

	blobStore, err := setupBlobStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up blob store: %v", err)
	}

	jwtVerifier, err := setupVerifier(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	protected, err := protectedContexts(cfg.ProtectedContexts)
	if err != nil {
		log.Fatalf("Invalid protected contexts: %v", err)
	}

	// Create services
	authorizer := auth.NewRoleAuthorizer(cfg.PrivilegedRoles)
	pathCache := cache.NewPathCache(cfg.CacheSize, cfg.CacheTTL)
	auditLog := serviceDocsys.NewAuditLog(repos.audit, logger)
	validator := serviceDocsys.NewResourceValidator(repos.folders)
	anchors := serviceDocsys.NewProtectedAnchorRegistry(repos.files, protected)

	folderService := serviceDocsys.NewFolderService(repos.folders, repos.files, repos.txManager, blobStore,
		anchors, auditLog, pathCache, validator, logger)
	fileService := serviceDocsys.NewFileService(repos.files, repos.versions, repos.folders, repos.txManager,
		blobStore, auditLog, validator, logger)
	lifecycleService := serviceDocsys.NewLifecycleService(folderService, fileService, repos.folders, repos.files,
		repos.versions, repos.txManager, blobStore, auditLog, authorizer, pathCache, logger)
	treeService := serviceDocsys.NewTreeService(repos.folders, repos.files, logger)

	logger.Info("services initialized")

	// API routes (Go 1.22+ enhanced patterns), all behind authentication
	apiMux := http.NewServeMux()
	handler.RegisterRoutes(apiMux, handler.Handlers{
		Folder: handler.NewFolderHandler(folderService, lifecycleService, logger),
		File:   handler.NewFileHandler(fileService, lifecycleService, logger),
		Audit:  handler.NewAuditHandler(auditLog, logger),
		Tree:   handler.NewTreeHandler(treeService, logger),
	})

	// Public routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.NewHealthHandler(repos.health, logger).HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/api/", middleware.AuthMiddleware(jwtVerifier, authorizer, logger)(apiMux))

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Logging → Metrics → Routes
	var h http.Handler = mux
	h = middleware.Metrics()(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - outermost so OPTIONS pre-flight requests never reach auth
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition", "X-File-Version", "Retry-After"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     h,
		ReadTimeout: 5 * time.Minute, // large uploads
		IdleTimeout: 60 * time.Second,
	}

	// Start server, then wait for a shutdown signal
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func setupRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositorySet, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory metadata store; data is lost on restart")
		store := memory.NewStore()
		return &repositorySet{
			folders:   memory.NewFolderRepository(store),
			files:     memory.NewFileRepository(store),
			versions:  memory.NewVersionRepository(store),
			audit:     memory.NewAuditRepository(store),
			txManager: memory.NewTransactionManager(store),
			close:     func() {},
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.DatabaseURL, cfg.TablePrefix, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", "max_conns", pool.Config().MaxConns)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	return &repositorySet{
		folders:   postgresDocsys.NewFolderRepository(repoConfig),
		files:     postgresDocsys.NewFileRepository(repoConfig),
		versions:  postgresDocsys.NewVersionRepository(repoConfig),
		audit:     postgresDocsys.NewAuditRepository(repoConfig),
		txManager: postgres.NewTransactionManager(pool, logger),
		health:    pool,
		close:     pool.Close,
	}, nil
}

func setupBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docsysSvc.BlobStore, error) {
	if cfg.BlobBackend == config.BackendMemory {
		logger.Warn("using in-memory blob store; content is lost on restart")
		return storage.NewInstrumented(blobmem.NewBlobStore()), nil
	}

	s3cfg := blobs3.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		KeyPrefix:       cfg.S3KeyPrefix,
	}
	client, err := blobs3.NewClient(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	store, err := blobs3.NewBlobStore(ctx, client, s3cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("blob store connected", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
	return storage.NewInstrumented(store), nil
}

func setupVerifier(cfg *config.Config, logger *slog.Logger) (auth.JWTVerifier, error) {
	if cfg.JWKSURL != "" {
		return auth.NewJWKSVerifier(cfg.JWKSURL, logger)
	}
	return auth.NewHMACVerifier([]byte(cfg.JWTSecret), logger)
}

func protectedContexts(names []string) ([]docsystem.OwnerContext, error) {
	out := make([]docsystem.OwnerContext, 0, len(names))
	for _, n := range names {
		c := docsystem.OwnerContext(n)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown owner context %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}
