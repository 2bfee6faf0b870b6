package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/authorizer"
	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/handler"
	"github.com/tgmkubi/restaurant-sst-api/internal/metrics"
	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/config"
	"github.com/tgmkubi/restaurant-sst-api/pkg/jwtutil"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
	"github.com/tgmkubi/restaurant-sst-api/pkg/secrets"
)

func main() {
	// Load .env file; env vars set elsewhere take over when it is missing
	_ = godotenv.Load()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: appConfig.ServiceName,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("Starting "+appConfig.ServiceName, appConfig.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secretStore, err := newSecretStore(ctx, appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize secret store", zap.Error(err))
	}

	// Initialize JWT utility
	jwt, err := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      appConfig.JWT.SigningKey,
		PublicKeyPEM:    appConfig.JWT.PublicKeyPEM,
		Issuer:          appConfig.JWT.Issuer,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	})
	if err != nil {
		log.Fatal("Failed to initialize JWT utility", zap.Error(err))
	}
	log.Info("JWT utility initialized")

	// Connection layer: connector dials, registry pools one handle per database
	connector := database.NewConnector(secretStore,
		database.MongoDialer{AppName: appConfig.Mongo.AppName},
		database.OptionsFromConfig(appConfig.Mongo), log)
	registry := database.NewRegistry(connector, log)

	directory := tenant.NewDirectory(registry)
	resolver, err := tenant.NewResolver(directory, registry, appConfig.Tenant, log)
	if err != nil {
		log.Fatal("Failed to initialize tenant resolver", zap.Error(err))
	}
	az := authorizer.New(jwt, resolver, authorizer.ModelUsers{Registry: registry}, log)

	e := newServer(appConfig, registry, directory, resolver, az)

	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := registry.ReleaseAll(shutdownCtx); err != nil {
		log.Error("Failed to close database connections", zap.Error(err))
	}
	resolver.Close()
	log.Info("Server stopped")
}

func newSecretStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (secrets.Store, error) {
	switch cfg.Secrets.Backend {
	case "env":
		return secrets.EnvStore{}, nil
	case "local":
		// local development: the URI comes straight from MONGO_URI
		store := secrets.NewMemoryStore()
		store.SetSecret(cfg.Mongo.SecretName, map[string]string{"connectionUri": os.Getenv("MONGO_URI")})
		return store, nil
	default:
		return secrets.NewAWSStore(ctx, secrets.AWSOptions{
			Region:   cfg.Secrets.Region,
			CacheTTL: cfg.Secrets.CacheTTL,
			Logger:   log,
		})
	}
}

func newServer(cfg *config.Config, registry *database.Registry, directory *tenant.MongoDirectory, resolver *tenant.Resolver, az *authorizer.Authorizer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = mid.ErrorHandler

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	e.Use(mid.RequestIDMiddleware)
	e.Use(metrics.NewHTTPMetrics(cfg.ServiceName).Middleware())
	e.Use(logger.Middleware())

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// Health check endpoint
	health := handler.NewHealthHandler(registry)
	e.GET("/health", health.HealthCheck)

	companies := handler.NewCompanyHandler(directory, registry, resolver, cfg.Server.Domain)

	// Global admin API
	admin := e.Group("/admin",
		mid.AuthorizerMiddleware(az.AuthorizeGlobalAdmin),
		mid.RequireRoles(model.RoleGlobalAdmin),
		mid.GlobalDatabase(registry))
	admin.GET("/company", companies.ListCompanies)
	admin.GET("/company/:id", companies.GetCompany)
	admin.POST("/company", companies.CreateCompany)
	admin.PUT("/company/:id", companies.UpdateCompany)
	admin.DELETE("/company/:id", companies.DeleteCompany)
	admin.GET("/company/:id/admin", companies.ListCompanyAdmins)
	admin.GET("/company/:id/admin/:userId", companies.GetCompanyAdmin)
	admin.POST("/company/:id/admin", companies.CreateCompanyAdmin)
	admin.DELETE("/company/:id/admin/:userId", companies.DeleteCompanyAdmin)

	// Protected tenant API
	api := e.Group("/api")
	api.GET("/me", handler.GetMe,
		mid.AuthorizerMiddleware(az.Authorize),
		mid.RequireRoles(),
		mid.DefaultDatabase(registry))

	tenantAPI := api.Group("/company/:"+mid.CompanyParam,
		mid.AuthorizerMiddleware(az.Authorize),
		mid.RequireRoles(model.RoleAdmin, model.RoleGlobalAdmin),
		mid.TenantDatabase(resolver))
	registerTenantRoutes(tenantAPI, true)

	// Public tenant API, by company id or by Host subdomain
	registerTenantRoutes(e.Group("/public/company/:"+mid.CompanyParam, mid.TenantDatabase(resolver)), false)
	registerTenantRoutes(e.Group("/public", mid.TenantDatabase(resolver)), false)

	// Global public API
	e.GET("/global/company", companies.ListPublicCompanies)
	e.GET("/global/company/:id", companies.GetPublicCompany)

	return e
}

// registerTenantRoutes mounts the restaurant tree. Public groups get the read
// routes only.
func registerTenantRoutes(g *echo.Group, write bool) {
	g.GET("/restaurant", handler.ListRestaurants)
	g.GET("/restaurant/:id", handler.GetRestaurant)

	r := g.Group("/restaurant/:restaurantId")
	r.GET("/category", handler.ListCategories)
	r.GET("/category/:id", handler.GetCategory)
	r.GET("/product", handler.ListProducts)
	r.GET("/product/:id", handler.GetProduct)
	r.GET("/menu", handler.ListMenus)
	r.GET("/menu/:id", handler.GetMenu)
	r.GET("/qrcode", handler.ListQRCodes)
	r.GET("/qrcode/:id", handler.GetQRCode)

	if !write {
		return
	}

	g.POST("/restaurant", handler.CreateRestaurant)
	g.PUT("/restaurant/:id", handler.UpdateRestaurant)
	g.DELETE("/restaurant/:id", handler.DeleteRestaurant)

	r.POST("/category", handler.CreateCategory)
	r.PUT("/category/:id", handler.UpdateCategory)
	r.DELETE("/category/:id", handler.DeleteCategory)
	r.POST("/product", handler.CreateProduct)
	r.PUT("/product/:id", handler.UpdateProduct)
	r.DELETE("/product/:id", handler.DeleteProduct)
	r.POST("/menu", handler.CreateMenu)
	r.PUT("/menu/:id", handler.UpdateMenu)
	r.DELETE("/menu/:id", handler.DeleteMenu)
	r.POST("/qrcode", handler.CreateQRCode)
	r.PUT("/qrcode/:id", handler.UpdateQRCode)
	r.DELETE("/qrcode/:id", handler.DeleteQRCode)
}
