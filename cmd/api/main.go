package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/fel-ingestor/docs"
	"github.com/jhoicas/fel-ingestor/internal/app"
	httpRouter "github.com/jhoicas/fel-ingestor/internal/interfaces/http"
	"github.com/jhoicas/fel-ingestor/pkg/config"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

//	@title						FEL Ingestor API
//	@version					1.0
//	@description				Ingesta de DTE FEL (SAT Guatemala) desde el buzón de notificaciones y consultas por empresa.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	APIKeyAuth
//	@in							header
//	@name						X-API-Key
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración inválida")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET es obligatorio para exponer la API")
	}
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	container, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicialización de dependencias")
	}
	defer container.Close()

	server := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		// Una corrida del pipeline puede durar hasta el plazo configurado.
		WriteTimeout: time.Duration(cfg.Pipeline.RunTimeoutSeconds+30) * time.Second,
		IdleTimeout:  time.Second * 60,
	})
	server.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	server.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "FEL Ingestor API",
	}))

	httpRouter.Router(server, httpRouter.RouterDeps{
		Pipeline:  container.Pipeline,
		Invoices:  container.Invoices,
		JWTSecret: cfg.JWT.Secret,
		Log:       log,
	})

	go func() {
		if err := server.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
