package httpapp

import (
	"context"
	"fmt"
	"net/http"

	saga_service_http "github.com/tumbleweedd/two_services_system/saga_service/internal/delivery/http"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type App struct {
	log        logger.Logger
	httpServer *http.Server
	port       int
}

func NewApp(
	log logger.Logger,
	orderService saga_service_http.OrderService,
	inventoryService saga_service_http.InventoryService,
	paymentService saga_service_http.PaymentService,
	port int,
) *App {
	handler := saga_service_http.NewHandler(log, orderService, inventoryService, paymentService)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.InitRoutes(),
	}

	return &App{
		log:        log,
		httpServer: httpServer,
		port:       port,
	}
}

func (a *App) RunWithPanic() {
	if err := a.Run(); err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("failed to run http server: %v", err))
	}
}

func (a *App) Run() error {
	const op = "httpapp.run"

	a.log.Info(op, logger.Int("port", a.port), logger.String("status", "starting http server"))

	return a.httpServer.ListenAndServe()
}

func (a *App) Stop(ctx context.Context) error {
	const op = "httpapp.stop"

	a.log.Info(op, logger.String("status", "stopping http server"))

	return a.httpServer.Shutdown(ctx)
}
