package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovenfresh/storefront/internal/catalog"
	"github.com/ovenfresh/storefront/internal/config"
	"github.com/ovenfresh/storefront/internal/httpx"
	kafkax "github.com/ovenfresh/storefront/internal/kafka"
	"github.com/ovenfresh/storefront/internal/orders"
	"github.com/ovenfresh/storefront/internal/payment"
	"github.com/ovenfresh/storefront/internal/postgres"
	"github.com/ovenfresh/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	pStatus.Start(ctx)
	pConfirm := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmed, 1024)
	pConfirm.Start(ctx)
	pDeclined := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentFailed, 1024)
	pDeclined.Start(ctx)
	producers := []*kafkax.Producer{pCreated, pStatus, pConfirm, pDeclined}

	// Stores, engine, gateway
	engine := &orders.Engine{Store: &orders.Repo{DB: db}}
	gateway := &payment.Gateway{
		Orders:           engine,
		Accept:           payment.DefaultCardValidator,
		ProducerConfirm:  pConfirm,
		ProducerDeclined: pDeclined,
		ServiceName:      cfg.ServiceName,
	}

	// Handlers
	router := httpx.NewRouter()
	(&httpx.ProductsHandler{
		Store: &catalog.Repo{DB: db},
		Redis: rdb,
	}).Register(router)
	(&httpx.OrdersHandler{
		Engine:         engine,
		Producer:       pCreated,
		ProducerStatus: pStatus,
		Redis:          rdb,
		Service:        cfg.ServiceName,
	}).Register(router)
	(&httpx.PaymentsHandler{Gateway: gateway}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inbox -> flush & close writers, then stop the loops
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	cancel()
}
