package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovenfresh/storefront/internal/config"
	kafkax "github.com/ovenfresh/storefront/internal/kafka"
	"github.com/ovenfresh/storefront/internal/notify"
	"github.com/ovenfresh/storefront/internal/orders"
	"github.com/ovenfresh/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	topics := []string{
		orders.TopicOrderCreated,
		orders.TopicOrderConfirmed,
		orders.TopicOrderStatusChanged,
		orders.TopicPaymentFailed,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers)

	go func() {
		log.Printf("notifier consumer started: group=%s workers=%d", cfg.NotifierGroup, cfg.NotifierWorkers)
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
