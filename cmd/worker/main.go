package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"artledger/internal/config"
	"artledger/internal/metrics"
	"artledger/internal/notify"
	"artledger/internal/queue"
	"artledger/internal/roster"
	"artledger/internal/store"
)

// Worker consumes delivery messages and stamps the delivery time on the
// persisted notification. The send itself is durable before the message
// is ever published, so a crashed worker loses nothing but the stamp.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var (
		ks          store.KeyedStore
		redisClient *store.Redis
	)
	switch cfg.StoreBackend {
	case "redis":
		redisClient = store.NewRedis(cfg.RedisAddr)
		ks = redisClient
	default:
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
		ks = db
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		if redisClient == nil {
			redisClient = store.NewRedis(cfg.RedisAddr)
		}
		q = queue.NewRedisQueue(redisClient.Client, "artledger:deliveries")
	}

	notifications := notify.NewLog(ks, roster.NewCollection(ks))

	deliveries, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for deliveries...")
	for d := range deliveries {
		receipt := uuid.NewString()
		if err := notifications.MarkDelivered(ctx, d.NotificationID, time.Now()); err != nil {
			log.Printf("delivery stamp failed for %d (receipt %s): %v", d.NotificationID, receipt, err)
			continue
		}
		metrics.NotificationsDelivered.Inc()
		log.Printf("notification %d delivered (receipt %s)", d.NotificationID, receipt)

		time.Sleep(10 * time.Millisecond) // Small delay between messages
	}

	log.Println("worker stopped")
}
