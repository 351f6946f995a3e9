package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"order-ledger/internal/clock"
	"order-ledger/internal/controllers/http"
	"order-ledger/internal/feed"
	"order-ledger/internal/infra/identity"
	mmysql "order-ledger/internal/infra/mysql"
	"order-ledger/internal/infra/rabbitmq"
	"order-ledger/internal/ledger"
	mysqlrepo "order-ledger/internal/repository/mysql"
	"order-ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const defaultUnitPrice = 25

func main() {
	db, err := mmysql.NewMySQLFromEnv()
	if err != nil {
		log.Fatalf("db: connect: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	repo := mysqlrepo.NewOrderRepository(db)
	store := ledger.NewStore(repo, feed.New(), clock.NewSystem())

	publisher, err := rabbitmq.NewPublisher(os.Getenv("RABBITMQ_URL"), "order.exchange")
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	resolver := identity.NewResolver(os.Getenv("IDENTITY_SERVICE_URL"), 2*time.Second)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         os.Getenv("REDIS_HOST") + ":6379",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	resolver.SetRedisClient(redisClient)

	unitPrice := int64(defaultUnitPrice)
	if v := os.Getenv("ORDER_UNIT_PRICE"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			log.Fatalf("invalid ORDER_UNIT_PRICE %q", v)
		}
		unitPrice = parsed
	}

	s := services.NewOrderService(store, resolver, publisher, unitPrice)

	handler := http.NewHandler(s, redisClient)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	handler.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting order ledger on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server run: %v", err)
	}
}
