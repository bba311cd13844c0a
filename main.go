package main

import (
	"context"
	"log"

	api "plan-notifier/cmd/api"
	"plan-notifier/internal/notification/delivery"
	"plan-notifier/internal/notification/repository"
	"plan-notifier/internal/notification/usecase"
	"plan-notifier/pkg/config"
	"plan-notifier/pkg/fcm"
	"plan-notifier/pkg/metrics"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"
)

func main() {
	// Load configuration
	cfg := config.Load()
	ctx := context.Background()

	// Initialize the Firebase app shared by Firestore and FCM
	var opts []option.ClientOption
	if cfg.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentials))
	}

	var fbConfig *firebase.Config
	if cfg.GoogleProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.GoogleProjectID}
	}
	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		log.Fatal("Failed to initialize Firebase app: ", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Firestore client: ", err)
	}
	defer firestoreClient.Close()

	fcmClient, err := fcm.NewClient(ctx, app)
	if err != nil {
		log.Fatal("Failed to initialize FCM client: ", err)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Initialize repositories (dependency injection)
	userRepo := repository.NewUserRepository(firestoreClient)
	planRepo := repository.NewPlanRepository(firestoreClient)
	notificationRepo := repository.NewNotificationRepository(firestoreClient)

	// Pipeline service and event router
	composer := usecase.NewComposer(cfg.DefaultLocale)
	service := usecase.NewService(userRepo, planRepo, notificationRepo, fcmClient, composer, collector)
	router := usecase.NewRouter(service, collector)

	// Pub/Sub pull subscriber
	if cfg.IngestMode == config.IngestPull || cfg.IngestMode == config.IngestBoth {
		subscriber, err := delivery.NewSubscriber(ctx, cfg.GoogleProjectID, cfg.PubSubTopic, cfg.PubSubSubscription, router, cfg.FirebaseCredentials)
		if err != nil {
			log.Fatal("Failed to initialize event subscriber: ", err)
		}
		go func() {
			if err := subscriber.Start(ctx); err != nil {
				log.Printf("[PubSub] Subscriber stopped: %v", err)
			}
		}()
	}

	// HTTP surface: push endpoint, health check, metrics
	var pushAuth gin.HandlerFunc
	if cfg.PushAudience != "" {
		pushAuth, err = api.PushAuthMiddleware(cfg.PushAudience)
		if err != nil {
			log.Fatal("Failed to initialize push auth middleware: ", err)
		}
	} else {
		log.Printf("[WARN] PUSH_AUDIENCE not configured, push endpoint auth disabled")
	}

	engine := gin.Default()
	api.SetupRoutes(engine, api.NewHandler(router), pushAuth, registry)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
