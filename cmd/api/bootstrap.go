// cmd/api/bootstrap.go
// Wiring shared by the subcommands

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
	"github.com/imadgeboyega/heartwing-backend/internal/common/database"
	"github.com/imadgeboyega/heartwing-backend/internal/config"
	"github.com/imadgeboyega/heartwing-backend/internal/dating"
	notifications "github.com/imadgeboyega/heartwing-backend/internal/notification"
	"github.com/imadgeboyega/heartwing-backend/internal/storage"
)

// app holds the long lived dependencies of one process
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	redis    *redis.Client
	repo     dating.Repository
	notifier *notifications.Service
	service  dating.Service
}

// publisherFactory creates the realtime fan-out once the offline notifier
// exists.
type publisherFactory func(offline *notifications.Service) dating.Publisher

// buildApp connects the stores and creates the dating service. newPublisher
// is nil for commands that do not serve clients.
func buildApp(ctx context.Context, cfg *config.Config, newPublisher publisherFactory) (*app, error) {
	a := &app{cfg: cfg}

	engineCfg, err := config.LoadEngineConfig(cfg.EngineConfigFile, cfg.MaxCommitAttempts)
	if err != nil {
		return nil, err
	}
	if cfg.EngineConfigFile != "" {
		log.Printf("Engine settings loaded from %s", cfg.EngineConfigFile)
	}

	switch cfg.Store {
	case "memory":
		log.Println("Using in-memory store (development only)")
		a.repo = dating.NewMemoryRepository()
	default:
		db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		log.Println("Connected to PostgreSQL")
		a.db = db
		a.repo = dating.NewPostgresRepository(db)
	}

	cache := dating.NewNoopOutcomeCache()
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable (%v), continuing without outcome cache", err)
		} else {
			log.Println("Connected to Redis")
			a.redis = client
			cache = dating.NewRedisOutcomeCache(client, cfg.OutcomeCacheTTL)
		}
	} else {
		log.Println("Redis URL not configured, outcome cache disabled")
	}

	a.notifier = newNotifier(ctx, cfg)
	var publisher dating.Publisher
	if newPublisher != nil {
		publisher = newPublisher(a.notifier)
	}

	engine := butterfly.NewEngine(engineCfg.Settings, nil)
	a.service = dating.NewService(a.repo, engine, dating.Options{
		MaxCommitAttempts: engineCfg.MaxCommitAttempts,
		SweepBatchSize:    cfg.SweepBatchSize,
		Cache:             cache,
		Publisher:         publisher,
		Notifier:          a.notifier,
		Archive:           newArchive(cfg),
	})
	a.notifier.SetMembers(a.service)

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// newNotifier builds the out-of-app delivery channels. Providers that fail
// to initialize fall back to their mock so the engine keeps running.
func newNotifier(ctx context.Context, cfg *config.Config) *notifications.Service {
	var email notifications.EmailService
	switch cfg.EmailProvider {
	case "sendgrid":
		svc, err := notifications.NewSendGridEmailService(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName)
		if err != nil {
			log.Printf("SendGrid disabled: %v", err)
			email = notifications.NewMockEmailService()
		} else {
			email = svc
		}
	case "smtp":
		svc, err := notifications.NewSMTPEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailFromName)
		if err != nil {
			log.Printf("SMTP disabled: %v", err)
			email = notifications.NewMockEmailService()
		} else {
			email = svc
		}
	default:
		email = notifications.NewMockEmailService()
	}

	var sms notifications.SMSService
	if cfg.SMSProvider == "twilio" {
		svc, err := notifications.NewTwilioSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			log.Printf("Twilio disabled: %v", err)
			sms = notifications.NewMockSMSService()
		} else {
			sms = svc
		}
	} else {
		sms = notifications.NewMockSMSService()
	}

	var push notifications.PushService
	if cfg.PushProvider == "fcm" {
		svc, err := notifications.NewFCMPushService(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseCredentialsJSON)
		if err != nil {
			log.Printf("Firebase push disabled: %v", err)
			push = notifications.NewMockPushService()
		} else {
			log.Println("Firebase push notifications enabled")
			push = svc
		}
	} else {
		push = notifications.NewMockPushService()
	}

	return notifications.NewService(nil, notifications.Options{
		Push:        push,
		Email:       email,
		SMS:         sms,
		EnablePush:  cfg.EnablePushNotifications,
		EnableEmail: cfg.EnableEmailNotifications,
		EnableSMS:   cfg.EnableSMSNotifications,
	})
}

// newArchive picks S3 when configured and the local directory otherwise
func newArchive(cfg *config.Config) dating.SampleArchive {
	if cfg.UseS3 {
		archive, err := storage.NewS3Archive(cfg.S3BucketName, cfg.AWSRegion)
		if err == nil {
			log.Printf("Heart sync samples archived to s3://%s", cfg.S3BucketName)
			return archive
		}
		log.Printf("S3 archive unavailable (%v), using local directory", err)
	}
	return storage.NewLocalArchive(cfg.LocalArchiveDir)
}
