package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/verivote/dreip-backend/api"
	"github.com/verivote/dreip-backend/auth"
	"github.com/verivote/dreip-backend/captcha"
	"github.com/verivote/dreip-backend/finalizer"
	"github.com/verivote/dreip-backend/log"
	"github.com/verivote/dreip-backend/sms"
	"github.com/verivote/dreip-backend/storage"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := validateConfig(cfg); err != nil {
		flagUsageAndExit(err)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output)
	log.Infow("starting dreip-backend", "version", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: connect, ensure indexes and the election counter.
	store, err := storage.New(ctx, cfg.Db.URI, cfg.Db.Name)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warnw("failed to close storage", "error", err)
		}
	}()

	// Seed the first admin when a seed password is configured and no admin
	// exists yet; an empty password skips seeding.
	if cfg.Admin.Password != "" {
		hash, err := auth.HashPassword(cfg.Admin.Password)
		if err != nil {
			log.Fatalf("failed to hash seed admin password: %v", err)
		}
		if err := store.EnsureAdmin(ctx, cfg.Admin.Username, hash); err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
	}

	// Finalizers: re-schedule every published and archived election, so a
	// finalizer that failed before a restart gets a second chance.
	finalizers := finalizer.New(store)
	if err := finalizers.ScheduleAll(ctx); err != nil {
		log.Fatalf("failed to schedule election finalizers: %v", err)
	}
	defer finalizers.Close()

	// SMS delivery: SNS when credentials are configured, logging otherwise.
	var sender sms.Sender = sms.LogSender{}
	if cfg.Aws.AccessKeyID != "" {
		sender, err = sms.NewSnsSender(ctx, cfg.Aws.Region, cfg.Aws.AccessKeyID, cfg.Aws.SecretAccessKey)
		if err != nil {
			log.Fatalf("failed to initialize SNS: %v", err)
		}
		log.Infow("sms delivery via SNS", "region", cfg.Aws.Region)
	}

	// CAPTCHA verification: reCAPTCHA when a secret is configured.
	var verifier captcha.Verifier = captcha.AllowAllVerifier{}
	if cfg.RecaptchaSecret != "" {
		verifier = captcha.NewRecaptchaVerifier(cfg.RecaptchaSecret, cfg.Hostname)
	}

	tokens := &auth.Tokens{
		Secret:  []byte(cfg.JwtSecret),
		OtpTTL:  cfg.OtpTTL,
		AuthTTL: cfg.AuthTTL,
	}

	if _, err := api.New(ctx, &api.APIConfig{
		Host:       cfg.API.Host,
		Port:       cfg.API.Port,
		Store:      store,
		Finalizers: finalizers,
		Tokens:     tokens,
		Sms:        sender,
		Captcha:    verifier,
		HmacSecret: []byte(cfg.HmacSecret),
	}); err != nil {
		log.Fatalf("failed to start API: %v", err)
	}

	log.Info("startup complete, ready to serve")

	// Wait for shutdown.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

func flagUsageAndExit(err error) {
	log.Errorf("invalid config: %v", err)
	os.Exit(2)
}
