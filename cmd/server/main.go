package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"consultlaw-api/internal/availability"
	"consultlaw-api/internal/booking"
	"consultlaw-api/internal/config"
	"consultlaw-api/internal/events"
	"consultlaw-api/internal/handler"
	"consultlaw-api/internal/jobs"
	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/middleware"
	"consultlaw-api/internal/notify"
	"consultlaw-api/internal/payment"
	"consultlaw-api/internal/profile"
	"consultlaw-api/internal/realtime"
	"consultlaw-api/internal/service"
	"consultlaw-api/internal/store"
	"consultlaw-api/internal/store/memstore"
	"consultlaw-api/internal/stream"
)

// repository is everything the service needs from storage.
type repository interface {
	handler.Users
	handler.Pinger
	availability.Repository
	booking.Repository
	notify.Repository
	profile.Repository
	service.Messages
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	// storage
	var repo repository
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		repo = memstore.New()
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("db")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.WithError(err).Fatal("db ping")
		}
		log.Info("connected to postgres")

		st := store.New(pool)
		if err := st.Migrate(ctx, cfg.Migrations); err != nil {
			log.WithError(err).Warn("migration skipped")
		} else {
			log.Info("migration applied")
		}
		repo = st
	}

	// realtime fan-out
	reg := realtime.NewRegistry()
	local := notify.NewLocal(reg, log, m)
	var bc notify.Broadcaster = local
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("consultlaw-api"))
		if err != nil {
			log.WithError(err).Fatal("nats")
		}
		defer nc.Drain()
		bus, err := notify.NewNATS(nc, local, log)
		if err != nil {
			log.WithError(err).Fatal("nats subscribe")
		}
		defer bus.Close()
		bc = bus
		log.WithField("url", cfg.NATSURL).Info("cross-instance delivery via nats")
	}

	// booking events
	var pub events.Publisher = events.NewLog(log)
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		log.WithField("topic", cfg.KafkaTopic).Info("booking events to kafka")
	}
	defer pub.Close()

	var payments payment.Provider = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		payments = payment.NewStripe(cfg.StripeSecretKey)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, payments disabled")
	}

	avail := availability.New(repo)
	notifier := notify.New(repo, bc, log, m)
	svc := service.New(service.Deps{
		Bookings: booking.New(repo, repo, avail, log),
		Notifier: notifier,
		Messages: repo,
		Users:    repo,
		Payments: payments,
		Currency: cfg.Currency,
		Events:   pub,
		Log:      log,
		Metrics:  m,
	})
	hub := realtime.NewHub(reg, svc, log, m)

	sweeper, err := jobs.NewSweeper(cfg.SweepSchedule, svc, log)
	if err != nil {
		log.WithError(err).Fatal("sweeper")
	}
	sweeper.Start()
	defer sweeper.Stop()

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rl.Close()

	// grpc server
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.Auth(cfg.JWTSecret),
		),
		grpc.ChainStreamInterceptor(
			middleware.StreamRateLimit(rl),
			middleware.StreamAuth(cfg.JWTSecret),
		),
	)
	stream.Register(srv, hub)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.WithError(err).Fatal("listen")
	}
	go func() {
		log.Infof("grpc on :%s", cfg.GRPCPort)
		if err := srv.Serve(lis); err != nil {
			log.WithError(err).Error("grpc")
		}
	}()

	h := handler.New(handler.Deps{
		Users:        repo,
		Availability: avail,
		Profiles:     profile.New(repo),
		Service:      svc,
		Notifier:     notifier,
		Hub:          hub,
		Metrics:      m,
		Limiter:      rl,
		DB:           repo,
		Secret:       cfg.JWTSecret,
		Log:          log,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("http on :%s", cfg.WebPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")
	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	// live streams never finish on their own
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		srv.Stop()
	}
}
