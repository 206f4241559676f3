// Command server runs the credential core: DID registry, credential issuer,
// proof engine, and share manager behind one HTTP surface.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	credhandler "privid/internal/credential/handler"
	credmetrics "privid/internal/credential/metrics"
	credservice "privid/internal/credential/service"
	credstore "privid/internal/credential/store"
	idhandler "privid/internal/identity/handler"
	"privid/internal/identity/keys"
	idmetrics "privid/internal/identity/metrics"
	idmodels "privid/internal/identity/models"
	idservice "privid/internal/identity/service"
	idstore "privid/internal/identity/store"
	"privid/internal/platform/config"
	"privid/internal/platform/events"
	"privid/internal/platform/httpserver"
	"privid/internal/platform/logger"
	"privid/internal/platform/postgres"
	"privid/internal/platform/redis"
	"privid/internal/proof/artifacts"
	"privid/internal/proof/challenge"
	proofhandler "privid/internal/proof/handler"
	proofmetrics "privid/internal/proof/metrics"
	proofservice "privid/internal/proof/service"
	sharehandler "privid/internal/share/handler"
	sharemetrics "privid/internal/share/metrics"
	shareservice "privid/internal/share/service"
	sharestore "privid/internal/share/store"
	transporthttp "privid/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pool, err := postgres.New(postgres.DefaultConfig(cfg.PostgresURL))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher events.Publisher
	if cfg.Kafka.Brokers != "" {
		kafka, err := events.NewKafka(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		publisher = kafka
	} else {
		log.Warn("kafka not configured, lifecycle events stay in-process")
		publisher = events.NewMemory()
	}
	defer publisher.Close()

	// Identity registry.
	var identityStore idstore.Store
	if pool != nil {
		identityStore = idstore.NewPostgres(pool.DB())
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		identityStore = idstore.NewMemory()
	}
	registryService := idservice.New(identityStore, cfg.Network, log,
		idservice.WithEvents(publisher),
		idservice.WithMetrics(idmetrics.New(registry)),
	)

	// Credential issuer. The issuer key is process-local; production
	// deployments load it from a KMS-backed env var.
	issuerKey, issuerDID, err := issuerIdentity(cfg.Network)
	if err != nil {
		return fmt.Errorf("issuer identity: %w", err)
	}
	var credentialStore credstore.Store
	if pool != nil {
		credentialStore = credstore.NewPostgres(pool.DB())
	} else {
		credentialStore = credstore.NewMemory()
	}
	issuer := credservice.New(credentialStore, registryService, issuerDID, issuerKey, log,
		credservice.WithEvents(publisher),
		credservice.WithMetrics(credmetrics.New(registry)),
	)

	// Proof engine.
	var artifactSource artifacts.Source
	if cfg.ArtifactDir != "" {
		artifactSource = artifacts.NewCached(artifacts.NewFS(cfg.ArtifactDir))
	} else {
		log.Warn("artifact dir not configured, using ephemeral circuit keys")
		artifactSource = artifacts.NewCached(artifacts.NewEphemeral())
	}
	engine := proofservice.New(artifactSource, log,
		proofservice.WithEvents(publisher),
		proofservice.WithMetrics(proofmetrics.New(registry)),
	)

	var challenges challenge.Store
	if redisClient != nil {
		challenges = challenge.NewRedis(redisClient.Client)
	} else {
		challenges = challenge.NewMemory()
	}

	// Share manager.
	signingKey, err := shareSigningKey(cfg.ShareSigningKey, log)
	if err != nil {
		return err
	}
	var shareStore sharestore.Store
	var nullifiers sharestore.NullifierTracker
	if redisClient != nil {
		shareStore = sharestore.NewRedis(redisClient.Client)
		nullifiers = sharestore.NewRedisNullifiers(redisClient.Client)
	} else {
		shareStore = sharestore.NewMemory()
		nullifiers = sharestore.NewMemoryNullifiers(nil)
	}
	shareManager := shareservice.New(shareStore, nullifiers, engine, signingKey, log,
		shareservice.WithEvents(publisher),
		shareservice.WithMetrics(sharemetrics.New(registry)),
	)

	checks := map[string]transporthttp.HealthChecker{}
	if pool != nil {
		checks["postgres"] = pool
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	router := transporthttp.New(transporthttp.Options{
		Handlers: []transporthttp.Registrar{
			idhandler.New(registryService, log),
			credhandler.New(issuer, log),
			proofhandler.New(engine, issuer, challenges, log),
			sharehandler.New(shareManager, log),
		},
		Checks:   checks,
		Registry: registry,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr, "network", cfg.Network)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// issuerIdentity builds the issuer's signing key and DID. The DID hangs off
// the key hash so restarts with the same key keep the same issuer id.
func issuerIdentity(network string) (*keys.KeyPair, string, error) {
	var kp *keys.KeyPair
	if raw := os.Getenv("PRIVID_ISSUER_KEY"); raw != "" {
		priv, err := hex.DecodeString(raw)
		if err != nil {
			return nil, "", fmt.Errorf("malformed PRIVID_ISSUER_KEY: %w", err)
		}
		kp, err = keys.FromPrivate(idmodels.KeyTypeEd25519, priv)
		if err != nil {
			return nil, "", err
		}
	} else {
		var err error
		kp, err = keys.Generate(idmodels.KeyTypeEd25519)
		if err != nil {
			return nil, "", err
		}
	}
	sum := sha256.Sum256(kp.Public)
	did := fmt.Sprintf("did:pid:%s:%s", network, hex.EncodeToString(sum[:16]))
	return kp, did, nil
}

func shareSigningKey(configured string, log *slog.Logger) ([]byte, error) {
	if configured != "" {
		key, err := hex.DecodeString(configured)
		if err != nil {
			return nil, fmt.Errorf("malformed PRIVID_SHARE_SIGNING_KEY: %w", err)
		}
		if len(key) < 32 {
			return nil, fmt.Errorf("share signing key must be at least 32 bytes")
		}
		return key, nil
	}
	// Random per-process key: tokens do not survive a restart.
	log.Warn("share signing key not configured, generating an ephemeral one")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate share signing key: %w", err)
	}
	return key, nil
}
