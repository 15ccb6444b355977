package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/config"
	"github.com/example/ec-admin-console/internal/events"
	"github.com/example/ec-admin-console/internal/guard"
	"github.com/example/ec-admin-console/internal/querycache"
	"github.com/example/ec-admin-console/internal/session"
	"github.com/example/ec-admin-console/internal/upload"
	"github.com/example/ec-admin-console/internal/views"
)

var ErrNotSignedIn = errors.New("not signed in: run `admin login`")

// app is everything one command invocation needs, built from the config
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	tokens   session.TokenStore
	client   *apiclient.Client
	session  *session.Store
	bus      *events.Bus
	cache    *querycache.Cache
	uploader *upload.Uploader
	bridge   *events.KafkaBridge
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	tokens, err := session.OpenTokenStore(ctx, cfg.TokenStore)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	client := apiclient.New(apiclient.Options{BaseURL: cfg.APIURL, Timeout: cfg.Timeout, Registerer: reg})
	store := session.NewStore(tokens, client)
	if err := store.Rehydrate(ctx); err != nil {
		session.CloseTokenStore(tokens)
		return nil, err
	}

	bus := events.NewBus()
	a := &app{
		cfg:      cfg,
		registry: reg,
		tokens:   tokens,
		client:   client,
		session:  store,
		bus:      bus,
		cache:    querycache.New(bus, reg),
	}

	var storage upload.ObjectStorage
	if cfg.Storage.Enabled() {
		storage = upload.NewSupabaseStorage(cfg.Storage.URL, cfg.Storage.AnonKey, cfg.Timeout)
	}
	a.uploader = upload.NewUploader(client, storage, cfg.Storage.Bucket)

	if cfg.Kafka.Enabled() {
		a.bridge = events.NewKafkaBridge(bus, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	return a, nil
}

func (a *app) deps() views.Deps {
	return views.Deps{Client: a.client, Cache: a.cache, Bus: a.bus, Uploader: a.uploader}
}

// requireSession is the guard for every admin command
func (a *app) requireSession(location string) error {
	d := guard.Decide(a.session.State(), guard.Route{Location: location, RequireAdmin: true})
	if d.Action != guard.Allow {
		return ErrNotSignedIn
	}
	return nil
}

func (a *app) close() {
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			log.Printf("[Console] Closing bridge: %v", err)
		}
	}
	if err := session.CloseTokenStore(a.tokens); err != nil {
		log.Printf("[Console] Closing token store: %v", err)
	}
}

// banner logs the resolved configuration without secrets
func (a *app) banner() {
	log.Println("[Console] ========================================")
	log.Println("[Console] EC Admin Console")
	log.Println("[Console] ========================================")
	log.Printf("[Console] API: %s (timeout %s)", a.cfg.APIURL, a.cfg.Timeout)
	if a.cfg.Storage.Enabled() {
		log.Printf("[Console] Storage: %s bucket=%s", a.cfg.Storage.URL, a.cfg.Storage.Bucket)
	} else {
		log.Println("[Console] Storage: not configured (image upload disabled)")
	}
	if a.cfg.Kafka.Enabled() {
		log.Printf("[Console] Kafka: %v topic=%s", a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
	}
	if a.cfg.File != "" {
		log.Printf("[Console] Config file: %s", a.cfg.File)
	}
	log.Printf("[Console] Signed in: %t", a.session.IsAuthenticated())
}
