// Package services assembles the storage, event stream, worker pool and
// model clients that the serve commands hand to the proxy and API server.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/thinkstream/api"
	"github.com/papercomputeco/thinkstream/cmd/thinkstream/sqlitepath"
	"github.com/papercomputeco/thinkstream/pkg/careplan"
	"github.com/papercomputeco/thinkstream/pkg/chatbot"
	"github.com/papercomputeco/thinkstream/pkg/config"
	embeddingutils "github.com/papercomputeco/thinkstream/pkg/embeddings/utils"
	"github.com/papercomputeco/thinkstream/pkg/eventstream"
	"github.com/papercomputeco/thinkstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/thinkstream/pkg/eventstream/nop"
	"github.com/papercomputeco/thinkstream/pkg/knowledge"
	"github.com/papercomputeco/thinkstream/pkg/lead"
	llmclient "github.com/papercomputeco/thinkstream/pkg/llm/client"
	"github.com/papercomputeco/thinkstream/pkg/llm/provider"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/session"
	sessioninmemory "github.com/papercomputeco/thinkstream/pkg/session/inmemory"
	"github.com/papercomputeco/thinkstream/pkg/session/redis"
	"github.com/papercomputeco/thinkstream/pkg/storage"
	"github.com/papercomputeco/thinkstream/pkg/storage/inmemory"
	"github.com/papercomputeco/thinkstream/pkg/storage/postgres"
	"github.com/papercomputeco/thinkstream/pkg/storage/sqlite"
	vectorutils "github.com/papercomputeco/thinkstream/pkg/vector/utils"
	"github.com/papercomputeco/thinkstream/pkg/worker"
	"github.com/papercomputeco/thinkstream/proxy"
)

const defaultQdrantPort = 6334

// KeyResolver looks up API keys by credential name.
// *credentials.Manager satisfies it.
type KeyResolver interface {
	ResolveKey(provider string) (string, error)
}

// Services owns the shared backends of a serve process. Close releases them
// in reverse order of creation, so queued jobs drain before storage closes.
type Services struct {
	cfg    *config.Config
	keys   KeyResolver
	logger *slog.Logger

	Storage   storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool
	Recorder  *worker.Recorder

	closers []func() error
}

// New opens storage and the event stream and starts the worker pool.
func New(ctx context.Context, cfg *config.Config, keys KeyResolver, log *slog.Logger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("services require a config")
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &Services{cfg: cfg, keys: keys, logger: log}

	driver, err := s.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	s.Storage = driver
	s.closers = append(s.closers, driver.Close)

	publisher, err := s.newPublisher()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Publisher = publisher
	s.closers = append(s.closers, publisher.Close)

	pool, err := worker.NewPool(&worker.Config{Logger: log.With("component", "worker")})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	s.Pool = pool
	s.closers = append(s.closers, func() error { pool.Close(); return nil })

	s.Recorder = worker.NewRecorder(pool, driver, publisher, log.With("component", "recorder"))
	return s, nil
}

// Close releases every backend. The first error is returned.
func (s *Services) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func (s *Services) newStorage(ctx context.Context) (storage.Driver, error) {
	if dsn := s.cfg.Storage.PostgresDSN; dsn != "" {
		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		s.logger.Info("using PostgreSQL storage")
		return driver, nil
	}

	path, err := sqlitepath.ResolveSQLitePath(s.cfg.Storage.SQLitePath)
	switch {
	case errors.Is(err, sqlitepath.ErrNotFound):
		s.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	case err != nil:
		return nil, err
	}

	driver, err := sqlite.NewDriver(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
	}
	s.logger.Info("using SQLite storage", "path", path)
	return driver, nil
}

func (s *Services) newPublisher() (eventstream.Publisher, error) {
	es := s.cfg.EventStream
	switch es.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: splitList(es.Brokers),
			Topic:   es.Topic,
			Logger:  s.logger.With("component", "kafka"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		s.logger.Info("publishing generation events to kafka", "brokers", es.Brokers, "topic", es.Topic)
		return publisher, nil
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", es.Provider)
	}
}

// ProxyConfig returns the proxy configuration with upstream keys resolved
// for every backend that has one.
func (s *Services) ProxyConfig(listen string) proxy.Config {
	pc := proxy.Config{
		ListenAddr:     listen,
		DefaultBackend: s.cfg.Proxy.DefaultBackend,
		Upstreams:      map[string]string{},
		APIKeys:        map[string]string{},
	}
	if pc.ListenAddr == "" {
		pc.ListenAddr = s.cfg.Proxy.Listen
	}
	if s.cfg.Proxy.Upstream != "" {
		if b, err := provider.Lookup(pc.DefaultBackend); err == nil {
			pc.Upstreams[b.Name] = s.cfg.Proxy.Upstream
		}
	}

	for _, name := range provider.SupportedBackends() {
		b, err := provider.Lookup(name)
		if err != nil {
			continue
		}
		if key := s.resolveKey(b.CredentialKey); key != "" {
			pc.APIKeys[b.Name] = key
		}
	}
	return pc
}

// APIConfig returns the API server configuration.
func (s *Services) APIConfig(listen string) api.Config {
	if listen == "" {
		listen = s.cfg.API.Listen
	}
	ac := api.Config{
		ListenAddr:  listen,
		SessionTTL:  s.cfg.Session.TTLDuration(),
		DefaultMode: s.cfg.CarePlan.Mode,
		Backend:     s.cfg.CarePlan.Backend,
		Model:       s.cfg.CarePlan.Model,
	}
	if b, err := provider.Lookup(ac.Backend); err == nil {
		ac.Backend = b.Name
		if ac.Model == "" {
			ac.Model = b.DefaultModel
		}
	}
	return ac
}

// APIDependencies builds the services behind the API routes. A missing API
// key disables the route that needs it and is logged; it is not an error.
func (s *Services) APIDependencies(ctx context.Context) (api.Dependencies, error) {
	deps := api.Dependencies{
		Storage:  s.Storage,
		Recorder: s.Recorder,
	}

	sessions, err := s.newSessionStore(ctx)
	if err != nil {
		return deps, err
	}
	deps.Sessions = sessions
	s.closers = append(s.closers, sessions.Close)

	leads := lead.NewDispatcher(lead.Config{
		ZapierWebhookURL:  s.cfg.Lead.ZapierWebhook,
		HubSpotWebhookURL: s.cfg.Lead.HubSpotWebhook,
		Pool:              s.Pool,
		Driver:            s.Storage,
		Logger:            s.logger.With("component", "lead"),
	})
	if !leads.Configured() {
		s.logger.Warn("no lead webhook configured; leads are stored only")
	}
	deps.Leads = leads

	generator, err := s.newCarePlanGenerator()
	if err != nil {
		return deps, err
	}
	if generator != nil {
		deps.CarePlan = generator
	}

	bot, err := s.newChatbot(ctx, leads)
	if err != nil {
		return deps, err
	}
	if bot != nil {
		deps.Chatbot = bot
	}

	return deps, nil
}

func (s *Services) newSessionStore(ctx context.Context) (session.Store, error) {
	sc := s.cfg.Session
	switch sc.Provider {
	case "", "memory", "inmemory":
		return sessioninmemory.NewStore(), nil
	case "redis":
		store, err := redis.NewStore(ctx, redis.Config{Addr: sc.RedisAddr})
		if err != nil {
			return nil, fmt.Errorf("creating redis session store: %w", err)
		}
		s.logger.Info("using redis session store", "addr", sc.RedisAddr)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session provider: %s", sc.Provider)
	}
}

func (s *Services) newCarePlanGenerator() (*careplan.Generator, error) {
	cc := s.cfg.CarePlan
	b, err := provider.Lookup(cc.Backend)
	if err != nil {
		return nil, fmt.Errorf("care plan backend: %w", err)
	}
	if cc.Upstream != "" {
		b = b.WithBaseURL(cc.Upstream)
	}

	key := s.resolveKey(b.CredentialKey)
	if key == "" {
		s.logger.Warn("no API key for care plan backend; care plan routes disabled", "backend", b.Name)
		return nil, nil
	}

	client, err := llmclient.New(llmclient.Config{BaseURL: b.BaseURL, APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("creating care plan client: %w", err)
	}

	model := cc.Model
	if model == "" {
		model = b.DefaultModel
	}
	return careplan.NewGenerator(careplan.Config{
		Client:   client,
		Backend:  b.Name,
		Model:    model,
		Strategy: b.ReasoningStrategy(),
		Logger:   s.logger.With("component", "careplan"),
	})
}

func (s *Services) newChatbot(ctx context.Context, leads chatbot.LeadSink) (*chatbot.Service, error) {
	cc := s.cfg.Chatbot
	key := s.resolveKey(cc.Credential)
	if key == "" {
		s.logger.Warn("no API key for chatbot; chatbot route disabled", "credential", cc.Credential)
		return nil, nil
	}

	client, err := llmclient.New(llmclient.Config{BaseURL: cc.Target, APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("creating chatbot client: %w", err)
	}

	cfg := chatbot.Config{
		Client:  client,
		Leads:   leads,
		Backend: cc.Credential,
		Model:   cc.Model,
		Logger:  s.logger.With("component", "chatbot"),
	}
	if kb := s.newKnowledge(ctx); kb != nil {
		cfg.Knowledge = kb
	}
	return chatbot.NewService(cfg)
}

// newKnowledge indexes the built-in corpus. Any failure leaves the chatbot
// without retrieval.
func (s *Services) newKnowledge(ctx context.Context) *knowledge.Base {
	ec := s.cfg.Embedding
	key := ""
	if ec.Provider == "openai" {
		key = s.resolveKey("openai")
		if key == "" {
			s.logger.Warn("no OpenAI API key for embeddings; chatbot runs without knowledge base")
			return nil
		}
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: ec.Provider,
		TargetURL:    ec.Target,
		Model:        ec.Model,
		APIKey:       key,
		Dimensions:   int(ec.Dimensions),
	})
	if err != nil {
		s.logger.Warn("failed to create embedder", "error", err)
		return nil
	}

	vc := s.cfg.VectorStore
	opts := &vectorutils.NewVectorDriverOpts{
		ProviderType: vc.Provider,
		Logger:       s.logger.With("component", "vector"),
	}
	if vc.Provider == "qdrant" {
		opts.Host, opts.Port, err = hostPort(vc.Target, defaultQdrantPort)
		if err != nil {
			_ = embedder.Close()
			s.logger.Warn("invalid vector store target", "target", vc.Target, "error", err)
			return nil
		}
	}
	vectors, err := vectorutils.NewVectorDriver(opts)
	if err != nil {
		_ = embedder.Close()
		s.logger.Warn("failed to create vector store", "error", err)
		return nil
	}

	kb, err := knowledge.New(knowledge.Config{
		Embedder: embedder,
		Vector:   vectors,
		Logger:   s.logger.With("component", "knowledge"),
	})
	if err != nil {
		_ = vectors.Close()
		_ = embedder.Close()
		s.logger.Warn("failed to create knowledge base", "error", err)
		return nil
	}
	s.closers = append(s.closers, kb.Close)

	initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := kb.Init(initCtx, knowledge.DefaultSources()); err != nil {
		s.logger.Warn("failed to index knowledge base; chatbot runs without it", "error", err)
		return nil
	}
	return kb
}

func (s *Services) resolveKey(name string) string {
	if s.keys == nil || name == "" {
		return ""
	}
	key, err := s.keys.ResolveKey(name)
	if err != nil {
		s.logger.Warn("failed to resolve API key", "credential", name, "error", err)
		return ""
	}
	return key
}

// hostPort splits "host:port". A bare host gets defaultPort.
func hostPort(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "localhost", defaultPort, nil
	}
	if !strings.Contains(target, ":") {
		return target, defaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
