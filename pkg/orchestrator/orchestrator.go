package orchestrator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"path/filepath"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/engine"
	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/pool"
	"github.com/hodei/pipelines/pkg/provider"
	"github.com/hodei/pipelines/pkg/queue"
	"github.com/hodei/pipelines/pkg/reconciler"
	"github.com/hodei/pipelines/pkg/registry"
	"github.com/hodei/pipelines/pkg/scheduler"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// Config holds everything needed to stand up an orchestrator process.
type Config struct {
	NodeID       string
	BindAddr     string
	DataDir      string
	Strategy     string // worker placement strategy name, see scheduler.StrategyByName
	PoolStrategy string // pool placement strategy name, see scheduler.PoolStrategyByName
	SecretsKey   []byte // 32-byte AES key; nil disables Step.Secrets support

	ContainerSocketPath string // containerd socket for provider.ProviderContainer
}

// Orchestrator is the assembled control plane: one process holding the Job
// Queue, Scheduler, Resource Pool Registry, Execution Engine, and Worker
// Registry, all persisted to a single BoltDB store and served over one
// mTLS gRPC listener.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger

	store   storage.Store
	broker  *events.Broker
	ca      *security.CertAuthority
	tokens  *security.TokenManager
	secrets *security.SecretsManager

	queue      *queue.Queue
	pools      *pool.Registry
	scheduler  *scheduler.Scheduler
	reconciler *reconciler.Reconciler
	engine     *engine.Engine
	registry   *registry.Registry

	grpcServer *grpc.Server
	listener   net.Listener
}

// dispatcherProxy breaks the construction cycle between pkg/engine (which
// needs a Dispatcher at construction time) and pkg/registry (which
// implements Dispatcher but needs engine's ResultHandler/EventHandler at
// its own construction time): the Engine is built against this proxy, and
// the real *registry.Registry is plugged in once it exists.
type dispatcherProxy struct {
	registry *registry.Registry
}

func (d *dispatcherProxy) Dispatch(ctx context.Context, workerID string, assignment *proto.AssignmentMessage) error {
	return d.registry.Dispatch(ctx, workerID, assignment)
}

func (d *dispatcherProxy) Cancel(ctx context.Context, workerID, jobID string) error {
	return d.registry.Cancel(ctx, workerID, jobID)
}

var _ engine.Dispatcher = (*dispatcherProxy)(nil)

// New assembles an Orchestrator from cfg but does not start it or open a
// listener; call Start.
func New(cfg Config) (*Orchestrator, error) {
	logger := log.WithComponent("orchestrator").With().Str("node_id", cfg.NodeID).Logger()

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	broker := events.NewBroker()
	ca := security.NewCertAuthority(store)
	tokens := security.NewTokenManager()

	var secretsManager *security.SecretsManager
	if len(cfg.SecretsKey) > 0 {
		secretsManager, err = security.NewSecretsManager(cfg.SecretsKey)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to init secrets manager: %w", err)
		}
	}

	providers := map[types.ProviderKind]provider.Provider{}
	if cfg.ContainerSocketPath != "" {
		containerProvider, err := provider.NewContainerProvider(cfg.ContainerSocketPath, cfg.BindAddr)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to init container provider: %w", err)
		}
		providers[types.ProviderContainer] = containerProvider
	}
	providers[types.ProviderVM] = provider.NewVMProvider(filepath.Join(cfg.DataDir, "vm"), cfg.BindAddr)

	poolRegistry := pool.New(store, providers)
	jobQueue := queue.New()
	workerStrategy := scheduler.StrategyByName(cfg.Strategy)
	poolStrategy := scheduler.PoolStrategyByName(cfg.PoolStrategy)
	sched := scheduler.New(jobQueue, store, poolRegistry, broker, poolStrategy)
	recon := reconciler.New(store, broker)

	dispatcher := &dispatcherProxy{}
	eng := engine.New(store, broker, poolRegistry, dispatcher, secretsManager, workerStrategy)
	reg := registry.New(store, broker, tokens, eng, eng)
	dispatcher.registry = reg

	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		broker:     broker,
		ca:         ca,
		tokens:     tokens,
		secrets:    secretsManager,
		queue:      jobQueue,
		pools:      poolRegistry,
		scheduler:  sched,
		reconciler: recon,
		engine:     eng,
		registry:   reg,
	}, nil
}

// Start initializes the cluster CA on first boot, issues this node's own
// server certificate if missing, starts every subsystem, and begins
// serving gRPC. It returns once the listener is bound; Serve runs in its
// own goroutine until Stop is called.
func (o *Orchestrator) Start() error {
	if err := o.initializeCA(); err != nil {
		return fmt.Errorf("failed to initialize certificate authority: %w", err)
	}

	creds, err := o.serverCredentials()
	if err != nil {
		return fmt.Errorf("failed to build TLS credentials: %w", err)
	}

	listener, err := net.Listen("tcp", o.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", o.cfg.BindAddr, err)
	}
	o.listener = listener

	o.grpcServer = grpc.NewServer(grpc.Creds(creds))
	o.grpcServer.RegisterService(&proto.ControlService_ServiceDesc, newControlServer(o))
	o.grpcServer.RegisterService(&proto.WorkerService_ServiceDesc, o.registry)

	o.broker.Start()
	o.pools.Start()
	o.scheduler.Start()
	o.reconciler.Start()
	o.engine.Start()

	go func() {
		o.logger.Info().Str("addr", o.cfg.BindAddr).Msg("orchestrator listening")
		if err := o.grpcServer.Serve(listener); err != nil {
			o.logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	return nil
}

// Stop gracefully halts every subsystem and closes storage. Order matters:
// stop accepting new work before tearing down what processes it.
func (o *Orchestrator) Stop() error {
	if o.grpcServer != nil {
		o.grpcServer.GracefulStop()
	}
	o.scheduler.Stop()
	o.engine.Stop()
	o.pools.Stop()
	o.reconciler.Stop()
	o.broker.Stop()
	return o.store.Close()
}

func (o *Orchestrator) initializeCA() error {
	if err := o.ca.LoadFromStore(); err != nil {
		o.logger.Info().Msg("no existing certificate authority found, initializing a new one")
		if err := o.ca.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize CA: %w", err)
		}
		if err := o.ca.SaveToStore(); err != nil {
			return fmt.Errorf("failed to persist CA: %w", err)
		}
	}

	certDir, err := security.GetCertDir("orchestrator", o.cfg.NodeID)
	if err != nil {
		return fmt.Errorf("failed to resolve cert directory: %w", err)
	}
	if security.CertExists(certDir) {
		return nil
	}

	host, _, err := net.SplitHostPort(o.cfg.BindAddr)
	if err != nil {
		host = o.cfg.BindAddr
	}
	dnsNames := []string{fmt.Sprintf("orchestrator-%s", o.cfg.NodeID), "localhost"}
	var ipAddresses []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ipAddresses = []net.IP{ip}
	}

	cert, err := o.ca.IssueNodeCertificate(o.cfg.NodeID, "orchestrator", dnsNames, ipAddresses)
	if err != nil {
		return fmt.Errorf("failed to issue orchestrator certificate: %w", err)
	}
	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return fmt.Errorf("failed to save orchestrator certificate: %w", err)
	}
	if err := security.SaveCACertToFile(o.ca.GetRootCACert(), certDir); err != nil {
		return fmt.Errorf("failed to save CA certificate: %w", err)
	}
	o.logger.Info().Str("cert_dir", certDir).Msg("issued orchestrator certificate")
	return nil
}

func (o *Orchestrator) serverCredentials() (credentials.TransportCredentials, error) {
	certDir, err := security.GetCertDir("orchestrator", o.cfg.NodeID)
	if err != nil {
		return nil, err
	}
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load orchestrator certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	return credentials.NewTLS(&tls.Config{
		ClientAuth:   tls.RequestClientCert,
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

// IssueClientCertificate issues a client certificate an operator's CLI or
// a worker's out-of-band bootstrap flow can use to dial this orchestrator
// with mTLS (see pkg/worker's Open Question resolution on certificate
// bootstrap).
func (o *Orchestrator) IssueClientCertificate(clientID string) (*tls.Certificate, error) {
	return o.ca.IssueClientCertificate(clientID)
}

// RootCACert returns the cluster's root CA certificate in DER form, for
// distributing to clients and workers that need to verify this
// orchestrator's server certificate.
func (o *Orchestrator) RootCACert() []byte {
	return o.ca.GetRootCACert()
}
