package worker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hodei/pipelines/api/proto"
	"github.com/hodei/pipelines/pkg/artifact"
	"github.com/hodei/pipelines/pkg/interp"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/security"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
	"github.com/hodei/pipelines/pkg/workspace"
)

// Config holds everything a Worker needs to connect and start accepting jobs.
type Config struct {
	WorkerID         string
	PoolName         string
	OrchestratorAddr string
	DataDir          string
	JoinToken        string
	Capacity         types.WorkerCapacity
	Labels           map[string]string

	// CertDir, when non-empty and populated (security.CertExists), selects
	// mTLS; otherwise the worker dials insecure, which is only appropriate
	// for local/dev clusters.
	CertDir string
}

// Worker is the Worker Runtime: it holds the single long-lived
// WorkerService stream to the orchestrator, and for every Assignment it
// receives, runs the job's pipeline through pkg/interp inside a scratch
// pkg/workspace directory, staging produced files into a local
// pkg/artifact cache.
type Worker struct {
	cfg    Config
	logger zerolog.Logger

	conn   *grpc.ClientConn
	stream proto.WorkerService_StreamClient
	sendMu sync.Mutex

	localStore storage.Store
	cache      *artifact.Cache
	workspaces *workspace.Manager

	activeMu sync.Mutex
	active   map[string]context.CancelFunc

	extensions map[string]ExtensionFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Worker and its local storage/cache/workspace dependencies
// under cfg.DataDir. It does not dial the orchestrator yet; call Start.
func New(cfg Config) (*Worker, error) {
	storeDir := filepath.Join(cfg.DataDir, "store")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create worker data directory: %w", err)
	}

	localStore, err := storage.NewBoltStore(storeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local worker store: %w", err)
	}

	cache, err := artifact.NewCache(filepath.Join(cfg.DataDir, "artifacts"))
	if err != nil {
		localStore.Close()
		return nil, fmt.Errorf("failed to open artifact cache: %w", err)
	}

	driver, err := workspace.NewLocalDriver(filepath.Join(cfg.DataDir, "workspaces"))
	if err != nil {
		localStore.Close()
		return nil, fmt.Errorf("failed to create workspace driver: %w", err)
	}

	return &Worker{
		cfg:        cfg,
		logger:     log.WithComponent("worker").With().Str("worker_id", cfg.WorkerID).Logger(),
		localStore: localStore,
		cache:      cache,
		workspaces: workspace.New(driver),
		active:     make(map[string]context.CancelFunc),
		extensions: make(map[string]ExtensionFunc),
		stopCh:     make(chan struct{}),
	}, nil
}

// RegisterExtension adds an extension step handler under name, resolved at
// runtime by types.Step.Extension. Must be called before Start; the worker
// has no dynamic-loading story, so unknown extensions in a pipeline fail
// the step instead of panicking.
func (w *Worker) RegisterExtension(name string, fn ExtensionFunc) {
	w.extensions[name] = fn
}

// Start dials the orchestrator, registers, and begins the heartbeat and
// receive loops. It blocks until registration is acknowledged.
func (w *Worker) Start(ctx context.Context) error {
	conn, err := w.dial()
	if err != nil {
		return fmt.Errorf("failed to dial orchestrator: %w", err)
	}
	w.conn = conn

	client := proto.NewWorkerServiceClient(conn)
	stream, err := client.Stream(context.Background())
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open worker stream: %w", err)
	}
	w.stream = stream

	if err := w.send(&proto.Envelope{
		Type: proto.MsgRegister,
		Register: &proto.RegisterMessage{
			WorkerID: w.cfg.WorkerID,
			PoolName: w.cfg.PoolName,
			Labels:   w.cfg.Labels,
			Capacity: w.cfg.Capacity,
			Token:    w.cfg.JoinToken,
		},
	}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send register envelope: %w", err)
	}

	ack, err := stream.Recv()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to receive register ack: %w", err)
	}
	if ack.Type != proto.MsgRegisterAck || ack.RegisterAck == nil || !ack.RegisterAck.Accepted {
		conn.Close()
		reason := "no reason given"
		if ack.RegisterAck != nil {
			reason = ack.RegisterAck.Reason
		}
		return fmt.Errorf("orchestrator rejected registration: %s", reason)
	}

	w.logger.Info().Str("pool", w.cfg.PoolName).Msg("registered with orchestrator")

	w.wg.Add(2)
	go w.heartbeatLoop()
	go w.recvLoop()
	return nil
}

// Stop cancels every running job and closes the stream and connection.
func (w *Worker) Stop() error {
	close(w.stopCh)

	w.activeMu.Lock()
	for _, cancel := range w.active {
		cancel()
	}
	w.activeMu.Unlock()

	w.wg.Wait()

	if w.conn != nil {
		w.conn.Close()
	}
	return w.localStore.Close()
}

func (w *Worker) dial() (*grpc.ClientConn, error) {
	if w.cfg.CertDir != "" && security.CertExists(w.cfg.CertDir) {
		creds, err := w.mtlsCredentials()
		if err != nil {
			return nil, err
		}
		return grpc.NewClient(w.cfg.OrchestratorAddr, grpc.WithTransportCredentials(creds))
	}
	w.logger.Warn().Msg("no certificates found, dialing orchestrator insecurely")
	return grpc.NewClient(w.cfg.OrchestratorAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func (w *Worker) mtlsCredentials() (credentials.TransportCredentials, error) {
	cert, err := security.LoadCertFromFile(w.cfg.CertDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(w.cfg.CertDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{*cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

func (w *Worker) send(env *proto.Envelope) error {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	return w.stream.Send(env)
}

func (w *Worker) heartbeatLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.send(&proto.Envelope{Type: proto.MsgHeartbeat, Heartbeat: &proto.HeartbeatMessage{WorkerID: w.cfg.WorkerID}}); err != nil {
				w.logger.Error().Err(err).Msg("failed to send heartbeat")
			}
		case <-w.stopCh:
			return
		}
	}
}

// recvLoop is the only goroutine that reads the stream; each Assignment
// runs in its own per-job goroutine and a Cancel only calls the job's
// CancelFunc, so a slow job never blocks delivery of later envelopes.
func (w *Worker) recvLoop() {
	defer w.wg.Done()
	for {
		env, err := w.stream.Recv()
		if err != nil {
			if err != io.EOF {
				w.logger.Error().Err(err).Msg("worker stream closed")
			}
			return
		}

		switch env.Type {
		case proto.MsgAssignment:
			if env.Assignment != nil {
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					w.runJob(env.Assignment)
				}()
			}
		case proto.MsgCancel:
			if env.Cancel != nil {
				w.cancelJob(env.Cancel.JobID)
			}
		default:
			w.logger.Warn().Str("type", string(env.Type)).Msg("unexpected envelope from orchestrator")
		}
	}
}

// cancelJob requests cooperative termination of a running job. Cancelling
// the job's context is not an immediate hard kill: the registered
// StepExecutor for whatever leaf step is currently running (shellExecutor,
// notably) reacts to ctx.Done() by signaling SIGTERM, waiting out its grace
// window, and only then escalating to SIGKILL, so the two-phase shutdown
// lives with the process, not here.
func (w *Worker) cancelJob(jobID string) {
	w.activeMu.Lock()
	cancel, ok := w.active[jobID]
	w.activeMu.Unlock()
	if ok {
		cancel()
	}
}

// runJob executes one job's pipeline end to end: open workspace, run the
// interpreter, stage artifacts, report the result, and tear down the
// workspace (retaining it when the job failed, for inspection).
func (w *Worker) runJob(assignment *proto.AssignmentMessage) {
	logger := w.logger.With().Str("job_id", assignment.JobID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	w.activeMu.Lock()
	w.active[assignment.JobID] = cancel
	w.activeMu.Unlock()
	defer func() {
		w.activeMu.Lock()
		delete(w.active, assignment.JobID)
		w.activeMu.Unlock()
		cancel()
	}()

	workspaceDir, err := w.workspaces.Open(assignment.JobID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open workspace")
		w.reportResult(assignment.JobID, types.JobFailed, -1, &types.JobError{Reason: types.ReasonInternal, Message: err.Error()})
		return
	}

	artifactStore, err := artifact.NewStore(w.cache, w.localStore, assignment.JobID, workspaceDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open artifact store")
		w.reportResult(assignment.JobID, types.JobFailed, -1, &types.JobError{Reason: types.ReasonInternal, Message: err.Error()})
		_ = w.workspaces.Close(assignment.JobID, true)
		return
	}

	executors := newStepExecutors(workspaceDir, w.extensions)
	sink := &streamEventSink{worker: w, jobID: assignment.JobID}
	interpreter := interp.New(executors, artifactStore, sink)

	jobErr := interpreter.Run(ctx, assignment.JobID, assignment.Pipeline, assignment.Secrets)

	phase := types.JobSucceeded
	exitCode := 0
	if jobErr != nil {
		phase = types.JobFailed
		exitCode = jobErr.ExitCode
		logger.Warn().Str("reason", string(jobErr.Reason)).Msg("job finished with error")
	}

	w.reportResult(assignment.JobID, phase, exitCode, jobErr)

	if err := w.workspaces.Close(assignment.JobID, jobErr != nil); err != nil {
		logger.Error().Err(err).Msg("failed to clean up workspace")
	}
}

func (w *Worker) reportResult(jobID string, phase types.JobPhase, exitCode int, jobErr *types.JobError) {
	if err := w.send(&proto.Envelope{
		Type: proto.MsgExecutionResult,
		ExecutionResult: &proto.ExecutionResultMessage{
			JobID:    jobID,
			Phase:    phase,
			ExitCode: exitCode,
			Error:    jobErr,
		},
	}); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to report execution result")
	}
}

// streamEventSink implements interp.EventSink by relaying every
// ExecutionEvent the interpreter emits straight to the orchestrator.
type streamEventSink struct {
	worker *Worker
	jobID  string
}

func (s *streamEventSink) Emit(event *types.ExecutionEvent) {
	if err := s.worker.send(&proto.Envelope{Type: proto.MsgExecutionEvent, ExecutionEvent: event}); err != nil {
		s.worker.logger.Error().Err(err).Str("job_id", s.jobID).Msg("failed to relay execution event")
	}
}
