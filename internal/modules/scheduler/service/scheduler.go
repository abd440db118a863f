package service

import (
	"context"
	"fmt"
	"sync"

	"auto_trading_bot/internal/models"
	"auto_trading_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	Run(ctx context.Context, assetIDs []string, mode models.Mode) models.AnalysisResult
}

type Recorder interface {
	RecordAnalysis(ctx context.Context, mode string, res models.AnalysisResult) error
}

type Publisher interface {
	Publish(eventType string, payload any)
}

type Notifier interface {
	NotifyAnalysis(ctx context.Context, res models.AnalysisResult)
}

type Config struct {
	Spec   string
	Assets []string
	Mode   models.Mode
}

// Scheduler runs the orchestrator on a cron spec (with seconds). Runs never overlap.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	rec      Recorder
	pub      Publisher
	notifier Notifier
	cfg      Config

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

type noopNotifier struct{}

func (noopNotifier) NotifyAnalysis(context.Context, models.AnalysisResult) {}

func NewScheduler(runner Runner, rec Recorder, pub Publisher, cfg Config) *Scheduler {
	cl := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:   runner,
		rec:      rec,
		pub:      pub,
		notifier: noopNotifier{},
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetNotifier routes scheduled run reports to n.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Register adds the periodic run. An empty spec disables scheduling.
func (s *Scheduler) Register() error {
	if s.cfg.Spec == "" {
		logger.Info("[SCHED] no schedule configured")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.scheduledRun); err != nil {
		return errors.Wrapf(err, "register schedule %q", s.cfg.Spec)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("[SCHED] started, spec=%q mode=%s assets=%v", s.cfg.Spec, s.cfg.Mode, s.cfg.Assets)
}

func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("[SCHED] stopped")
}

func (s *Scheduler) scheduledRun() {
	logger.Info("[SCHED] scheduled run")
	res := s.RunNow(s.ctx, s.cfg.Mode, s.cfg.Assets)

	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	n.NotifyAnalysis(s.ctx, res)
}

// RunNow performs one run, journals it and streams it. Concurrent calls are serialised.
func (s *Scheduler) RunNow(ctx context.Context, mode models.Mode, assets []string) models.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(assets) == 0 {
		assets = s.cfg.Assets
	}
	res := s.runner.Run(ctx, assets, mode)

	if err := s.rec.RecordAnalysis(ctx, string(mode), res); err != nil {
		logger.Error("[SCHED] record analysis: %v", err)
	}
	s.pub.Publish("analysis", res)
	return res
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("[SCHED] %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("[SCHED] %s: %v %s", msg, err, fmt.Sprint(keysAndValues...))
}
