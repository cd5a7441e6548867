// Package notify выполняет уведомления в фоне. Запрос не ждёт отправки и не
// узнаёт о её неудаче: ошибки уходят в отдельный канал (dead letter).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job одна отправка. Kind и Ref попадают в dead letter, если Run не удался.
type Job struct {
	Kind string
	Ref  string
	Run  func(ctx context.Context) error
}

// Failure запись о неудавшемся уведомлении
type Failure struct {
	Kind     string    `json:"kind"`
	Ref      string    `json:"ref"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

type DeadLetter interface {
	Record(ctx context.Context, f Failure) error
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

const KindProposalConfirmation = "proposal_confirmation"

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("dispatcher is closed")
)

type Dispatcher struct {
	jobs     chan Job
	overflow chan Failure
	dead     DeadLetter
	log      *zap.Logger
	timeout  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	recorder sync.WaitGroup
}

func NewDispatcher(opts Options, dead DeadLetter, log *zap.Logger) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	d := &Dispatcher{
		jobs:     make(chan Job, opts.QueueSize),
		overflow: make(chan Failure, opts.QueueSize),
		dead:     dead,
		log:      log.Named("notify"),
		timeout:  opts.Timeout,
		now:      time.Now,
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	d.recorder.Add(1)
	go d.recordOverflow()
	return d
}

// Submit ставит задачу в очередь и не блокируется. Если очередь заполнена,
// запись в dead letter делает отдельная горутина, запрос её не ждёт.
func (d *Dispatcher) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		// после Close запросов уже нет, пишем сразу
		d.fail(job, ErrClosed)
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
	}

	f := d.failure(job, ErrQueueFull)
	select {
	case d.overflow <- f:
	default:
		d.log.Error("dead letter backlog is full, failure dropped",
			zap.String("kind", f.Kind), zap.String("ref", f.Ref))
	}
	return false
}

// Close перестаёт принимать задачи, дожидается выполнения очереди и записи отказов
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
		close(d.overflow)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.recorder.Wait()
}

func (d *Dispatcher) recordOverflow() {
	defer d.recorder.Done()
	for f := range d.overflow {
		d.record(f)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		if err := d.run(job); err != nil {
			d.fail(job, err)
			continue
		}
		d.log.Debug("notification delivered", zap.String("kind", job.Kind), zap.String("ref", job.Ref))
	}
}

func (d *Dispatcher) run(job Job) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return job.Run(ctx)
}

func (d *Dispatcher) fail(job Job, err error) {
	d.record(d.failure(job, err))
}

func (d *Dispatcher) failure(job Job, err error) Failure {
	d.log.Error("notification failed",
		zap.String("kind", job.Kind),
		zap.String("ref", job.Ref),
		zap.Error(err),
	)
	return Failure{Kind: job.Kind, Ref: job.Ref, Error: err.Error(), FailedAt: d.now().UTC()}
}

func (d *Dispatcher) record(f Failure) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rerr := d.dead.Record(ctx, f); rerr != nil {
		d.log.Error("failed to record dead letter", zap.String("ref", f.Ref), zap.Error(rerr))
	}
}
