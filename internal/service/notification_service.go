package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/leave-approval-api/internal/events"
	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/pkg/jobs"
)

// Notification job types, one per delivery sink so that retries stay independent.
const (
	JobPublishEvent      = "publish_event"
	JobLogRecord         = "log_record"
	JobRenderCertificate = "render_certificate"
)

type eventPublisher interface {
	Publish(ctx context.Context, event events.LeaveEvent) error
}

type recordSink interface {
	Enabled() bool
	Log(ctx context.Context, req *models.LeaveRequest) error
}

type certificateWriter interface {
	WriteCertificate(ctx context.Context, req *models.LeaveRequest) (string, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationService fans leave transitions out to the event bus, the external record log
// and certificate storage. Delivery is fire-and-forget: failures are logged and counted but
// never reach the caller.
type NotificationService struct {
	queue        jobEnqueuer
	publisher    eventPublisher
	sink         recordSink
	certificates certificateWriter
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewNotificationService constructs the service. Any collaborator may be nil.
func NewNotificationService(publisher eventPublisher, sink recordSink, certificates certificateWriter, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{publisher: publisher, sink: sink, certificates: certificates, metrics: metrics, logger: logger}
}

// SetQueue attaches the worker queue. Without one, jobs run inline.
func (s *NotificationService) SetQueue(q jobEnqueuer) {
	s.queue = q
}

// Dispatch schedules every delivery relevant to the transition.
func (s *NotificationService) Dispatch(eventType events.Type, actor models.Identity, req *models.LeaveRequest) {
	if req == nil {
		return
	}
	event := events.NewLeaveEvent(eventType, actor.ID, req)

	if s.publisher != nil {
		s.schedule(jobs.Job{Type: JobPublishEvent, Payload: event})
	}
	if s.sink != nil && s.sink.Enabled() {
		s.schedule(jobs.Job{Type: JobLogRecord, Payload: event})
	}
	if s.certificates != nil && eventType == events.TypeCompleted {
		s.schedule(jobs.Job{Type: JobRenderCertificate, Payload: event})
	}
}

func (s *NotificationService) schedule(job jobs.Job) {
	if s.queue == nil {
		if err := s.Handle(context.Background(), job); err != nil {
			s.Exhausted(job, err)
		}
		return
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("notification not queued", zap.String("type", job.Type), zap.Error(err))
		s.metrics.RecordNotificationFailure(job.Type)
	}
}

// Handle processes one notification job. It is the queue's handler.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(events.LeaveEvent)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	switch job.Type {
	case JobPublishEvent:
		return s.publisher.Publish(ctx, event)
	case JobLogRecord:
		return s.sink.Log(ctx, event.Request)
	case JobRenderCertificate:
		_, err := s.certificates.WriteCertificate(ctx, event.Request)
		return err
	default:
		return fmt.Errorf("unknown notification job %q", job.Type)
	}
}

// Exhausted records a delivery that failed on every attempt.
func (s *NotificationService) Exhausted(job jobs.Job, err error) {
	s.metrics.RecordNotificationFailure(job.Type)
	fields := []zap.Field{zap.String("type", job.Type), zap.Error(err)}
	if event, ok := job.Payload.(events.LeaveEvent); ok && event.Request != nil {
		fields = append(fields, zap.String("leave_id", event.Request.ID))
	}
	s.logger.Error("notification delivery failed", fields...)
}
