package service

import (
	"context"
	"sync"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	notifdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/providers/email"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/providers/slack"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	queueSize    = 256
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   notifdomain.Repository
	Email  email.Provider
	Slack  slack.Provider
	Config config.Config
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    notifdomain.Repository
	email   email.Provider
	slack   slack.Provider
	channel string

	backoff time.Duration
	queue   chan notifdomain.Event
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("notification.dispatcher"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		email:   p.Email,
		slack:   p.Slack,
		channel: p.Config.Slack.Channel,
		backoff: retryBackoff,
		queue:   make(chan notifdomain.Event, queueSize),
	}
}

func AsDispatcher(s *Service) notifdomain.Dispatcher { return s }

// RegisterHooks starts the background delivery worker and drains it on stop.
func RegisterHooks(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			s.Stop()
			return nil
		},
	})
}

func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range s.queue {
			s.deliver(context.Background(), event)
		}
	}()
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Dispatch enqueues the event for asynchronous fan-out. When the queue is
// full, or the dispatcher has already stopped, the event is dropped and
// logged; delivery failures must never block the transition that produced
// the event.
func (s *Service) Dispatch(event notifdomain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("dispatcher stopped, dropping event",
			zap.String("project_id", event.ProjectID.String()),
			zap.String("type", string(event.Type)),
		)
		return
	}
	select {
	case s.queue <- event:
	default:
		s.log.Warn("notification queue full, dropping event",
			zap.String("project_id", event.ProjectID.String()),
			zap.String("type", string(event.Type)),
		)
	}
}

func (s *Service) SetPreference(ctx context.Context, pref notifdomain.Preference) error {
	if pref.UserID == 0 {
		return notifdomain.ErrInvalidUser
	}
	switch pref.NotificationType {
	case notifdomain.TypeSuspension, notifdomain.TypeDetection, notifdomain.TypeOverride, notifdomain.TypeWarning:
	default:
		return notifdomain.ErrInvalidType
	}
	for _, ch := range pref.Channels {
		if notifdomain.Channel(ch) != notifdomain.ChannelEmail && notifdomain.Channel(ch) != notifdomain.ChannelSlack {
			return notifdomain.ErrInvalidChannel
		}
	}

	if pref.ID == 0 {
		pref.ID = s.genID.Generate()
	}
	now := s.clock.Now()
	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = now
	}
	pref.UpdatedAt = now
	return s.repo.UpsertPreference(ctx, s.db, &pref)
}

func (s *Service) ListDeliveries(ctx context.Context, projectID snowflake.ID, limit int) ([]notifdomain.Delivery, error) {
	return s.repo.ListDeliveries(ctx, s.db, projectID, limit)
}

func (s *Service) deliver(ctx context.Context, event notifdomain.Event) {
	recipients, err := s.repo.ListRecipients(ctx, s.db, event.ProjectID)
	if err != nil {
		s.log.Warn("failed to resolve notification recipients",
			zap.String("project_id", event.ProjectID.String()),
			zap.Error(err),
		)
		return
	}

	for _, recipient := range recipients {
		channels := s.effectiveChannels(ctx, recipient, event)
		for _, channel := range channels {
			s.deliverOne(ctx, event, recipient, channel)
		}
	}
}

// effectiveChannels applies preference filtering. No preference row means the
// default applies: enabled, email only.
func (s *Service) effectiveChannels(ctx context.Context, recipient notifdomain.Recipient, event notifdomain.Event) []notifdomain.Channel {
	pref, err := s.repo.FindPreference(ctx, s.db, recipient.UserID, event.ProjectID, event.Type)
	if err != nil {
		s.log.Warn("failed to read notification preference",
			zap.String("user_id", recipient.UserID.String()),
			zap.Error(err),
		)
		return []notifdomain.Channel{notifdomain.ChannelEmail}
	}
	if pref == nil {
		return []notifdomain.Channel{notifdomain.ChannelEmail}
	}
	if !pref.Enabled {
		return nil
	}

	channels := make([]notifdomain.Channel, 0, len(pref.Channels))
	for _, ch := range pref.Channels {
		channels = append(channels, notifdomain.Channel(ch))
	}
	return channels
}

func (s *Service) deliverOne(ctx context.Context, event notifdomain.Event, recipient notifdomain.Recipient, channel notifdomain.Channel) {
	delivery := &notifdomain.Delivery{
		ID:               s.genID.Generate(),
		UserID:           recipient.UserID,
		ProjectID:        event.ProjectID,
		NotificationType: event.Type,
		Channel:          channel,
		Status:           notifdomain.DeliveryPending,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.repo.InsertDelivery(ctx, s.db, delivery); err != nil {
		s.log.Warn("failed to record notification delivery", zap.Error(err))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delivery.Attempts = attempt
		lastErr = s.send(ctx, event, recipient, channel)
		if lastErr == nil {
			break
		}
		if attempt < maxAttempts && s.backoff > 0 {
			time.Sleep(s.backoff)
		}
	}

	if lastErr != nil {
		msg := lastErr.Error()
		delivery.Status = notifdomain.DeliveryFailed
		delivery.LastError = &msg
		s.log.Warn("notification delivery failed",
			zap.String("project_id", event.ProjectID.String()),
			zap.String("channel", string(channel)),
			zap.Int("attempts", delivery.Attempts),
			zap.Error(lastErr),
		)
	} else {
		sentAt := s.clock.Now()
		delivery.Status = notifdomain.DeliverySent
		delivery.SentAt = &sentAt
	}

	if err := s.repo.UpdateDelivery(ctx, s.db, delivery); err != nil {
		s.log.Warn("failed to update notification delivery", zap.Error(err))
	}
}

func (s *Service) send(ctx context.Context, event notifdomain.Event, recipient notifdomain.Recipient, channel notifdomain.Channel) error {
	switch channel {
	case notifdomain.ChannelSlack:
		target := recipient.SlackChannel
		if target == "" {
			target = s.channel
		}
		return s.slack.PostMessage(ctx, target, event.Subject+"\n"+event.Body)
	default:
		return s.email.Send(ctx, []string{recipient.Email}, event.Subject, event.Body)
	}
}
