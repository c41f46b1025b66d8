// Package verification issues short-lived account verification codes. Codes
// live in Redis under a TTL; deliveries queue in memory and a sender job
// drains them to the mailer on a ticker.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"convoca/pkg/email"
)

// CodeStore keeps issued codes until they expire.
type CodeStore interface {
	Put(ctx context.Context, emailAddr, code string) error
	Get(ctx context.Context, emailAddr string) (string, error)
	Delete(ctx context.Context, emailAddr string) error
}

// RedisCodeStore stores codes with the configured TTL. Expiry is Redis's job;
// a vanished key simply means the code is no longer valid.
type RedisCodeStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCodeStore(client redis.Cmdable, ttl time.Duration) *RedisCodeStore {
	return &RedisCodeStore{client: client, ttl: ttl}
}

func codeKey(emailAddr string) string {
	return "verification:code:" + emailAddr
}

func (s *RedisCodeStore) Put(ctx context.Context, emailAddr, code string) error {
	if err := s.client.Set(ctx, codeKey(emailAddr), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Get(ctx context.Context, emailAddr string) (string, error) {
	code, err := s.client.Get(ctx, codeKey(emailAddr)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("get verification code: %w", err)
	}
	return code, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, emailAddr string) error {
	if err := s.client.Del(ctx, codeKey(emailAddr)).Err(); err != nil {
		return fmt.Errorf("delete verification code: %w", err)
	}
	return nil
}

// InMemoryCodeStore backs tests and runs without Redis.
type InMemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewInMemoryCodeStore() *InMemoryCodeStore {
	return &InMemoryCodeStore{codes: make(map[string]string)}
}

func (s *InMemoryCodeStore) Put(_ context.Context, emailAddr, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[emailAddr] = code
	return nil
}

func (s *InMemoryCodeStore) Get(_ context.Context, emailAddr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[emailAddr], nil
}

func (s *InMemoryCodeStore) Delete(_ context.Context, emailAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, emailAddr)
	return nil
}

type delivery struct {
	email string
	name  string
	code  string
}

// Service issues codes and queues their delivery. Issue never blocks on the
// mailer; the sender drains the queue on its own schedule.
type Service struct {
	store  CodeStore
	mailer email.Mailer
	logger *slog.Logger

	mu      sync.Mutex
	pending []delivery
}

func NewService(store CodeStore, mailer email.Mailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, mailer: mailer, logger: logger}
}

// Issue generates a 6-digit code, stores it under the TTL, and queues the
// delivery.
func (s *Service) Issue(ctx context.Context, emailAddr, name string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.store.Put(ctx, emailAddr, code); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, delivery{email: emailAddr, name: name, code: code})
	s.mu.Unlock()
	return nil
}

// Confirm checks a submitted code and consumes it on success.
func (s *Service) Confirm(ctx context.Context, emailAddr, code string) (bool, error) {
	stored, err := s.store.Get(ctx, emailAddr)
	if err != nil {
		return false, err
	}
	if stored == "" || stored != code {
		return false, nil
	}
	if err := s.store.Delete(ctx, emailAddr); err != nil {
		return false, err
	}
	return true, nil
}

// Run drains pending deliveries on the given interval until the context ends.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *Service) drain(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, d := range batch {
		first, _ := email.DeriveNameFromEmail(d.email)
		greeting := d.name
		if greeting == "" {
			greeting = first
		}
		body := fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It expires shortly.\n", greeting, d.code)
		if err := s.mailer.Send(ctx, d.email, "Your verification code", body); err != nil {
			s.logger.ErrorContext(ctx, "failed to deliver verification code",
				"error", err,
				"to", d.email,
			)
		}
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
