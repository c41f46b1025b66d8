//go:build integration

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"convoca/internal/auth"
	"convoca/pkg/testutil/containers"
)

type LockoutPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auth.PostgresLockoutStore
	now      time.Time
}

func TestLockoutPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LockoutPostgresSuite))
}

func (s *LockoutPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = auth.NewPostgresLockoutStore(s.postgres.DB, 15*time.Minute)
}

func (s *LockoutPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "login_lockouts"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *LockoutPostgresSuite) TestGetMissingReturnsNil() {
	record, err := s.store.Get(context.Background(), "ghost@example.com")
	s.Require().NoError(err)
	s.Nil(record)
}

func (s *LockoutPostgresSuite) TestRecordFailureIncrements() {
	ctx := context.Background()

	record, err := s.store.RecordFailure(ctx, "ana@example.com", s.now)
	s.Require().NoError(err)
	s.Equal(1, record.FailureCount)

	record, err = s.store.RecordFailure(ctx, "ana@example.com", s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Equal(2, record.FailureCount)
	s.Nil(record.LockedUntil)
}

// TestConcurrentFailuresLoseNoCounts exercises the atomic upsert: every
// concurrent failure must land in the count exactly once.
func (s *LockoutPostgresSuite) TestConcurrentFailuresLoseNoCounts() {
	ctx := context.Background()
	const attempts = 30

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.RecordFailure(ctx, "ana@example.com", s.now)
			s.NoError(err)
		}()
	}
	wg.Wait()

	record, err := s.store.Get(ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(attempts, record.FailureCount)
}

// A failure after the window elapsed restarts the count at one instead of
// stacking onto stale history.
func (s *LockoutPostgresSuite) TestWindowExpiryResetsCount() {
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.store.RecordFailure(ctx, "ana@example.com", s.now)
		s.Require().NoError(err)
	}

	record, err := s.store.RecordFailure(ctx, "ana@example.com", s.now.Add(16*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, record.FailureCount)
}

func (s *LockoutPostgresSuite) TestSetLockAndClear() {
	ctx := context.Background()

	_, err := s.store.RecordFailure(ctx, "ana@example.com", s.now)
	s.Require().NoError(err)

	until := s.now.Add(15 * time.Minute)
	s.Require().NoError(s.store.SetLock(ctx, "ana@example.com", until))

	record, err := s.store.Get(ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Require().NotNil(record.LockedUntil)
	s.WithinDuration(until, *record.LockedUntil, time.Millisecond)
	s.True(record.IsLockedAt(s.now.Add(time.Minute)))
	s.False(record.IsLockedAt(until.Add(time.Second)))

	s.Require().NoError(s.store.Clear(ctx, "ana@example.com"))
	record, err = s.store.Get(ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Nil(record)
}

func (s *LockoutPostgresSuite) TestSetLockWithoutRecordFails() {
	err := s.store.SetLock(context.Background(), "ghost@example.com", s.now)
	s.Error(err)
}
