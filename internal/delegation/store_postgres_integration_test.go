//go:build integration

package delegation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"convoca/internal/delegation"
	id "convoca/pkg/domain"
	"convoca/pkg/platform/sentinel"
	"convoca/pkg/testutil/containers"
)

type DelegationPostgresSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	store      *delegation.PostgresStore
	assemblyID id.AssemblyID
	now        time.Time
}

func TestDelegationPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DelegationPostgresSuite))
}

func (s *DelegationPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = delegation.NewPostgres(s.postgres.DB)
}

func (s *DelegationPostgresSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "delegations", "assemblies"))

	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.assemblyID = id.NewAssemblyID()
	_, err := s.postgres.Exec(ctx, `
		INSERT INTO assemblies (id, title, description, start_time, end_time, status, created_by, created_at)
		VALUES ($1, 'AGM', '', $2, $3, 'active', $4, $2)
	`, s.assemblyID.String(), s.now.Add(-time.Hour), s.now.Add(time.Hour), uuid.NewString())
	s.Require().NoError(err)
}

func (s *DelegationPostgresSuite) newDelegation(participantID id.AccountID, email, document string) *delegation.Delegation {
	d, err := delegation.New(s.assemblyID, participantID, "Bea Costa", email, document, 3, s.now)
	s.Require().NoError(err)
	return d
}

func (s *DelegationPostgresSuite) TestCreateAndFindByID() {
	ctx := context.Background()
	d := s.newDelegation(id.NewAccountID(), "bea@example.com", "DOC-77")
	s.Require().NoError(s.store.Create(ctx, d))

	found, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(d.ParticipantID, found.ParticipantID)
	s.Equal("bea@example.com", found.DelegateEmail)
	s.Equal(delegation.StatusPending, found.Status)
	s.Nil(found.ValidatedAt)
	s.Nil(found.ValidatedBy)
}

func (s *DelegationPostgresSuite) TestParticipantUniquenessPerAssembly() {
	ctx := context.Background()
	participantID := id.NewAccountID()
	s.Require().NoError(s.store.Create(ctx, s.newDelegation(participantID, "bea@example.com", "DOC-1")))

	err := s.store.Create(ctx, s.newDelegation(participantID, "other@example.com", "DOC-2"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *DelegationPostgresSuite) TestDocumentUniquenessPerAssembly() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newDelegation(id.NewAccountID(), "bea@example.com", "DOC-1")))

	err := s.store.Create(ctx, s.newDelegation(id.NewAccountID(), "carla@example.com", "DOC-1"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *DelegationPostgresSuite) TestUpdateValidationRoundTrip() {
	ctx := context.Background()
	d := s.newDelegation(id.NewAccountID(), "bea@example.com", "DOC-1")
	s.Require().NoError(s.store.Create(ctx, d))

	adminID := id.NewAccountID()
	s.Require().NoError(d.Validate(delegation.StatusApproved, adminID, s.now))
	s.Require().NoError(s.store.UpdateValidation(ctx, d))

	found, err := s.store.FindByID(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(delegation.StatusApproved, found.Status)
	s.Require().NotNil(found.ValidatedBy)
	s.Equal(adminID, *found.ValidatedBy)
	s.Require().NotNil(found.ValidatedAt)
	s.WithinDuration(s.now, *found.ValidatedAt, time.Millisecond)
}

// Only approved delegations are visible to the eligibility lookups, and the
// email match ignores case.
func (s *DelegationPostgresSuite) TestApprovedLookups() {
	ctx := context.Background()
	participantID := id.NewAccountID()
	d := s.newDelegation(participantID, "Bea@Example.com", "DOC-1")
	s.Require().NoError(s.store.Create(ctx, d))

	_, err := s.store.FindApprovedByParticipant(ctx, s.assemblyID, participantID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindApprovedByDelegateEmail(ctx, s.assemblyID, "bea@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(d.Validate(delegation.StatusApproved, id.NewAccountID(), s.now))
	s.Require().NoError(s.store.UpdateValidation(ctx, d))

	byParticipant, err := s.store.FindApprovedByParticipant(ctx, s.assemblyID, participantID)
	s.Require().NoError(err)
	s.Equal(d.ID, byParticipant.ID)

	byEmail, err := s.store.FindApprovedByDelegateEmail(ctx, s.assemblyID, "BEA@EXAMPLE.COM")
	s.Require().NoError(err)
	s.Equal(d.ID, byEmail.ID)
}

func (s *DelegationPostgresSuite) TestListByAssembly() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newDelegation(id.NewAccountID(), "bea@example.com", "DOC-1")))
	s.Require().NoError(s.store.Create(ctx, s.newDelegation(id.NewAccountID(), "carla@example.com", "DOC-2")))

	out, err := s.store.ListByAssembly(ctx, s.assemblyID)
	s.Require().NoError(err)
	s.Len(out, 2)

	other, err := s.store.ListByAssembly(ctx, id.NewAssemblyID())
	s.Require().NoError(err)
	s.Empty(other)
}
