package delegation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"convoca/internal/assembly"
	"convoca/internal/delegation"
	id "convoca/pkg/domain"
	dErrors "convoca/pkg/domain-errors"
	"convoca/pkg/requestcontext"
)

type DelegationServiceSuite struct {
	suite.Suite

	ctx        context.Context
	now        time.Time
	assemblies *assembly.Service
	store      *delegation.InMemoryStore
	service    *delegation.Service
	assembly   *assembly.Assembly
	member     id.AccountID
}

func (s *DelegationServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	assemblyStore := assembly.NewInMemoryStore()
	var err error
	s.assemblies, err = assembly.NewService(assemblyStore)
	s.Require().NoError(err)

	s.store = delegation.NewInMemoryStore()
	s.service, err = delegation.NewService(s.store, s.assemblies)
	s.Require().NoError(err)

	s.assembly, err = assembly.New("AGM", "", s.now.Add(-time.Hour), s.now.Add(time.Hour), id.NewAccountID(), s.now)
	s.Require().NoError(err)
	s.Require().NoError(assemblyStore.Create(s.ctx, s.assembly))

	s.member = id.NewAccountID()
	_, err = s.assemblies.Enroll(s.ctx, s.assembly.ID, s.member, 5)
	s.Require().NoError(err)
}

func (s *DelegationServiceSuite) TestCreatePending() {
	d, err := s.service.Create(s.ctx, s.assembly.ID, s.member, "Bruno Costa", "bruno@example.com", "DOC-7", 0)
	s.Require().NoError(err)

	s.Equal(delegation.StatusPending, d.Status)
	// Shares default to the participant's enrolled weight.
	s.Equal(5, d.SharesDelegated)
	s.Equal(s.member, d.ParticipantID)
}

func (s *DelegationServiceSuite) TestCreateRequiresEnrollment() {
	_, err := s.service.Create(s.ctx, s.assembly.ID, id.NewAccountID(), "Bruno", "bruno@example.com", "DOC-7", 1)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))
}

func (s *DelegationServiceSuite) TestCreateRejectsSecondDelegation() {
	_, err := s.service.Create(s.ctx, s.assembly.ID, s.member, "Bruno", "bruno@example.com", "DOC-7", 1)
	s.Require().NoError(err)

	_, err = s.service.Create(s.ctx, s.assembly.ID, s.member, "Carla", "carla@example.com", "DOC-8", 1)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *DelegationServiceSuite) TestCreateRejectsReusedDocument() {
	_, err := s.service.Create(s.ctx, s.assembly.ID, s.member, "Bruno", "bruno@example.com", "DOC-7", 1)
	s.Require().NoError(err)

	other := id.NewAccountID()
	_, enrollErr := s.assemblies.Enroll(s.ctx, s.assembly.ID, other, 2)
	s.Require().NoError(enrollErr)

	_, err = s.service.Create(s.ctx, s.assembly.ID, other, "Bruno Again", "bruno2@example.com", "DOC-7", 1)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *DelegationServiceSuite) TestValidateApproves() {
	d, err := s.service.Create(s.ctx, s.assembly.ID, s.member, "Bruno", "bruno@example.com", "DOC-7", 1)
	s.Require().NoError(err)

	adminID := id.NewAccountID()
	adminCtx := requestcontext.WithAccountID(s.ctx, adminID)
	approved, err := s.service.Validate(adminCtx, d.ID, delegation.StatusApproved)
	s.Require().NoError(err)

	s.Equal(delegation.StatusApproved, approved.Status)
	s.Require().NotNil(approved.ValidatedBy)
	s.Equal(adminID, *approved.ValidatedBy)
	s.Require().NotNil(approved.ValidatedAt)
	s.Equal(s.now, *approved.ValidatedAt)

	// The resolver lookups see it immediately.
	out, err := s.service.Outgoing(s.ctx, s.assembly.ID, s.member)
	s.Require().NoError(err)
	s.Equal(d.ID, out.ID)

	in, err := s.service.Incoming(s.ctx, s.assembly.ID, "BRUNO@example.com")
	s.Require().NoError(err)
	s.Equal(d.ID, in.ID)
}

func (s *DelegationServiceSuite) TestValidateTwiceConflicts() {
	d, err := s.service.Create(s.ctx, s.assembly.ID, s.member, "Bruno", "bruno@example.com", "DOC-7", 1)
	s.Require().NoError(err)

	_, err = s.service.Validate(s.ctx, d.ID, delegation.StatusRejected)
	s.Require().NoError(err)

	_, err = s.service.Validate(s.ctx, d.ID, delegation.StatusApproved)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *DelegationServiceSuite) TestRejectedDelegationInvisibleToResolverLookups() {
	d, err := s.service.Create(s.ctx, s.assembly.ID, s.member, "Bruno", "bruno@example.com", "DOC-7", 1)
	s.Require().NoError(err)
	_, err = s.service.Validate(s.ctx, d.ID, delegation.StatusRejected)
	s.Require().NoError(err)

	_, err = s.service.Outgoing(s.ctx, s.assembly.ID, s.member)
	s.Require().Error(err)

	_, err = s.service.Incoming(s.ctx, s.assembly.ID, "bruno@example.com")
	s.Require().Error(err)
}

func TestDelegationServiceSuite(t *testing.T) {
	suite.Run(t, new(DelegationServiceSuite))
}
