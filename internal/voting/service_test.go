package voting_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/assembly"
	"convoca/internal/audit"
	"convoca/internal/voting"
	id "convoca/pkg/domain"
	"convoca/pkg/requestcontext"
)

// captureRecorder collects audit events synchronously for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *captureRecorder) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

type serviceFixture struct {
	*resolverFixture
	questions *voting.InMemoryQuestionStore
	recorder  *captureRecorder
	service   *voting.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	base := newResolverFixture(t)
	questions := voting.NewInMemoryQuestionStore()
	recorder := &captureRecorder{}
	svc, err := voting.NewService(questions, base.ballots, base.resolver, base.assemblies,
		voting.WithRecorder(recorder),
	)
	require.NoError(t, err)
	return &serviceFixture{
		resolverFixture: base,
		questions:       questions,
		recorder:        recorder,
		service:         svc,
	}
}

// storedActiveQuestion persists an active question so CastVote can load it.
func (f *serviceFixture) storedActiveQuestion() *voting.Question {
	f.t.Helper()
	q := f.activeQuestion()
	require.NoError(f.t, f.questions.Create(f.ctx, q))
	return q
}

func (f *serviceFixture) timedCtx() context.Context {
	return requestcontext.WithTime(context.Background(), f.now)
}

func TestCastVotePersistsBallot(t *testing.T) {
	f := newServiceFixture(t)
	voterID := id.NewAccountID()
	f.enroll(voterID, 3)
	q := f.storedActiveQuestion()

	ballot, err := f.service.CastVote(f.timedCtx(), voting.Voter{ID: voterID, Email: "voter@example.com"}, q.ID, []string{"yes"})
	require.NoError(t, err)

	assert.Equal(t, voterID, ballot.EffectiveVoterID)
	assert.Equal(t, 3, ballot.Weight)
	assert.Equal(t, f.now, ballot.CastAt)

	stored, err := f.ballots.ListByQuestion(f.ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ballot.ID, stored[0].ID)

	assert.Equal(t, []audit.Action{audit.ActionVoteAttempted, audit.ActionVoteCast}, f.recorder.actions())
}

func TestCastVoteDeniedIsAudited(t *testing.T) {
	f := newServiceFixture(t)
	q := f.storedActiveQuestion()

	_, err := f.service.CastVote(f.timedCtx(), voting.Voter{ID: id.NewAccountID(), Email: "stranger@example.com"}, q.ID, []string{"yes"})
	requireDenial(t, err, voting.DenialNotEnrolled)

	actions := f.recorder.actions()
	require.Len(t, actions, 2)
	assert.Equal(t, audit.ActionVoteAttempted, actions[0])
	assert.Equal(t, audit.ActionVoteDenied, actions[1])
}

func TestCastVoteSecondAttemptIsDuplicate(t *testing.T) {
	f := newServiceFixture(t)
	voterID := id.NewAccountID()
	f.enroll(voterID, 1)
	q := f.storedActiveQuestion()
	voter := voting.Voter{ID: voterID, Email: "voter@example.com"}

	_, err := f.service.CastVote(f.timedCtx(), voter, q.ID, []string{"yes"})
	require.NoError(t, err)

	_, err = f.service.CastVote(f.timedCtx(), voter, q.ID, []string{"no"})
	requireDenial(t, err, voting.DenialDuplicate)
}

// Concurrent attempts for the same effective voter must produce exactly one
// ballot; the store's uniqueness guarantee settles the race the pre-check
// cannot see.
func TestCastVoteConcurrentAtMostOnce(t *testing.T) {
	f := newServiceFixture(t)
	voterID := id.NewAccountID()
	f.enroll(voterID, 2)
	q := f.storedActiveQuestion()
	voter := voting.Voter{ID: voterID, Email: "voter@example.com"}

	const attempts = 32
	var succeeded, duplicates atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.service.CastVote(f.timedCtx(), voter, q.ID, []string{"yes"})
			switch {
			case err == nil:
				succeeded.Add(1)
			default:
				var denial *voting.DenialError
				if assert.ErrorAs(t, err, &denial) {
					assert.Equal(t, voting.DenialDuplicate, denial.Reason)
					duplicates.Add(1)
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(attempts-1), duplicates.Load())

	stored, err := f.ballots.ListByQuestion(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestTallyResultsWeighted(t *testing.T) {
	f := newServiceFixture(t)
	q := f.storedActiveQuestion()

	voters := []struct {
		shares int
		choice string
	}{
		{shares: 3, choice: "yes"},
		{shares: 2, choice: "no"},
		{shares: 1, choice: "yes"},
	}
	for _, v := range voters {
		voterID := id.NewAccountID()
		f.enroll(voterID, v.shares)
		_, err := f.service.CastVote(f.timedCtx(), voting.Voter{ID: voterID, Email: voterID.String() + "@example.com"}, q.ID, []string{v.choice})
		require.NoError(t, err)
	}

	results, err := f.service.TallyResults(f.ctx, q.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, results.TotalBallots)
	assert.Equal(t, 6, results.TotalWeight)
	assert.Equal(t, map[string]int{"yes": 4, "no": 2, "abstain": 0}, results.Tally)
}

func TestQuestionLifecycle(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.assemblies.Transition(f.timedCtx(), f.assembly.ID, assembly.StatusActive)
	require.NoError(t, err)

	q, err := f.service.CreateQuestion(f.timedCtx(), f.assembly.ID, "Adopt the bylaws?", voting.KindSingleChoice,
		[]string{"yes", "no"}, f.now, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, voting.QuestionScheduled, q.Status)

	q, err = f.service.TransitionQuestion(f.timedCtx(), q.ID, voting.QuestionActive)
	require.NoError(t, err)
	assert.Equal(t, voting.QuestionActive, q.Status)

	// Completed is terminal.
	q, err = f.service.TransitionQuestion(f.timedCtx(), q.ID, voting.QuestionCompleted)
	require.NoError(t, err)
	_, err = f.service.TransitionQuestion(f.timedCtx(), q.ID, voting.QuestionActive)
	require.Error(t, err)
}

func TestCreateQuestionRejectsFinishedAssembly(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.assemblies.Transition(f.timedCtx(), f.assembly.ID, assembly.StatusCancelled)
	require.NoError(t, err)

	_, err = f.service.CreateQuestion(f.timedCtx(), f.assembly.ID, "Too late?", voting.KindSingleChoice,
		[]string{"yes", "no"}, f.now, f.now.Add(time.Hour))
	require.Error(t, err)
}
