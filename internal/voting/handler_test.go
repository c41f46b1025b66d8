package voting_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/voting"
	id "convoca/pkg/domain"
	"convoca/pkg/testutil"
)

func newVotingRouter(f *serviceFixture) http.Handler {
	r := chi.NewRouter()
	voting.NewHandler(f.service, slog.Default()).Register(r)
	return r
}

func (f *serviceFixture) voteRequest(t *testing.T, questionID id.QuestionID, voterID id.AccountID, email string, options []string) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/questions/"+questionID.String()+"/vote",
		map[string]any{"selected_options": options})
	req = testutil.WithAccount(req, voterID, email, "member")
	return testutil.WithRequestTime(req, f.now)
}

func TestHandleVoteCreated(t *testing.T) {
	f := newServiceFixture(t)
	voterID := id.NewAccountID()
	f.enroll(voterID, 2)
	q := f.storedActiveQuestion()
	router := newVotingRouter(f)

	rr := testutil.DoRequest(router, f.voteRequest(t, q.ID, voterID, "voter@example.com", []string{"yes"}))

	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONHasKey(t, rr, "ballot_id")
	testutil.AssertJSONContains(t, rr, "weight", float64(2))
	testutil.AssertJSONContains(t, rr, "via_delegation", false)
}

func TestHandleVoteDenialStatuses(t *testing.T) {
	f := newServiceFixture(t)
	voterID := id.NewAccountID()
	f.enroll(voterID, 1)
	q := f.storedActiveQuestion()
	router := newVotingRouter(f)

	t.Run("not enrolled is forbidden", func(t *testing.T) {
		rr := testutil.DoRequest(router, f.voteRequest(t, q.ID, id.NewAccountID(), "stranger@example.com", []string{"yes"}))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(voting.DenialNotEnrolled))
	})

	t.Run("invalid option is bad request", func(t *testing.T) {
		rr := testutil.DoRequest(router, f.voteRequest(t, q.ID, voterID, "voter@example.com", []string{"bogus"}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(voting.DenialInvalidOption))
	})

	t.Run("second vote is conflict", func(t *testing.T) {
		rr := testutil.DoRequest(router, f.voteRequest(t, q.ID, voterID, "voter@example.com", []string{"yes"}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		rr = testutil.DoRequest(router, f.voteRequest(t, q.ID, voterID, "voter@example.com", []string{"no"}))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(voting.DenialDuplicate))
	})
}

func TestHandleVoteBadQuestionID(t *testing.T) {
	f := newServiceFixture(t)
	router := newVotingRouter(f)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/questions/not-a-uuid/vote",
		map[string]any{"selected_options": []string{"yes"}})
	req = testutil.WithAccount(req, id.NewAccountID(), "voter@example.com", "member")

	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestHandleCreateQuestionRequiresAdmin(t *testing.T) {
	f := newServiceFixture(t)
	router := newVotingRouter(f)

	body := map[string]any{
		"text":       "Adopt the bylaws?",
		"kind":       "single",
		"options":    []string{"yes", "no"},
		"start_time": f.now,
		"end_time":   f.now.Add(time.Hour),
	}
	req := testutil.NewJSONRequest(t, http.MethodPost, "/assemblies/"+f.assembly.ID.String()+"/questions", body)
	req = testutil.WithRequestTime(testutil.WithAccount(req, id.NewAccountID(), "member@example.com", "member"), f.now)

	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/assemblies/"+f.assembly.ID.String()+"/questions", body)
	req = testutil.WithRequestTime(testutil.WithAccount(req, id.NewAccountID(), "admin@example.com", "admin"), f.now)

	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr, "status", "scheduled")
}

func TestHandleResults(t *testing.T) {
	f := newServiceFixture(t)
	voterID := id.NewAccountID()
	f.enroll(voterID, 3)
	q := f.storedActiveQuestion()
	router := newVotingRouter(f)

	rr := testutil.DoRequest(router, f.voteRequest(t, q.ID, voterID, "voter@example.com", []string{"yes"}))
	require.Equal(t, http.StatusCreated, rr.Code)

	req := testutil.NewRequest(t, http.MethodGet, "/questions/"+q.ID.String()+"/results")
	rr = testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	results := testutil.UnmarshalResponse[voting.Results](t, rr)
	assert.Equal(t, 1, results.TotalBallots)
	assert.Equal(t, 3, results.TotalWeight)
	assert.Equal(t, 3, results.Tally["yes"])
}
