package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickonetwo/airtable-tsml-feed/internal/feed"
	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
)

type stubAuditor struct {
	res      feed.Result
	err      error
	deadline bool
}

func (s *stubAuditor) Audit(ctx context.Context) (feed.Result, error) {
	_, s.deadline = ctx.Deadline()
	return s.res, s.err
}

func TestNewScheduler(t *testing.T) {
	pacific, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	t.Run("Should reject an invalid spec", func(t *testing.T) {
		_, err := NewScheduler("every tuesday", pacific, time.Minute, &stubAuditor{})
		assert.Error(t, err)
	})

	t.Run("Should evaluate the schedule in the given zone", func(t *testing.T) {
		s, err := NewScheduler("0 6 * * *", pacific, time.Minute, &stubAuditor{})
		require.NoError(t, err)
		from := time.Date(2023, 6, 15, 18, 0, 0, 0, time.UTC)
		next := s.Next(from)
		assert.True(t, next.Equal(time.Date(2023, 6, 16, 13, 0, 0, 0, time.UTC)), next)
	})

	t.Run("Should start and stop cleanly", func(t *testing.T) {
		s, err := NewScheduler("@hourly", pacific, time.Minute, &stubAuditor{})
		require.NoError(t, err)
		s.Start()
		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
}

func TestScheduler_RunOnce(t *testing.T) {
	t.Run("Should return the audit result with a bounded context", func(t *testing.T) {
		aud := &stubAuditor{res: feed.Result{Fetched: 3, Records: []model.Tsml{{Slug: "a"}}, Suppressed: 2}}
		s, err := NewScheduler("@daily", time.UTC, time.Minute, aud)
		require.NoError(t, err)

		res, err := s.RunOnce(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 3, res.Fetched)
		assert.True(t, aud.deadline)
	})

	t.Run("Should surface audit errors", func(t *testing.T) {
		boom := errors.New("store unreachable")
		s, err := NewScheduler("@daily", time.UTC, 0, &stubAuditor{err: boom})
		require.NoError(t, err)
		_, err = s.RunOnce(t.Context())
		assert.ErrorIs(t, err, boom)
	})
}
