package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagestats/internal/clock"
	"github.com/smallbiznis/usagestats/internal/pipeline"
	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	"github.com/smallbiznis/usagestats/internal/taxonomy"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"github.com/smallbiznis/usagestats/internal/usage/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type usageSourceStub struct {
	rows []usagedomain.RawUsageRow
	err  error
}

func (s *usageSourceStub) FetchUsage(ctx context.Context, filter usagedomain.Filter) ([]usagedomain.RawUsageRow, error) {
	return s.rows, s.err
}

type subscriberSourceStub struct{}

func (subscriberSourceStub) FetchSubscribers(ctx context.Context, filter subscriberdomain.Filter) ([]subscriberdomain.SubscriberRecord, error) {
	return nil, nil
}

func newTestWorker(t *testing.T, usage *usageSourceStub) (*Worker, *Holder) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	normalizer := service.NewNormalizer(taxonomy.NewDefault(), zap.NewNop())
	exclusions := pipeline.NewExclusions([]int64{1178}, []string{"EUROFIDAI"})
	p := pipeline.New(usage, subscriberSourceStub{}, normalizer, exclusions, node, zap.NewNop(), nil)

	holder := NewHolder()
	worker := NewWorker(
		p,
		holder,
		usagedomain.Filter{},
		time.Hour,
		clock.NewFakeClock(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)),
		zap.NewNop(),
		nil,
	)
	return worker, holder
}

func TestRunOncePublishesSnapshot(t *testing.T) {
	usage := &usageSourceStub{rows: []usagedomain.RawUsageRow{{
		UserID:          1,
		UserName:        "a.martin",
		InstitutionName: "IAE Lille",
		Year:            "2024",
		Month:           "3",
		DatabaseName:    "actions_fr",
		InteractionType: 1,
		CodeCount:       "10",
		EventTimestamp:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}

	worker, holder := newTestWorker(t, usage)
	require.Nil(t, holder.Latest())

	require.NoError(t, worker.RunOnce(context.Background()))

	snap := holder.Latest()
	require.NotNil(t, snap)
	assert.Len(t, snap.Joined, 1)
}

func TestRunOnceFailureKeepsPreviousSnapshot(t *testing.T) {
	usage := &usageSourceStub{}
	worker, holder := newTestWorker(t, usage)

	require.NoError(t, worker.RunOnce(context.Background()))
	first := holder.Latest()
	require.NotNil(t, first)

	usage.err = errors.New("store unreachable")
	require.Error(t, worker.RunOnce(context.Background()))
	assert.Same(t, first, holder.Latest())
}

func TestHolderIgnoresNil(t *testing.T) {
	holder := NewHolder()
	holder.Publish(nil)
	assert.Nil(t, holder.Latest())

	result := &pipeline.Result{}
	holder.Publish(result)
	holder.Publish(nil)
	assert.Same(t, result, holder.Latest())
}
