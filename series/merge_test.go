package series

import (
	"math/rand"
	"testing"

	"klinechart/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candle(t int64, close float64, final bool) model.Candle {
	return model.Candle{OpenTime: t, Open: close, High: close, Low: close, Close: close, Volume: 1, IsFinal: final}
}

func TestMergeReplacesSameOpenTime(t *testing.T) {
	in := []model.Candle{candle(1, 10, true), candle(2, 11, false)}
	out, err := Merge(in, candle(2, 12, false), 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 12.0, out[1].Close)
	// 입력은 그대로
	assert.Equal(t, 11.0, in[1].Close)

	out, err = Merge(out, candle(2, 13, true), 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[1].IsFinal)
	assert.Equal(t, 13.0, out[1].Close)
}

func TestMergeAppendsAndEvicts(t *testing.T) {
	var s []model.Candle
	var err error
	for i := int64(1); i <= 5; i++ {
		s, err = Merge(s, candle(i, float64(i), true), 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(s), 3)
	}
	assert.Equal(t, []int64{3, 4, 5}, model.OpenTimes(s))

	// 미확정 봉 append 도 용량을 넘지 않는다
	s, err = Merge(s, candle(6, 6, false), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, model.OpenTimes(s))
}

func TestMergeRejectsOutOfOrder(t *testing.T) {
	in := []model.Candle{candle(5, 1, true), candle(6, 1, false)}
	out, err := Merge(in, candle(4, 1, false), 10)
	assert.ErrorIs(t, err, model.ErrOutOfOrder)
	assert.Nil(t, out)
	assert.Len(t, in, 2)
}

func TestMergeInvalidMaxPoints(t *testing.T) {
	_, err := Merge(nil, candle(1, 1, true), 0)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

// history 의 마지막 봉(아직 진행 중인데 IsFinal=true 로 받은 봉)에 같은 시각의 live 봉이 오면 교체된다
func TestMergeHistoryThenLiveScenario(t *testing.T) {
	history := []model.Candle{candle(60_000, 100, true), candle(120_000, 101, true), candle(180_000, 102, true)}
	s, err := FromHistory(history, 500)
	require.NoError(t, err)

	s, err = Merge(s, candle(180_000, 103, false), 500)
	require.NoError(t, err)
	require.Len(t, s, 3)
	assert.Equal(t, 103.0, s[2].Close)
	assert.False(t, s[2].IsFinal)

	s, err = Merge(s, candle(180_000, 104, true), 500)
	require.NoError(t, err)
	s, err = Merge(s, candle(240_000, 104.5, false), 500)
	require.NoError(t, err)
	assert.Equal(t, []int64{60_000, 120_000, 180_000, 240_000}, model.OpenTimes(s))
	assert.True(t, s[2].IsFinal)
}

func TestMergeRandomizedInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const maxPoints = 20
	var s []model.Candle
	last := int64(0)
	for i := 0; i < 2000; i++ {
		ts := last + int64(r.Intn(3)) - 1
		if ts < 0 {
			ts = 0
		}
		next, err := Merge(s, candle(ts, r.Float64()*100, r.Intn(2) == 0), maxPoints)
		if err != nil {
			assert.ErrorIs(t, err, model.ErrOutOfOrder)
			continue
		}
		s = next
		last = s[len(s)-1].OpenTime

		require.LessOrEqual(t, len(s), maxPoints)
		for j := 1; j < len(s); j++ {
			require.Less(t, s[j-1].OpenTime, s[j].OpenTime)
		}
	}
}

func TestFromHistory(t *testing.T) {
	in := []model.Candle{candle(3, 3, true), candle(1, 1, true), candle(2, 2, true), candle(3, 30, true), candle(4, 4, true)}
	out, err := FromHistory(in, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, model.OpenTimes(out))
	assert.Equal(t, 30.0, out[1].Close)
	assert.Equal(t, int64(3), in[0].OpenTime)

	empty, err := FromHistory(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = FromHistory(in, 0)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}
