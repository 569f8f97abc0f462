package match

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"iso date":        "2023-01-05",
		"utc timestamp":   "2023-01-05T19:45:00Z",
		"offset stays":    "2023-01-05T10:00:00+02:00",
		"sql timestamp":   "2023-01-05 15:00:00",
		"day first":       "05/01/2023",
		"padded iso date": "  2023-01-05 ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseDate(raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseDate("yesterday")
	require.True(t, errors.Is(err, ErrInvalidRecord))
}

func TestParseDate_KeepsCalendarDayOfOffset(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("2023-01-01T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", got.Format(DateLayout))
	assert.Equal(t, time.UTC, got.Location())

	got, err = ParseDate("2023-01-02 00:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2023-01-02", got.Format(DateLayout))
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ParseScore(""))
	assert.Nil(t, ParseScore("n/a"))
	assert.Nil(t, ParseScore("-1"))
	assert.Nil(t, ParseScore("1.5"))
	require.NotNil(t, ParseScore("3"))
	assert.Equal(t, 3, *ParseScore("3"))
	assert.Equal(t, 2, *ParseScore("2.0"))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	t.Run("final record with default league", func(t *testing.T) {
		got, err := Normalize(Incoming{
			Date:      "2023-01-01",
			HomeTeam:  " Arsenal ",
			AwayTeam:  "Chelsea",
			HomeScore: IntPtr(2),
			AwayScore: IntPtr(1),
		})
		require.NoError(t, err)
		assert.Equal(t, "Arsenal", got.HomeTeam)
		assert.Equal(t, DefaultLeague, got.League)
		assert.True(t, got.IsFinal())
	})

	t.Run("half known score is pending", func(t *testing.T) {
		got, err := Normalize(Incoming{
			Date:      "2023-01-01",
			HomeTeam:  "A",
			AwayTeam:  "B",
			HomeScore: IntPtr(1),
			League:    "Premier League",
		})
		require.NoError(t, err)
		assert.True(t, got.IsPending())
		assert.Nil(t, got.HomeScore)
		assert.Equal(t, "Premier League", got.League)
	})

	t.Run("negative score is unknown", func(t *testing.T) {
		got, err := Normalize(Incoming{Date: "2023-01-01", HomeTeam: "A", AwayTeam: "B", HomeScore: IntPtr(-1), AwayScore: IntPtr(0)})
		require.NoError(t, err)
		assert.True(t, got.IsPending())
	})

	rejected := map[string]Incoming{
		"bad date":     {Date: "not-a-date", HomeTeam: "A", AwayTeam: "B"},
		"missing home": {Date: "2023-01-01", AwayTeam: "B"},
		"missing away": {Date: "2023-01-01", HomeTeam: "A", AwayTeam: "  "},
		"self match":   {Date: "2023-01-01", HomeTeam: "A", AwayTeam: " A"},
	}
	for name, in := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord))
		})
	}
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	r := Record{Date: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), HomeTeam: "B", AwayTeam: "C"}
	assert.Equal(t, "2023-01-03|B|C", r.Key().String())
}
