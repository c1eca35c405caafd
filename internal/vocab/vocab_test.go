package vocab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekday(t *testing.T) {
	t.Run("Should number days from Sunday", func(t *testing.T) {
		cases := map[string]int{
			"Sunday": 0, "Monday": 1, "Tuesday": 2, "Wednesday": 3,
			"Thursday": 4, "Friday": 5, "Saturday": 6,
		}
		for label, want := range cases {
			got, err := Weekday(label)
			require.NoError(t, err)
			assert.Equal(t, want, got, label)
		}
		assert.Equal(t, 7, Weekdays.Len())
	})

	t.Run("Should reject abbreviations and other casings", func(t *testing.T) {
		for _, label := range []string{"Mon", "monday", "MONDAY", " Monday", ""} {
			_, err := Weekday(label)
			var unknown *UnknownValueError
			require.ErrorAs(t, err, &unknown, label)
			assert.Equal(t, label, unknown.Key)
			assert.Equal(t, "weekday", unknown.Table)
		}
	})
}

func TestCharacteristic(t *testing.T) {
	t.Run("Should map known labels to codes", func(t *testing.T) {
		cases := map[string]string{
			"Beginners":             "BE",
			"Online Meeting":        "ONL",
			"Wheelchair Accessible": "X",
			"English":               "EN",
			"Spanish":               "S",
			"Monthly":               "MNTH",
			"LGBTQIA+":              "LGBTQIA",
		}
		for label, want := range cases {
			got, err := Characteristic(label)
			require.NoError(t, err)
			assert.Equal(t, want, got, label)
		}
	})

	t.Run("Should fail with the offending key for unknown labels", func(t *testing.T) {
		_, err := Characteristic("Nonexistent Tag")
		var unknown *UnknownValueError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "Nonexistent Tag", unknown.Key)
		assert.Contains(t, err.Error(), `"Nonexistent Tag"`)
	})

	t.Run("Should keep codes unique", func(t *testing.T) {
		seen := map[string]string{}
		for label, code := range Characteristics.Entries() {
			prev, dup := seen[code]
			assert.False(t, dup, "code %s used by %q and %q", code, prev, label)
			seen[code] = label
		}
	})
}

func TestTimezone(t *testing.T) {
	t.Run("Should map regions to IANA zones", func(t *testing.T) {
		got, err := Timezone("Pacific Time")
		require.NoError(t, err)
		assert.Equal(t, "America/Los_Angeles", got)

		got, err = Timezone("Puerto Rico Time")
		require.NoError(t, err)
		assert.Equal(t, "America/Puerto_Rico", got)
	})

	t.Run("Should fail for zone names not in the table", func(t *testing.T) {
		_, err := Timezone("America/Los_Angeles")
		var unknown *UnknownValueError
		require.ErrorAs(t, err, &unknown)
	})
}

func TestLookup_Deterministic(t *testing.T) {
	t.Run("Should return the same value on every call", func(t *testing.T) {
		for range 10 {
			got, err := Lookup(Characteristics, "Speaker")
			require.NoError(t, err)
			assert.Equal(t, "SP", got)
		}
	})

	t.Run("Should not let callers mutate the table through Entries", func(t *testing.T) {
		entries := Timezones.Entries()
		entries["Hawaii Time"] = "Pacific/Honolulu"
		_, err := Timezone("Hawaii Time")
		assert.Error(t, err)
	})
}
