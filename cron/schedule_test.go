package cron_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/cron"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestNextOccurrence_Scenarios(t *testing.T) {
	tests := []struct {
		expr string
		from string
		want string
	}{
		{"0 0 * * * *", "2025-01-01T00:10:00Z", "2025-01-01T01:00:00Z"},
		{"0 0 */2 * * *", "2025-01-01T03:30:00Z", "2025-01-01T04:00:00Z"},
		{"0 0 13 * * *", "2025-01-01T12:59:59Z", "2025-01-01T13:00:00Z"},
		{"*/15 * * * * *", "2025-01-01T00:00:00Z", "2025-01-01T00:00:15Z"},
		{"0 30 9 * * MON-FRI", "2025-01-03T10:00:00Z", "2025-01-06T09:30:00Z"},
		{"0 0 0 1 * *", "2025-01-31T23:59:59Z", "2025-02-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.expr+"@"+tt.from, func(t *testing.T) {
			got, err := cron.NextOccurrence(tt.expr, utc(tt.from))
			if err != nil {
				t.Fatalf("NextOccurrence: %v", err)
			}
			if !got.Equal(utc(tt.want)) {
				t.Errorf("got %s, want %s", got.Format(time.RFC3339), tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestNextOccurrence_StrictlyAfter(t *testing.T) {
	// from is itself an occurrence; the result must be the next one.
	from := utc("2025-01-01T01:00:00Z")
	got, err := cron.NextOccurrence("0 0 * * * *", from)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	if want := utc("2025-01-01T02:00:00Z"); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}

	// Sub-second offsets still move forward.
	got, err = cron.NextOccurrence("* * * * * *", from.Add(500*time.Millisecond))
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	if want := from.Add(time.Second); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestNextOccurrence_UsesUTCCalendar(t *testing.T) {
	// 12:30 in UTC-5 is 17:30 UTC. The next 13:00 in the UTC calendar is
	// the following day, not 30 minutes later.
	loc := time.FixedZone("EST", -5*60*60)
	from := time.Date(2025, 1, 1, 12, 30, 0, 0, loc)

	got, err := cron.NextOccurrence("0 0 13 * * *", from)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	if want := utc("2025-01-02T13:00:00Z"); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestNextOccurrence_Deterministic(t *testing.T) {
	exprs := []string{"0 0 * * * *", "*/7 */3 * * * *", "0 15 10 1-7 * *", "0 0 0 * * SUN"}
	from := utc("2025-06-15T08:21:43Z")

	for _, expr := range exprs {
		a, errA := cron.NextOccurrence(expr, from)
		b, errB := cron.NextOccurrence(expr, from)
		if (errA == nil) != (errB == nil) || !a.Equal(b) {
			t.Errorf("%q: results differ: %v/%v vs %v/%v", expr, a, errA, b, errB)
		}
		if errA == nil && !a.After(from) {
			t.Errorf("%q: %s is not after %s", expr, a, from)
		}
	}
}

func TestNextOccurrence_Malformed(t *testing.T) {
	for _, expr := range []string{
		"",
		"0 * * * *",          // five fields
		"0 0 * * * * *",      // seven fields
		"60 0 * * * *",       // seconds out of range
		"0 0 25 * * *",       // hours out of range
		"0 0 * * 13 *",       // month out of range
		"a b c d e f",        // syntax
		"@hourly",            // descriptors not accepted
		"TZ=UTC 0 0 * * * *", // time zone prefix
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := cron.NextOccurrence(expr, utc("2025-01-01T00:00:00Z"))
			if !errors.Is(err, flowsync.ErrMalformedSchedule) {
				t.Fatalf("err = %v, want ErrMalformedSchedule", err)
			}
			var mse *cron.MalformedScheduleError
			if !errors.As(err, &mse) {
				t.Fatalf("err = %T, want *MalformedScheduleError", err)
			}
			if mse.Expr != expr {
				t.Errorf("Expr = %q, want %q", mse.Expr, expr)
			}
		})
	}
}

func TestNextOccurrence_NeverFiresFallsBack(t *testing.T) {
	// February 30th never occurs.
	from := utc("2025-01-01T00:00:00Z")
	got, err := cron.NextOccurrence("0 0 0 30 2 *", from)
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	if want := from.Add(cron.FallbackDelay); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestEvaluator_ConcurrentUse(t *testing.T) {
	ev := cron.NewEvaluator()
	from := utc("2025-01-01T00:10:00Z")
	want := utc("2025-01-01T01:00:00Z")

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ev.Next("0 0 * * * *", from)
			if err != nil || !got.Equal(want) {
				t.Errorf("Next = %v, %v", got, err)
			}
		}()
	}
	wg.Wait()
}
