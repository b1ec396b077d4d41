package expiry

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"12/30", true}, {"01/00", true}, {"09/99", true},
		{"13/30", false}, {"00/30", false}, {"1230", false},
		{"1/30", false}, {"12/3a", false}, {"12-30", false}, {"", false},
	}
	for _, c := range cases {
		_, err := Parse(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("Parse(%s) ok=%v got err=%v", c.in, c.ok, err)
		}
	}

	d, err := Parse("10/30")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.Year != 2030 || d.Month != time.October {
		t.Fatalf("Parse 10/30 got %+v", d)
	}
	if got := d.CardFace(); got != "10/30" {
		t.Fatalf("CardFace got %s want 10/30", got)
	}
}

func TestEndOfMonth(t *testing.T) {
	// 2030-02 (non-leap): 28th 23:59:59.999999999
	d, _ := Parse("02/30")
	want := time.Date(2030, time.February, 28, 23, 59, 59, 999999999, time.UTC)
	if got := d.EndOfMonth(nil); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	// 2028-02 (leap)
	d, _ = Parse("02/28")
	want = time.Date(2028, time.February, 29, 23, 59, 59, 999999999, time.UTC)
	if got := d.EndOfMonth(time.UTC); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	// December rolls into the next year
	d, _ = Parse("12/29")
	want = time.Date(2029, time.December, 31, 23, 59, 59, 999999999, time.UTC)
	if got := d.EndOfMonth(time.UTC); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestIsExpired(t *testing.T) {
	d, _ := Parse("02/30")
	end := d.EndOfMonth(time.UTC)

	if d.IsExpired(end.Add(-time.Nanosecond), time.UTC) {
		t.Fatalf("expected not expired before end")
	}
	if d.IsExpired(end, time.UTC) {
		t.Fatalf("expected not expired at end")
	}
	if !d.IsExpired(end.Add(time.Nanosecond), time.UTC) {
		t.Fatalf("expected expired after end")
	}
}

func TestIsExpired_Location(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	d, _ := Parse("02/30")
	// 2030-02-28 20:00 UTC is already March 1st in UTC+10.
	at := time.Date(2030, time.February, 28, 20, 0, 0, 0, time.UTC)
	if d.IsExpired(at, time.UTC) {
		t.Fatalf("expected not expired in UTC")
	}
	if !d.IsExpired(at, loc) {
		t.Fatalf("expected expired in UTC+10")
	}
}
