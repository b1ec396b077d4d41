package expiry

import (
	"fmt"
	"time"
)

// Date is a card expiry month as printed on the card face.
type Date struct {
	Year  int // four digit year, 20YY
	Month time.Month
}

// Parse accepts the card face format MM/YY only.
func Parse(in string) (Date, error) {
	if len(in) != 5 || in[2] != '/' {
		return Date{}, fmt.Errorf("expiry must be MM/YY")
	}
	mm, yy := in[:2], in[3:]
	if !digits(mm) || !digits(yy) {
		return Date{}, fmt.Errorf("expiry must be digits: MM/YY")
	}
	m := int(mm[0]-'0')*10 + int(mm[1]-'0')
	if m < 1 || m > 12 {
		return Date{}, fmt.Errorf("expiry month must be 01..12")
	}
	y := int(yy[0]-'0')*10 + int(yy[1]-'0')
	return Date{Year: 2000 + y, Month: time.Month(m)}, nil
}

// EndOfMonth returns the last instant of the expiry month in loc (UTC when nil).
func (d Date) EndOfMonth(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	firstNext := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond)
}

// IsExpired reports whether at falls strictly after the end of the expiry month.
// A card is usable through the last instant of its printed month.
func (d Date) IsExpired(at time.Time, loc *time.Location) bool {
	end := d.EndOfMonth(loc)
	return at.In(end.Location()).After(end)
}

// CardFace renders MM/YY.
func (d Date) CardFace() string {
	return fmt.Sprintf("%02d/%02d", int(d.Month), d.Year%100)
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
