package slack

import (
	"testing"
	"time"
)

func TestDateWindow(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)

	cases := []struct {
		name      string
		now       time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "midweek covers previous day",
			now:       time.Date(2026, 8, 26, 9, 30, 0, 0, loc), // Wednesday
			wantStart: "2026-08-25",
			wantEnd:   "2026-08-25",
		},
		{
			name:      "monday covers friday through sunday",
			now:       time.Date(2026, 8, 31, 9, 30, 0, 0, loc), // Monday
			wantStart: "2026-08-28",
			wantEnd:   "2026-08-30",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := DateWindow(tc.now)
			if got := start.Format("2006-01-02"); got != tc.wantStart {
				t.Fatalf("start=%s want %s", got, tc.wantStart)
			}
			if got := end.Format("2006-01-02"); got != tc.wantEnd {
				t.Fatalf("end=%s want %s", got, tc.wantEnd)
			}
			if !end.After(start) {
				t.Fatal("window must not be empty")
			}
		})
	}
}
