package domain

import "testing"

func TestInQuietWindow(t *testing.T) {
	cases := []struct {
		name                 string
		localM, startM, endM int
		want                 bool
	}{
		{"normal inside", 13 * 60, 12 * 60, 14 * 60, true},
		{"normal before", 11 * 60, 12 * 60, 14 * 60, false},
		{"normal at end", 14 * 60, 12 * 60, 14 * 60, false},
		{"normal at start", 12 * 60, 12 * 60, 14 * 60, true},
		{"wrap evening", 23 * 60, 22 * 60, 7 * 60, true},
		{"wrap morning", 3 * 60, 22 * 60, 7 * 60, true},
		{"wrap midday", 12 * 60, 22 * 60, 7 * 60, false},
		{"wrap at end", 7 * 60, 22 * 60, 7 * 60, false},
		{"empty window", 13 * 60, 13 * 60, 13 * 60, false},
	}
	for _, c := range cases {
		if got := InQuietWindow(c.localM, c.startM, c.endM); got != c.want {
			t.Fatalf("%s: InQuietWindow(%d,%d,%d) = %v, want %v",
				c.name, c.localM, c.startM, c.endM, got, c.want)
		}
	}
}

func TestValidate_RejectsBadConfigs(t *testing.T) {
	good := baseConfig()
	if err := good.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := *good
	bad.WeekdayIntervalMin = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero weekday interval accepted")
	}

	bad = *good
	bad.WeekendIntervalMin = 25 * 60
	if err := bad.Validate(); err == nil {
		t.Fatal("oversized weekend interval accepted")
	}

	bad = *good
	bad.QuietEnabled = true
	bad.QuietStartM = 9 * 60
	bad.QuietEndM = 9 * 60
	if err := bad.Validate(); err == nil {
		t.Fatal("full-day quiet window accepted")
	}

	bad = *good
	bad.TZ = "Mars/Olympus"
	if err := bad.Validate(); err == nil {
		t.Fatal("unknown timezone accepted")
	}
}
