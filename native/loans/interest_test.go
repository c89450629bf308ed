package loans

import (
	"math/big"
	"testing"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big.Int literal %q", s)
	}
	return v
}

func TestRatePerPeriod(t *testing.T) {
	cases := []struct {
		name   string
		rate   string
		period uint64
		want   string
	}{
		{"base 5.5% over 30 days", "55000000000000000", 2_592_000, "4517546561531037"},
		{"multiplier 100% over 30 days", "1000000000000000000", 2_592_000, "82137210209655229"},
		{"base 8% over 30 days", "80000000000000000", 2_592_000, "6570976816772418"},
		{"multiplier 150% over 30 days", "1500000000000000000", 2_592_000, "123205815314482843"},
		{"full year is identity", "1000000000000000000", secondsPerYear, "1000000000000000000"},
		{"zero rate", "0", 2_592_000, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RatePerPeriod(bigFromString(t, tc.rate), tc.period)
			if got.String() != tc.want {
				t.Fatalf("RatePerPeriod = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRatePerPeriodNilAndZero(t *testing.T) {
	if got := RatePerPeriod(nil, 2_592_000); got.Sign() != 0 {
		t.Fatalf("nil rate = %s", got)
	}
	if got := RatePerPeriod(big.NewInt(100), 0); got.Sign() != 0 {
		t.Fatalf("zero period = %s", got)
	}
}

func TestInterestFor(t *testing.T) {
	base := bigFromString(t, "4517546561531037")
	mult := bigFromString(t, "82137210209655229")
	rate := new(big.Int).Add(base, mult)

	principal := bigFromString(t, "1000000000000000000000")
	got := InterestFor(principal, rate)
	want := bigFromString(t, "86654756771186266000")
	if got.Cmp(want) != 0 {
		t.Fatalf("interest = %s, want %s", got, want)
	}
}

func TestInterestForFloors(t *testing.T) {
	// Product below the 1e18 scale floors to zero.
	got := InterestFor(big.NewInt(1), big.NewInt(999_999_999_999_999_999))
	if got.Sign() != 0 {
		t.Fatalf("interest = %s, want 0", got)
	}
	if got := InterestFor(nil, big.NewInt(1)); got.Sign() != 0 {
		t.Fatalf("nil principal = %s", got)
	}
}

func TestPeriodRate(t *testing.T) {
	asset := &AssetType{
		BaseRatePerPeriod:   big.NewInt(7),
		MultiplierPerPeriod: big.NewInt(11),
	}
	if got := PeriodRate(asset); got.Cmp(big.NewInt(18)) != 0 {
		t.Fatalf("period rate = %s", got)
	}
	if got := PeriodRate(nil); got.Sign() != 0 {
		t.Fatalf("nil asset = %s", got)
	}
}
