package detector

import (
	"math"
	"testing"

	"farewatch/internal/domain"
)

// established is a baseline with mean 10000, stddev 1000, 20 samples.
// M2 = variance * (n-1) = 1e6 * 19.
func established() domain.RouteBaseline {
	return domain.RouteBaseline{
		Origin:      "IST",
		Destination: "JFK",
		Mean:        10000,
		M2:          19e6,
		SampleCount: 20,
	}
}

func testConfig() Config {
	return Config{
		PercentEnabled:   true,
		PercentThreshold: 15,
		ZScoreEnabled:    true,
		ZScoreThreshold:  2.0,
		MinSamples:       10,
		PriceBucketSize:  100,
		Currency:         "TRY",
	}
}

func testFare() *domain.FareRecord {
	return &domain.FareRecord{
		FareID:      "fare1",
		Origin:      "IST",
		Destination: "JFK",
	}
}

func TestEvaluate_BothTestsFire(t *testing.T) {
	d := New(testConfig())

	// 8000 is a 20% drop and 2 standard deviations below the mean.
	alert, fired := d.Evaluate(testFare(), 8000, established())
	if !fired {
		t.Fatal("expected an alert")
	}
	if math.Abs(alert.DropPercent-20) > 1e-9 {
		t.Errorf("drop percent: got %f, want 20", alert.DropPercent)
	}
	if math.Abs(alert.ZScore-2) > 1e-9 {
		t.Errorf("z-score: got %f, want 2", alert.ZScore)
	}
	if alert.PreviousPrice != 10000 || alert.CurrentPrice != 8000 {
		t.Errorf("prices: got %f/%f", alert.PreviousPrice, alert.CurrentPrice)
	}
	if alert.Currency != "TRY" {
		t.Errorf("currency: got %s", alert.Currency)
	}
	if alert.DedupeKey == "" || alert.AlertID == "" {
		t.Error("alert must carry id and dedupe key")
	}
}

func TestEvaluate_SmallDropNoAlert(t *testing.T) {
	d := New(testConfig())

	// 9200 is an 8% drop and z=0.8; neither test fires.
	if _, fired := d.Evaluate(testFare(), 9200, established()); fired {
		t.Error("small drop should not alert")
	}
}

func TestEvaluate_PriceIncreaseNoAlert(t *testing.T) {
	d := New(testConfig())
	if _, fired := d.Evaluate(testFare(), 12000, established()); fired {
		t.Error("increases must never alert")
	}
}

func TestEvaluate_ZScoreMuteBelowMinSamples(t *testing.T) {
	cfg := testConfig()
	cfg.PercentEnabled = false
	d := New(cfg)

	b := established()
	b.SampleCount = 5
	b.M2 = 4e6 // stddev 1000 with n=5

	// Deep drop, but too few samples for the z-score test alone.
	if _, fired := d.Evaluate(testFare(), 7000, b); fired {
		t.Error("z-score must stay mute below the sample floor")
	}
}

func TestEvaluate_PercentWorksBelowMinSamples(t *testing.T) {
	d := New(testConfig())

	b := established()
	b.SampleCount = 5
	b.M2 = 4e6

	alert, fired := d.Evaluate(testFare(), 8000, b)
	if !fired {
		t.Fatal("percent test should fire regardless of sample count")
	}
	if alert.DropPercent < 15 {
		t.Errorf("unexpected drop percent %f", alert.DropPercent)
	}
}

func TestEvaluate_PriceCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.PriceCeiling = 7500
	d := New(cfg)

	// 8000 is a 20% drop but above the ceiling.
	if _, fired := d.Evaluate(testFare(), 8000, established()); fired {
		t.Error("drops above the price ceiling must be ignored")
	}

	// 7000 is below the ceiling and still a big drop.
	if _, fired := d.Evaluate(testFare(), 7000, established()); !fired {
		t.Error("drop below the ceiling should alert")
	}
}

func TestEvaluate_SentinelPricesNeverAlert(t *testing.T) {
	d := New(testConfig())

	for _, p := range []float64{domain.PriceNoFlights, domain.PriceFetchError, 0, -10} {
		if _, fired := d.Evaluate(testFare(), p, established()); fired {
			t.Errorf("price %f must never alert", p)
		}
	}
}

func TestEvaluate_EmptyBaselineNoAlert(t *testing.T) {
	d := New(testConfig())

	if _, fired := d.Evaluate(testFare(), 8000, domain.RouteBaseline{}); fired {
		t.Error("first observation has nothing to compare against")
	}
}

func TestEvaluate_ZeroVarianceSkipsZScore(t *testing.T) {
	cfg := testConfig()
	cfg.PercentEnabled = false
	d := New(cfg)

	b := established()
	b.M2 = 0 // constant price history

	if _, fired := d.Evaluate(testFare(), 8000, b); fired {
		t.Error("zero variance must not divide and must not fire")
	}
}

func TestEvaluate_DisabledTests(t *testing.T) {
	cfg := testConfig()
	cfg.PercentEnabled = false
	cfg.ZScoreEnabled = false
	d := New(cfg)

	if _, fired := d.Evaluate(testFare(), 5000, established()); fired {
		t.Error("no enabled tests means no alerts")
	}
}
