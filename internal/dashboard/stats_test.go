package dashboard

import (
	"math"
	"reflect"
	"testing"

	"qqqdash/internal/domain"
)

func TestComputeMetricsScenario(t *testing.T) {
	active := []domain.StockRecord{rec("AAA", 5, 100), rec("BBB", -3, 200), rec("CCC", 0, 300)}

	m, ok := ComputeMetrics(active)
	if !ok {
		t.Fatal("ComputeMetrics returned no metrics")
	}
	if m.TopGainer.Symbol != "AAA" {
		t.Errorf("TopGainer = %s, want AAA", m.TopGainer.Symbol)
	}
	if m.TopLoser.Symbol != "BBB" {
		t.Errorf("TopLoser = %s, want BBB", m.TopLoser.Symbol)
	}
	if m.UpCount != 1 || m.DownCount != 1 {
		t.Errorf("up/down = %d/%d, want 1/1", m.UpCount, m.DownCount)
	}
	if m.TotalMarketCap != 600 {
		t.Errorf("TotalMarketCap = %v, want 600", m.TotalMarketCap)
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	if _, ok := ComputeMetrics(nil); ok {
		t.Error("ComputeMetrics(nil) should report no metrics")
	}
}

func TestComputeMetricsTiesFirstEncountered(t *testing.T) {
	active := []domain.StockRecord{rec("A1", 2, 1), rec("L1", -2, 1), rec("A2", 2, 1), rec("L2", -2, 1)}
	m, _ := ComputeMetrics(active)
	if m.TopGainer.Symbol != "A1" || m.TopLoser.Symbol != "L1" {
		t.Errorf("gainer/loser = %s/%s, want A1/L1", m.TopGainer.Symbol, m.TopLoser.Symbol)
	}
}

func TestComputeMetricsDecimalSum(t *testing.T) {
	active := []domain.StockRecord{rec("A", 0, 0.1), rec("B", 0, 0.2)}
	m, _ := ComputeMetrics(active)
	if m.TotalMarketCap != 0.3 {
		t.Errorf("TotalMarketCap = %v, want exactly 0.3", m.TotalMarketCap)
	}
}

func TestMarketCapBreakdown(t *testing.T) {
	active := makeRecords(13) // market caps 1000..1012

	slices := MarketCapBreakdown(active, 10)
	if len(slices) != 11 {
		t.Fatalf("len = %d, want 11", len(slices))
	}
	if slices[0].Label != "S12" || slices[9].Label != "S03" {
		t.Errorf("top labels = %s..%s, want S12..S03", slices[0].Label, slices[9].Label)
	}
	others := slices[10]
	if others.Label != OthersLabel || others.MarketCap != 1000+1001+1002 {
		t.Errorf("others = %+v, want 3003", others)
	}

	var share float64
	for _, s := range slices {
		share += s.Share
	}
	if math.Abs(share-1) > 1e-9 {
		t.Errorf("shares sum to %v, want 1", share)
	}

	few := MarketCapBreakdown(active[:3], 10)
	if len(few) != 4 || few[3].MarketCap != 0 {
		t.Errorf("breakdown of 3 = %+v, want 3 slices plus empty Others", few)
	}
	if MarketCapBreakdown(nil, 10) != nil {
		t.Error("breakdown of nothing should be nil")
	}
}

func TestTopMovers(t *testing.T) {
	active := []domain.StockRecord{
		rec("A", 1, 1), rec("B", -5, 1), rec("C", 7, 1), rec("D", 0, 1),
		rec("E", -1, 1), rec("F", 3, 1), rec("G", -9, 1),
	}
	gainers, losers := TopMovers(active, 3)
	if got := symbols(gainers); !reflect.DeepEqual(got, []string{"C", "F", "A"}) {
		t.Errorf("gainers = %v, want [C F A]", got)
	}
	if got := symbols(losers); !reflect.DeepEqual(got, []string{"G", "B", "E"}) {
		t.Errorf("losers = %v, want [G B E]", got)
	}

	g, l := TopMovers(active[:2], 5)
	if len(g) != 2 || len(l) != 2 {
		t.Errorf("TopMovers(2 records, 5) = %d/%d, want 2/2", len(g), len(l))
	}
}
