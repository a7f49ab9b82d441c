package dashboard

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
)

// Registry is the dashboard's own prometheus registry rather than the
// global default, so a host process embedding this package never
// collides with another component's metric namespace.
var Registry = prometheus.NewRegistry()

// scansTotal is the one metric nothing else already tracks as engine or
// store state, so it is a plain promauto counter rather than part of
// the collector below.
var scansTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
	Namespace: "coretrader",
	Name:      "scans_total",
	Help:      "Total number of coordinator scan ticks run.",
})

// RecordScan increments the scan counter; the coordinator calls this
// once per completed tick.
func RecordScan() {
	scansTotal.Inc()
}

func init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// collector pulls everything else — positions, budgets, vetoes, regime
// — directly from live engine/store/registry state at scrape time
// rather than through a push API, since none of that state is owned by
// the dashboard and duplicating it into GaugeVecs would just be a
// second, driftable copy.
type collector struct {
	eng    *engine.Engine
	reg    *registry.Registry
	store  *store.Store
	regime *marketctx.RegimeDetector

	positionsDesc *prometheus.Desc
	committedDesc *prometheus.Desc
	availableDesc *prometheus.Desc
	vetoDesc      *prometheus.Desc
	regimeDesc    *prometheus.Desc
}

func newCollector(eng *engine.Engine, reg *registry.Registry, st *store.Store, regime *marketctx.RegimeDetector) *collector {
	return &collector{
		eng:    eng,
		reg:    reg,
		store:  st,
		regime: regime,
		positionsDesc: prometheus.NewDesc("coretrader_open_positions", "Open positions per strategy instance.",
			[]string{"strategy"}, nil),
		committedDesc: prometheus.NewDesc("coretrader_budget_committed", "Committed capital per strategy instance.",
			[]string{"strategy"}, nil),
		availableDesc: prometheus.NewDesc("coretrader_budget_available", "Available capital headroom per strategy instance.",
			[]string{"strategy"}, nil),
		vetoDesc: prometheus.NewDesc("coretrader_veto_total", "Signals rejected by the global veto table.",
			nil, nil),
		regimeDesc: prometheus.NewDesc("coretrader_regime_active", "1 for the currently classified market regime, 0 for the rest.",
			[]string{"regime"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.positionsDesc
	ch <- c.committedDesc
	ch <- c.availableDesc
	ch <- c.vetoDesc
	ch <- c.regimeDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()

	open := map[string]int{}
	for _, p := range c.eng.Positions() {
		open[p.StrategyName]++
	}

	for _, s := range c.reg.Status() {
		ch <- prometheus.MustNewConstMetric(c.positionsDesc, prometheus.GaugeValue, float64(open[s.Name]), s.Name)

		budget, ok, err := c.store.Budget(ctx, s.Name)
		if err != nil || !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.committedDesc, prometheus.GaugeValue, budget.Committed, s.Name)
		ch <- prometheus.MustNewConstMetric(c.availableDesc, prometheus.GaugeValue, budget.Available(), s.Name)
	}

	ch <- prometheus.MustNewConstMetric(c.vetoDesc, prometheus.GaugeValue, float64(c.eng.VetoCount()))

	active := c.regime.Current()
	for _, r := range []marketctx.Regime{
		marketctx.RegimeBullTrend, marketctx.RegimeBearTrend, marketctx.RegimeRangeBound,
		marketctx.RegimeHighChaos, marketctx.RegimeUnknown,
	} {
		v := 0.0
		if r == active {
			v = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.regimeDesc, prometheus.GaugeValue, v, string(r))
	}
}
