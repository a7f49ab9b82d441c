package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/optionflow/coretrader/internal/models"
)

// Paper is a deterministic, in-process Broker used by tests and as the
// only adapter cmd/bot wires into the coordinator. It has no network dependency: quotes,
// depth, and bars are seeded by the caller, and bracket orders fill
// immediately at the requested entry price unless SetReject is used to
// simulate a rejection.
type Paper struct {
	mu sync.Mutex

	quotes map[string]Quote
	depths map[string]Depth
	bars   map[string][]Bar
	strikes map[string][]float64

	connected bool
	nextID    int64

	orders map[OrderHandle]*paperOrder
	reject map[string]bool // symbol -> reject next bracket

	contracts map[string]models.OptionContract // "symbol|expiry|strike|right" -> contract
	portfolio []PortfolioLine
	account   map[string]float64
}

type paperOrder struct {
	status OrderStatus
	filled int
	avg    float64
}

// NewPaper constructs an empty, connected paper broker.
func NewPaper() *Paper {
	return &Paper{
		quotes:    make(map[string]Quote),
		depths:    make(map[string]Depth),
		bars:      make(map[string][]Bar),
		strikes:   make(map[string][]float64),
		connected: true,
		orders:    make(map[OrderHandle]*paperOrder),
		reject:    make(map[string]bool),
		contracts: make(map[string]models.OptionContract),
		account:   make(map[string]float64),
	}
}

// SetQuote seeds the quote returned for symbol.
func (p *Paper) SetQuote(symbol string, q Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = q
}

// SetChainStrikes seeds the candidate strikes OptionChain reports for
// symbol, so SelectOption has something to qualify against.
func (p *Paper) SetChainStrikes(symbol string, strikes []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strikes[symbol] = strikes
}

// SetDepth seeds the depth snapshot returned for symbol.
func (p *Paper) SetDepth(symbol string, d Depth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.depths[symbol] = d
}

// Side selects one side of a Depth book for an incremental update.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// UpdateDepthLevel applies a single position-indexed book update to
// symbol's cached depth, growing the side via SetLevel rather than
// requiring the caller to replace the whole snapshot — this is the
// incremental path a streaming depth-of-market feed drives in place of
// SetDepth's full-replacement seeding.
func (p *Paper) UpdateDepthLevel(symbol string, side Side, position int, level DepthLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.depths[symbol]
	switch side {
	case SideBid:
		d.Bids = SetLevel(d.Bids, position, level)
	case SideAsk:
		d.Asks = SetLevel(d.Asks, position, level)
	}
	p.depths[symbol] = d
}

// DeleteDepthLevel removes a position-indexed book entry from symbol's
// cached depth, shifting subsequent levels up by one.
func (p *Paper) DeleteDepthLevel(symbol string, side Side, position int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.depths[symbol]
	switch side {
	case SideBid:
		d.Bids = DeleteLevel(d.Bids, position)
	case SideAsk:
		d.Asks = DeleteLevel(d.Asks, position)
	}
	p.depths[symbol] = d
}

// SetBars seeds the historical bars returned for symbol, sorted oldest-first.
func (p *Paper) SetBars(symbol string, bars []Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sorted := append([]Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	p.bars[symbol] = sorted
}

// SetConnected forces the reported connection state, for simulating an
// outage independent of the circuit breaker.
func (p *Paper) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
}

// SetReject makes the next PlaceBracket call for symbol return OK=false.
func (p *Paper) SetReject(symbol string, reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reject[symbol] = reject
}

// SetPortfolio seeds the lines returned by Portfolio.
func (p *Paper) SetPortfolio(lines []PortfolioLine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.portfolio = lines
}

// SetAccountValue seeds the value returned for AccountValue(tag).
func (p *Paper) SetAccountValue(tag string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account[tag] = value
}

func (p *Paper) Quote(_ context.Context, symbol string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("paper: no quote seeded for %s", symbol)
	}
	return q, nil
}

func (p *Paper) DepthSnapshot(_ context.Context, symbol string, levels int) (Depth, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.depths[symbol]
	if !ok {
		return Depth{}, fmt.Errorf("paper: no depth seeded for %s", symbol)
	}
	out := Depth{Bids: append([]DepthLevel(nil), d.Bids...), Asks: append([]DepthLevel(nil), d.Asks...)}
	if levels > 0 {
		if len(out.Bids) > levels {
			out.Bids = out.Bids[:levels]
		}
		if len(out.Asks) > levels {
			out.Asks = out.Asks[:levels]
		}
	}
	return out, nil
}

func (p *Paper) HistoricalBars(_ context.Context, req BarRequest) ([]Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bars, ok := p.bars[req.Symbol]
	if !ok {
		return nil, fmt.Errorf("paper: no bars seeded for %s", req.Symbol)
	}
	return append([]Bar(nil), bars...), nil
}

func (p *Paper) OptionChain(_ context.Context, symbol string, minDTE, maxDTE int) (ChainHandle, error) {
	p.mu.Lock()
	strikes := append([]float64(nil), p.strikes[symbol]...)
	p.mu.Unlock()

	now := time.Now()
	var expirations []string
	for dte := minDTE; dte <= maxDTE; dte += 7 {
		expirations = append(expirations, now.AddDate(0, 0, dte).Format("2006-01-02"))
	}
	return ChainHandle{Symbol: symbol, Expirations: expirations, Strikes: strikes}, nil
}

func contractKey(symbol, expiry string, strike float64, right string) string {
	return fmt.Sprintf("%s|%s|%.2f|%s", symbol, expiry, strike, right)
}

func (p *Paper) QualifyOption(_ context.Context, symbol, expiry string, strike float64, right string, _ bool) (models.OptionContract, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := contractKey(symbol, expiry, strike, right)
	if c, ok := p.contracts[key]; ok {
		return c, true, nil
	}

	exp, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return models.OptionContract{}, false, fmt.Errorf("paper: invalid expiry %q: %w", expiry, err)
	}

	p.nextID++
	c := models.OptionContract{
		Symbol:      symbol,
		LocalSymbol: fmt.Sprintf("%s%s%08.0f%s", symbol, exp.Format("060102"), strike*1000, right),
		ConID:       p.nextID,
		Strike:      strike,
		Expiry:      exp,
		Right:       models.OptionRight(right),
	}
	p.contracts[key] = c
	return c, true, nil
}

func (p *Paper) PlaceBracket(_ context.Context, req BracketRequest) (BracketHandles, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reject[req.Contract.Symbol] {
		p.reject[req.Contract.Symbol] = false
		return BracketHandles{OK: false}, nil
	}

	entry, stop, target := p.newHandle(), p.newHandle(), p.newHandle()
	p.orders[entry] = &paperOrder{status: StatusFilled, filled: req.Quantity, avg: req.EntryPrice}
	p.orders[stop] = &paperOrder{status: StatusSubmitted}
	p.orders[target] = &paperOrder{status: StatusSubmitted}

	return BracketHandles{Entry: entry, Stop: stop, Target: target, OK: true}, nil
}

func (p *Paper) newHandle() OrderHandle {
	p.nextID++
	return OrderHandle(fmt.Sprintf("paper-order-%d", p.nextID))
}

func (p *Paper) OrderStatus(_ context.Context, h OrderHandle) (OrderStatusReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[h]
	if !ok {
		return OrderStatusReport{}, fmt.Errorf("paper: unknown order handle %s", h)
	}
	return OrderStatusReport{Status: o.status, Filled: o.filled, Remaining: 0, AvgFillPrice: o.avg}, nil
}

// FillOrder simulates a terminal fill of a resting order (used by tests
// to drive the stop/target leg of a bracket to completion).
func (p *Paper) FillOrder(h OrderHandle, quantity int, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[h]; ok {
		o.status = StatusFilled
		o.filled = quantity
		o.avg = price
	}
}

func (p *Paper) Cancel(_ context.Context, h OrderHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[h]
	if !ok {
		return nil // cancel of unknown/terminal handle is a no-op, not an error
	}
	if !o.status.Terminal() {
		o.status = StatusCancelled
	}
	return nil
}

func (p *Paper) Portfolio(_ context.Context) ([]PortfolioLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PortfolioLine(nil), p.portfolio...), nil
}

func (p *Paper) AccountValue(_ context.Context, tag string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.account[tag]
	if !ok {
		return 0, fmt.Errorf("paper: no account value seeded for %s", tag)
	}
	return v, nil
}

func (p *Paper) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

var _ Broker = (*Paper)(nil)
var _ Broker = (*CircuitBreaker)(nil)
