package domain

// Position represents one open long position held by a single trading
// account. TotalQuantity and AverageEntryPrice track the running
// volume-weighted state across the initial fill and any averaging fills;
// Quantity and EntryPrice keep the original fill untouched for reference.
type Position struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64
	// LevelPrice is the grid level the position originated from.
	LevelPrice float64

	TotalQuantity     float64
	AverageEntryPrice float64

	CloseOrderID     string
	AveragingOrderID string

	Leverage float64
	RiskZone RiskZone

	IsAveraged bool
	// AveragingFailedInsufficientBalance marks the degraded state where the
	// averaging order could not be funded. It is recoverable operator
	// information, not an error.
	AveragingFailedInsufficientBalance bool
	// LastAveragingAlertROI is the ROI (in percent) at which the last
	// averaging alert was sent, used to suppress duplicate notifications.
	// Nil means no alert has been sent yet.
	LastAveragingAlertROI *float64
}

// NewPosition creates a Position from the initial grid fill.
func NewPosition(symbol string, qty, entryPrice, levelPrice float64) *Position {
	return &Position{
		Symbol:            symbol,
		Quantity:          qty,
		EntryPrice:        entryPrice,
		LevelPrice:        levelPrice,
		TotalQuantity:     qty,
		AverageEntryPrice: entryPrice,
		Leverage:          1,
	}
}

// BreakevenPrice returns the price at which closing the full position yields
// zero P&L: the volume-weighted average entry price.
func (p *Position) BreakevenPrice() float64 {
	return p.AverageEntryPrice
}

// PnL returns the unrealized profit or loss at the given price.
func (p *Position) PnL(price float64) float64 {
	return (price - p.AverageEntryPrice) * p.TotalQuantity
}

// ROI returns the unrealized return on the position at the given price as a
// fraction (0.05 == +5%).
func (p *Position) ROI(price float64) float64 {
	if p.AverageEntryPrice == 0 {
		return 0
	}
	return (price - p.AverageEntryPrice) / p.AverageEntryPrice
}

// AddAveraging folds an averaging fill into the position, recomputing the
// volume-weighted average entry price and marking the position as averaged.
func (p *Position) AddAveraging(qty, price float64) {
	totalCost := p.AverageEntryPrice*p.TotalQuantity + price*qty
	p.TotalQuantity += qty
	p.AverageEntryPrice = totalCost / p.TotalQuantity
	p.IsAveraged = true
}

// ShouldSendAveragingAlert reports whether the ROI has moved far enough from
// the last alerted ROI (by interval percentage points) to warrant another
// operator notification. The first alert is always allowed.
func (p *Position) ShouldSendAveragingAlert(currentPrice, interval float64) bool {
	roi := p.ROI(currentPrice) * 100
	if p.LastAveragingAlertROI == nil {
		return true
	}
	diff := roi - *p.LastAveragingAlertROI
	if diff < 0 {
		diff = -diff
	}
	return diff >= interval
}

// MarkAveragingAlertSent records the current ROI as the last alerted ROI.
func (p *Position) MarkAveragingAlertSent(currentPrice float64) {
	roi := p.ROI(currentPrice) * 100
	p.LastAveragingAlertROI = &roi
}
