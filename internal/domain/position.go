package domain

// Position is the net per-symbol exposure held by the broker.
// Size is positive for long, negative for short.
type Position struct {
	Symbol   string
	Size     float64
	AvgPrice float64 // weighted average entry price
}

// IsLong checks if the position is long.
func (p *Position) IsLong() bool {
	return p.Size > 0
}

// IsShort checks if the position is short.
func (p *Position) IsShort() bool {
	return p.Size < 0
}

// IsFlat checks if there is no open exposure.
func (p *Position) IsFlat() bool {
	return p.Size == 0
}

// Clone returns a copy. Readers get clones by default; only the
// broker mutates the authoritative position under its lock.
func (p *Position) Clone() Position {
	return Position{Symbol: p.Symbol, Size: p.Size, AvgPrice: p.AvgPrice}
}

// ApplyFill folds a fill into the position. Increasing the exposure moves the
// weighted average entry price; reducing or flipping it keeps the entry price
// of the remaining (or new) exposure.
func (p *Position) ApplyFill(side Side, qty, price float64) {
	signed := qty
	if side == SideSell {
		signed = -qty
	}

	prev := p.Size
	next := prev + signed

	switch {
	case prev == 0 || (prev > 0) == (signed > 0):
		// opening or adding: weight the entry price
		total := abs(prev) + qty
		if total > 0 {
			p.AvgPrice = (p.AvgPrice*abs(prev) + price*qty) / total
		}
	case (next > 0) != (prev > 0) && next != 0:
		// flipped through zero: remaining exposure entered at fill price
		p.AvgPrice = price
	case next == 0:
		p.AvgPrice = 0
	}
	// pure reduction keeps the existing average entry

	p.Size = next
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
