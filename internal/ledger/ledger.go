package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Position int

const (
	Flat  Position = 0
	Long  Position = 1
	Short Position = -1
)

func (p Position) String() string {
	switch p {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

func (p Position) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Position) UnmarshalText(text []byte) error {
	switch string(text) {
	case "LONG":
		*p = Long
	case "SHORT":
		*p = Short
	case "FLAT", "":
		*p = Flat
	default:
		return fmt.Errorf("unknown position %q", text)
	}
	return nil
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Book is the open position of one instrument. Entry is nil exactly when
// the book is flat, or when the position was opened without a price.
type Book struct {
	Position Position `json:"position"`
	Entry    *float64 `json:"entry_price"`
}

// Transition describes what one accepted signal did to a book.
type Transition struct {
	Symbol   string
	From     Position
	To       Position
	Realized *float64
	Changed  bool
}

// Ledger tracks per-instrument books and the realized PnL of the session.
// Like the other session components it relies on its owner for locking.
type Ledger struct {
	multiplier decimal.Decimal
	books      map[string]Book
	realized   decimal.Decimal
}

func New(pointMultiplier float64) *Ledger {
	return &Ledger{
		multiplier: decimal.NewFromFloat(pointMultiplier),
		books:      map[string]Book{},
	}
}

func (l *Ledger) Book(symbol string) Book {
	return l.books[symbol]
}

func (l *Ledger) Books() map[string]Book {
	out := make(map[string]Book, len(l.books))
	for k, v := range l.books {
		out[k] = v
	}
	return out
}

// OpenSymbols lists instruments with a non-flat book, sorted.
func (l *Ledger) OpenSymbols() []string {
	var out []string
	for k, b := range l.books {
		if b.Position != Flat {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) DailyPnL() float64 {
	f, _ := l.realized.Float64()
	return f
}

// Apply runs the reversal table for an accepted buy or sell. Signals in the
// direction of the open position are no-ops. A reversal realizes
// (exit-entry)*multiplier only when both prices are known.
func (l *Ledger) Apply(symbol string, side Side, price *float64) Transition {
	book := l.books[symbol]
	target := Long
	if side == Sell {
		target = Short
	}
	tr := Transition{Symbol: symbol, From: book.Position, To: book.Position}
	if book.Position == target {
		return tr
	}

	if book.Position != Flat && price != nil && book.Entry != nil {
		exit := decimal.NewFromFloat(*price)
		entry := decimal.NewFromFloat(*book.Entry)
		points := exit.Sub(entry)
		if book.Position == Short {
			points = entry.Sub(exit)
		}
		pnl := points.Mul(l.multiplier)
		l.realized = l.realized.Add(pnl)
		realized, _ := pnl.Float64()
		tr.Realized = &realized
	}

	l.books[symbol] = Book{Position: target, Entry: copyPrice(price)}
	tr.To = target
	tr.Changed = true
	return tr
}

// Flatten closes the book without realizing anything.
func (l *Ledger) Flatten(symbol string) bool {
	book, ok := l.books[symbol]
	if !ok || book.Position == Flat {
		return false
	}
	l.books[symbol] = Book{Position: Flat}
	return true
}

// ResetDay clears every book and zeroes realized PnL.
func (l *Ledger) ResetDay() {
	clear(l.books)
	l.realized = decimal.Zero
}

// Restore loads books and realized PnL from a checkpoint.
func (l *Ledger) Restore(books map[string]Book, realized float64) {
	clear(l.books)
	for k, v := range books {
		if v.Position == Flat {
			v.Entry = nil
		}
		l.books[k] = v
	}
	l.realized = decimal.NewFromFloat(realized)
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
