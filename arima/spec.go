package arima

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec is returned for orders that do not describe a model.
var ErrInvalidSpec = errors.New("arima: invalid specification")

// Order is a (p, d, q) triple.
type Order struct {
	P int `mapstructure:"p" json:"p"`
	D int `mapstructure:"d" json:"d"`
	Q int `mapstructure:"q" json:"q"`
}

// Spec is the (p,d,q)(P,D,Q)_s structure of a model.
type Spec struct {
	Regular  Order `mapstructure:"regular" json:"regular"`
	Seasonal Order `mapstructure:"seasonal" json:"seasonal"`
	Period   int   `mapstructure:"period" json:"period"`
	Mean     bool  `mapstructure:"mean" json:"mean"`
}

// Airline returns the (0,1,1)(0,1,1)_period specification.
func Airline(period int) Spec {
	return Spec{
		Regular:  Order{D: 1, Q: 1},
		Seasonal: Order{D: 1, Q: 1},
		Period:   period,
	}
}

// Validate checks the orders. Seasonal orders require a period above 1.
func (s Spec) Validate() error {
	for _, v := range []int{s.Regular.P, s.Regular.D, s.Regular.Q, s.Seasonal.P, s.Seasonal.D, s.Seasonal.Q} {
		if v < 0 {
			return fmt.Errorf("negative order in %v: %w", s, ErrInvalidSpec)
		}
	}
	if s.Period < 1 {
		return fmt.Errorf("period %d: %w", s.Period, ErrInvalidSpec)
	}
	if s.Period == 1 && s.HasSeasonalPart() {
		return fmt.Errorf("seasonal orders without a seasonal period: %w", ErrInvalidSpec)
	}
	return nil
}

// HasSeasonalPart reports whether any seasonal order is positive.
func (s Spec) HasSeasonalPart() bool {
	return s.Seasonal.P > 0 || s.Seasonal.D > 0 || s.Seasonal.Q > 0
}

// ParameterCount returns p+q+P+Q.
func (s Spec) ParameterCount() int {
	return s.Regular.P + s.Regular.Q + s.Seasonal.P + s.Seasonal.Q
}

// DifferencingOrder returns the degree d + D*s of the differencing
// polynomial.
func (s Spec) DifferencingOrder() int {
	return s.Regular.D + s.Seasonal.D*s.Period
}

// ArOrder returns the degree of phi(B)Phi(B^s).
func (s Spec) ArOrder() int {
	return s.Regular.P + s.Seasonal.P*s.Period
}

// MaOrder returns the degree of theta(B)Theta(B^s).
func (s Spec) MaOrder() int {
	return s.Regular.Q + s.Seasonal.Q*s.Period
}

// Blocks returns the (offset, length, lag) of the four parameter blocks in
// the flat parameter vector, in storage order.
func (s Spec) Blocks() []Block {
	sp := s.Period
	if sp < 1 {
		sp = 1
	}
	sizes := []struct {
		n    int
		lag  int
		kind BlockKind
	}{
		{s.Regular.P, 1, RegularAR},
		{s.Regular.Q, 1, RegularMA},
		{s.Seasonal.P, sp, SeasonalAR},
		{s.Seasonal.Q, sp, SeasonalMA},
	}
	blocks := make([]Block, 0, 4)
	off := 0
	for _, z := range sizes {
		blocks = append(blocks, Block{Kind: z.kind, Offset: off, Len: z.n, Lag: z.lag})
		off += z.n
	}
	return blocks
}

// String formats the spec as (p,d,q)(P,D,Q)s.
func (s Spec) String() string {
	out := fmt.Sprintf("(%d,%d,%d)", s.Regular.P, s.Regular.D, s.Regular.Q)
	if s.HasSeasonalPart() {
		out += fmt.Sprintf("(%d,%d,%d)%d", s.Seasonal.P, s.Seasonal.D, s.Seasonal.Q, s.Period)
	}
	if s.Mean {
		out += "+mean"
	}
	return out
}

// BlockKind identifies one of the four parameter blocks.
type BlockKind int

const (
	RegularAR BlockKind = iota
	RegularMA
	SeasonalAR
	SeasonalMA
)

// IsAR reports whether the block belongs to the autoregressive side.
func (k BlockKind) IsAR() bool { return k == RegularAR || k == SeasonalAR }

// Block locates one polynomial in the flat parameter vector.
type Block struct {
	Kind   BlockKind
	Offset int
	Len    int
	Lag    int
}
