package gtypes

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Coins is a mapping Denom -> Uint128 with canonical iteration order (sorted
// by denom); all values are strictly positive (§3).
type Coins struct {
	amounts map[Denom]Uint128
}

func NewCoins() *Coins {
	return &Coins{amounts: make(map[Denom]Uint128)}
}

// Insert adds amount of denom, erroring if amount is zero (§3: NonZero
// invariant) or the denom is already present.
func (c *Coins) Insert(denom Denom, amount Uint128) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if c.amounts == nil {
		c.amounts = make(map[Denom]Uint128)
	}
	if _, ok := c.amounts[denom]; ok {
		return fmt.Errorf("coins: denom %q already present", denom)
	}
	c.amounts[denom] = amount
	return nil
}

func (c *Coins) Amount(denom Denom) (Uint128, bool) {
	v, ok := c.amounts[denom]
	return v, ok
}

func (c *Coins) IsEmpty() bool { return len(c.amounts) == 0 }

func (c *Coins) Len() int { return len(c.amounts) }

// SortedDenoms returns the coins' denoms in canonical (lexicographic) order.
func (c *Coins) SortedDenoms() []Denom {
	denoms := make([]Denom, 0, len(c.amounts))
	for d := range c.amounts {
		denoms = append(denoms, d)
	}
	sort.Slice(denoms, func(i, j int) bool { return denoms[i] < denoms[j] })
	return denoms
}

// Range iterates the coins in canonical order, stopping early if fn returns
// false.
func (c *Coins) Range(fn func(denom Denom, amount Uint128) bool) {
	for _, d := range c.SortedDenoms() {
		if !fn(d, c.amounts[d]) {
			return
		}
	}
}

func (c Coins) MarshalJSON() ([]byte, error) {
	type pair struct {
		Denom  Denom   `json:"denom"`
		Amount Uint128 `json:"amount"`
	}
	out := make([]pair, 0, len(c.amounts))
	for _, d := range c.SortedDenoms() {
		out = append(out, pair{Denom: d, Amount: c.amounts[d]})
	}
	return json.Marshal(out)
}

func (c *Coins) UnmarshalJSON(data []byte) error {
	type pair struct {
		Denom  Denom   `json:"denom"`
		Amount Uint128 `json:"amount"`
	}
	var pairs []pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	c.amounts = make(map[Denom]Uint128, len(pairs))
	for _, p := range pairs {
		if err := c.Insert(p.Denom, p.Amount); err != nil {
			return err
		}
	}
	return nil
}
