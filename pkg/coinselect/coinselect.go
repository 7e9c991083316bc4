// Package coinselect chooses which owned outputs fund a payment and
// computes the resulting fee and change.
package coinselect

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
)

const (
	// DefaultBaseFee is the fee paid per unit of transaction weight.
	DefaultBaseFee = 500000
	// DefaultMaxInputs caps the number of inputs of a transaction.
	DefaultMaxInputs = 500

	// maxSearchSteps bounds the combination search of the Smallest
	// strategy for each input count.
	maxSearchSteps = 200000
)

var (
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = errors.New("not enough funds to cover amount and fee")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrUnknownStrategy ...
	ErrUnknownStrategy = errors.New("unknown selection strategy")
)

// Strategy is the selection policy.
type Strategy int

const (
	// Smallest selects the fewest inputs that cover amount and fee.
	Smallest Strategy = iota
	// UseAll selects every eligible input, consolidating them.
	UseAll
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{Smallest, UseAll}

func (s Strategy) String() string {
	switch s {
	case Smallest:
		return "smallest"
	case UseAll:
		return "all"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "smallest", "":
		return Smallest, nil
	case "all", "use_all":
		return UseAll, nil
	default:
		return 0, ErrUnknownStrategy
	}
}

// InsufficientFundsError reports how much is missing to fund a payment.
type InsufficientFundsError struct {
	Needed    uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"%s: needed %d, available %d, shortfall %d",
		ErrInsufficientFunds, e.Needed, e.Available, e.Shortfall(),
	)
}

// Shortfall returns the missing amount.
func (e *InsufficientFundsError) Shortfall() uint64 {
	if e.Available >= e.Needed {
		return 0
	}
	return e.Needed - e.Available
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Coin is a spendable output.
type Coin struct {
	Commit string
	Value  uint64
	Height uint64
}

// Opts tunes fee computation and selection bounds.
type Opts struct {
	BaseFee   uint64
	MaxInputs int
	// Outputs is the number of outputs not owned by the selector, usually
	// the recipient's.
	Outputs int
}

func (o Opts) withDefaults() Opts {
	if o.BaseFee == 0 {
		o.BaseFee = DefaultBaseFee
	}
	if o.MaxInputs <= 0 {
		o.MaxInputs = DefaultMaxInputs
	}
	if o.Outputs <= 0 {
		o.Outputs = 1
	}
	return o
}

// Result is the outcome of a selection.
type Result struct {
	Strategy Strategy
	Coins    []Coin
	Total    uint64
	Amount   uint64
	Fee      uint64
	Change   uint64
}

// NumOutputs returns the number of outputs the transaction has, change
// included.
func (r Result) NumOutputs(opts Opts) int {
	n := opts.withDefaults().Outputs
	if r.Change > 0 {
		n++
	}
	return n
}

// Fee returns max(1, 4*outputs + kernels - inputs) * baseFee, saturating
// at MaxUint64.
func Fee(inputs, outputs, kernels int, baseFee uint64) uint64 {
	weight := 4*outputs + kernels - inputs
	if weight < 1 {
		weight = 1
	}
	hi, lo := bits.Mul64(uint64(weight), baseFee)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// Select picks the inputs funding amount with the given strategy.
// Coins are ordered by value, then height, then commitment, so the same
// set of coins always yields the same selection.
func Select(amount uint64, strategy Strategy, coins []Coin, opts Opts) (Result, error) {
	if amount == 0 {
		return Result{}, ErrInvalidAmount
	}
	opts = opts.withDefaults()
	sorted := sortCoins(coins)

	switch strategy {
	case UseAll:
		return selectAll(amount, sorted, opts)
	case Smallest:
		return selectSmallest(amount, sorted, opts)
	default:
		return Result{}, ErrUnknownStrategy
	}
}

// Preview returns the selection of every strategy able to fund amount.
// It fails only when none can.
func Preview(amount uint64, coins []Coin, opts Opts) ([]Result, error) {
	var (
		results  []Result
		firstErr error
	)
	for _, strategy := range Strategies {
		res, err := Select(amount, strategy, coins, opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil, firstErr
	}
	return results, nil
}

func selectAll(amount uint64, coins []Coin, opts Opts) (Result, error) {
	if len(coins) > opts.MaxInputs {
		coins = coins[len(coins)-opts.MaxInputs:]
	}
	res, ok := settle(amount, coins, opts)
	if !ok {
		return Result{}, insufficient(amount, coins, opts)
	}
	res.Strategy = UseAll
	return res, nil
}

func selectSmallest(amount uint64, coins []Coin, opts Opts) (Result, error) {
	maxK := len(coins)
	if maxK > opts.MaxInputs {
		maxK = opts.MaxInputs
	}

	for k := 1; k <= maxK; k++ {
		minNeed, ok := needed(amount, Fee(k, opts.Outputs, 1, opts.BaseFee))
		if !ok {
			continue
		}
		if sumValues(coins[len(coins)-k:]) < minNeed {
			continue
		}
		if picked := searchCombination(amount, coins, k, opts); picked != nil {
			res, _ := settle(amount, picked, opts)
			res.Strategy = Smallest
			return res, nil
		}
	}

	capped := coins
	if len(capped) > maxK {
		capped = capped[len(capped)-maxK:]
	}
	return Result{}, insufficient(amount, capped, opts)
}

// searchCombination returns the k-subset of coins with the smallest total
// that funds amount, preferring the lexicographically first one on ties.
// The search is a depth-first walk over the ascending coins with pruning.
// If the step budget runs out the best subset found so far is returned,
// falling back to the k largest coins.
func searchCombination(amount uint64, coins []Coin, k int, opts Opts) []Coin {
	n := len(coins)
	var (
		best      []int
		bestTotal uint64
		steps     int
		current   = make([]int, 0, k)
	)

	// largest(r) bounds what r more coins can add: coins are ascending, so
	// the r largest are the last ones.
	largest := func(r int) uint64 { return sumValues(coins[n-r:]) }

	var walk func(start int, partial uint64)
	minNeed, _ := needed(amount, Fee(k, opts.Outputs, 1, opts.BaseFee))

	walk = func(start int, partial uint64) {
		if steps >= maxSearchSteps {
			return
		}
		steps++

		depth := len(current)
		if depth == k {
			if acceptable(amount, partial, k, opts) && (best == nil || partial < bestTotal) {
				best = append(best[:0], current...)
				bestTotal = partial
			}
			return
		}
		remaining := k - depth
		for i := start; i <= n-remaining; i++ {
			lowest := addValues(partial, sumValues(coins[i:i+remaining]))
			if best != nil && lowest >= bestTotal {
				return
			}
			highest := addValues(addValues(partial, coins[i].Value), largest(remaining-1))
			if highest < minNeed {
				continue
			}
			current = append(current, i)
			walk(i+1, addValues(partial, coins[i].Value))
			current = current[:len(current)-1]
		}
	}
	walk(0, 0)

	if best == nil {
		candidate := coins[n-k:]
		if acceptable(amount, sumValues(candidate), k, opts) {
			return candidate
		}
		return nil
	}
	picked := make([]Coin, 0, k)
	for _, i := range best {
		picked = append(picked, coins[i])
	}
	return picked
}

// acceptable reports whether total funds amount either exactly, with no
// change output, or leaving a positive change.
func acceptable(amount, total uint64, inputs int, opts Opts) bool {
	if exact, ok := needed(amount, Fee(inputs, opts.Outputs, 1, opts.BaseFee)); ok && total == exact {
		return true
	}
	withChange, ok := needed(amount, Fee(inputs, opts.Outputs+1, 1, opts.BaseFee))
	return ok && total > withChange
}

func settle(amount uint64, coins []Coin, opts Opts) (Result, bool) {
	total := sumValues(coins)
	n := len(coins)
	if n == 0 {
		return Result{}, false
	}

	res := Result{
		Coins:  append([]Coin(nil), coins...),
		Total:  total,
		Amount: amount,
	}
	exact := Fee(n, opts.Outputs, 1, opts.BaseFee)
	if need, ok := needed(amount, exact); ok && total == need {
		res.Fee = exact
		return res, true
	}
	fee := Fee(n, opts.Outputs+1, 1, opts.BaseFee)
	need, ok := needed(amount, fee)
	if !ok || total <= need {
		return Result{}, false
	}
	res.Fee = fee
	res.Change = total - amount - fee
	return res, true
}

func insufficient(amount uint64, coins []Coin, opts Opts) error {
	inputs := len(coins)
	if inputs == 0 {
		inputs = 1
	}
	need, _ := needed(amount, Fee(inputs, opts.Outputs+1, 1, opts.BaseFee))
	return &InsufficientFundsError{
		Needed:    need,
		Available: sumValues(coins),
	}
}

func sortCoins(coins []Coin) []Coin {
	sorted := append([]Coin(nil), coins...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		return a.Commit < b.Commit
	})
	return sorted
}

// sumValues returns the total value of coins, saturating at MaxUint64.
func sumValues(coins []Coin) uint64 {
	var total uint64
	for _, c := range coins {
		total = addValues(total, c.Value)
	}
	return total
}

// needed returns amount+fee. ok is false if the sum does not fit a
// uint64, in which case the result is MaxUint64 and no set of coins can
// fund it.
func needed(amount, fee uint64) (uint64, bool) {
	sum, carry := bits.Add64(amount, fee, 0)
	if carry != 0 {
		return math.MaxUint64, false
	}
	return sum, true
}

func addValues(a, b uint64) uint64 {
	sum, _ := needed(a, b)
	return sum
}
