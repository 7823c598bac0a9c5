// Package synth provides synthetic data generators used to exercise the
// drift detector: Agrawal-style loan-classification streams with an
// incremental concept-drift ramp.
package synth

import (
	"fmt"
	"math/rand"
)

// Instance is one generated feature record.
type Instance struct {
	Salary     float64
	Commission float64
	Age        int
	ELevel     int
	Car        int
	ZipCode    int
	HValue     float64
	HYears     int
	Loan       float64
}

// Sample pairs a feature record with its class label.
type Sample struct {
	X Instance
	Y int
}

// AgrawalConfig configures the generator.
type AgrawalConfig struct {
	// Function selects the Agrawal classification function: 6, 7 or 8.
	Function int
	Seed     int64
	// BalanceClasses alternates generated labels 0/1.
	BalanceClasses bool
	// Perturbation adds bounded uniform noise to numeric features, as a
	// fraction of each feature's range. Must lie in [0, 1].
	Perturbation float64
	// Position is the stream index where the drift ramp starts.
	Position int
	// Width is the ramp length; the per-sample drift increment is 1/Width.
	Width int
	// RevertDrift starts at full drift and ramps back down to zero.
	RevertDrift bool
	// Interpolate86 morphs classification function 8 into 6 as the drift
	// parameter ramps 0 to 1. Interpolate87 morphs 8 into 7.
	Interpolate86 bool
	Interpolate87 bool
}

// Agrawal generates a labeled stream whose concept shifts incrementally.
type Agrawal struct {
	cfg       AgrawalConfig
	rng       *rand.Rand
	drift     float64
	driftRate float64
	index     int
	nextZero  bool
}

// NewAgrawal validates cfg and builds a generator.
func NewAgrawal(cfg AgrawalConfig) (*Agrawal, error) {
	switch cfg.Function {
	case 6, 7, 8:
	default:
		return nil, fmt.Errorf("classification function must be 6, 7 or 8, got %d", cfg.Function)
	}
	if cfg.Perturbation < 0 || cfg.Perturbation > 1 {
		return nil, fmt.Errorf("perturbation must be in [0, 1], got %g", cfg.Perturbation)
	}
	if cfg.Position <= 0 {
		cfg.Position = 2000
	}
	if cfg.Width <= 0 {
		cfg.Width = 1000
	}

	g := &Agrawal{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		driftRate: 1 / float64(cfg.Width),
	}
	if cfg.RevertDrift {
		g.drift = 1.0
	}
	return g, nil
}

// Drift returns the current drift interpolation parameter in [0, 1].
func (g *Agrawal) Drift() float64 { return g.drift }

// Next advances the drift ramp and generates the next labeled sample.
// The ramp moves at the start of the pull, so Drift reflects the concept
// the previous sample was drawn from until the next call.
func (g *Agrawal) Next() Sample {
	if g.index >= g.cfg.Position && g.index <= g.cfg.Position+g.cfg.Width {
		g.step()
	}

	var inst Instance
	var y int

	for {
		inst = g.generate()
		y = g.classify(inst)
		if !g.cfg.BalanceClasses {
			break
		}
		if (g.nextZero && y == 0) || (!g.nextZero && y == 1) {
			g.nextZero = !g.nextZero
			break
		}
	}

	if g.cfg.Perturbation > 0 {
		g.perturb(&inst)
	}

	g.index++
	return Sample{X: inst, Y: y}
}

func (g *Agrawal) generate() Instance {
	salary := 20000 + 130000*g.rng.Float64()
	commission := 0.0
	if salary < 75000 {
		commission = 10000 + 75000*g.rng.Float64()
	}
	zipcode := g.rng.Intn(9)
	return Instance{
		Salary:     salary,
		Commission: commission,
		Age:        20 + g.rng.Intn(61),
		ELevel:     g.rng.Intn(5),
		Car:        1 + g.rng.Intn(20),
		ZipCode:    zipcode,
		HValue:     float64(8-zipcode) * 100000 * (0.5 + g.rng.Float64()),
		HYears:     1 + g.rng.Intn(30),
		Loan:       g.rng.Float64() * 500000,
	}
}

func (g *Agrawal) classify(inst Instance) int {
	return g.classifyWith(inst, g.drift)
}

func (g *Agrawal) classifyWith(inst Instance, drift float64) int {
	switch {
	case g.cfg.Interpolate86:
		return interp86(inst, drift)
	case g.cfg.Interpolate87:
		return interp87(inst, drift)
	}
	switch g.cfg.Function {
	case 6:
		return function6(inst, drift)
	case 7:
		return function7(inst)
	default:
		return function8(inst, drift)
	}
}

// BaselineLabel classifies inst under the pre-drift concept, i.e. the
// ramp's starting endpoint. A frozen model trained before the drift would
// predict exactly this label.
func (g *Agrawal) BaselineLabel(inst Instance) int {
	start := 0.0
	if g.cfg.RevertDrift {
		start = 1.0
	}
	return g.classifyWith(inst, start)
}

// step advances the drift ramp one increment, saturating at the endpoint.
func (g *Agrawal) step() {
	if g.cfg.RevertDrift {
		g.drift -= g.driftRate
		if g.drift < 0 {
			g.drift = 0
		}
		return
	}
	g.drift += g.driftRate
	if g.drift > 1 {
		g.drift = 1
	}
}

func (g *Agrawal) perturb(inst *Instance) {
	inst.Salary = g.perturbValue(inst.Salary, 20000, 150000)
	if inst.Commission > 0 {
		inst.Commission = g.perturbValue(inst.Commission, 10000, 75000)
	}
	inst.Age = int(g.perturbValue(float64(inst.Age), 20, 80) + 0.5)
	inst.HValue = g.perturbValue(inst.HValue, 0, float64(9-inst.ZipCode)*100000)
	inst.HYears = int(g.perturbValue(float64(inst.HYears), 1, 30) + 0.5)
	inst.Loan = g.perturbValue(inst.Loan, 0, 500000)
}

func (g *Agrawal) perturbValue(v, min, max float64) float64 {
	v += (max - min) * (2*g.rng.Float64() - 1) * g.cfg.Perturbation
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

// function6 with a drift parameter scaling the income weight.
func function6(inst Instance, drift float64) int {
	disposable := (2+drift*3)*(inst.Salary+inst.Commission)/3 - inst.Loan/5 - 20000
	if disposable > 1 {
		return 0
	}
	return 1
}

// function7 is the plain Agrawal rule; the drift ramp does not alter it.
func function7(inst Instance) int {
	disposable := 2*(inst.Salary+inst.Commission)/3 - 5000*float64(inst.ELevel) - 20000
	if disposable > 1 {
		return 0
	}
	return 1
}

// function8 with a drift parameter scaling the education weight.
func function8(inst Instance, drift float64) int {
	disposable := 2*(inst.Salary+inst.Commission)/3 -
		5000*float64(inst.ELevel)*(1+drift) - inst.Loan/5 - 10000
	if disposable > 1 {
		return 0
	}
	return 1
}

// interp86 interpolates linearly from function 8 (alpha=0) to function 6
// (alpha=1): the education term and the constant fade between concepts.
func interp86(inst Instance, alpha float64) int {
	elevelTerm := (1 - alpha) * (5000 * float64(inst.ELevel))
	constant := (1-alpha)*10000 + alpha*20000
	disposable := 2*(inst.Salary+inst.Commission)/3 - elevelTerm - inst.Loan/5 - constant
	if disposable > 1 {
		return 0
	}
	return 1
}

// interp87 interpolates from function 8 (alpha=0) to function 7 (alpha=1):
// the loan term and the constant fade between concepts.
func interp87(inst Instance, alpha float64) int {
	loanTerm := (1 - alpha) * (inst.Loan / 5)
	constant := (1-alpha)*10000 + alpha*20000
	disposable := 2*(inst.Salary+inst.Commission)/3 -
		5000*float64(inst.ELevel) - loanTerm - constant
	if disposable > 1 {
		return 0
	}
	return 1
}
