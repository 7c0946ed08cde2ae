package sim

// fuelEpsilonKg absorbs float residue from repeated small-dt burns so
// a tank drained for exactly capacity/flow seconds reads empty.
const fuelEpsilonKg = 1e-9

// FuelModel tracks consumable propellant mass at a fixed flow rate.
// Remaining fuel is non-increasing and floors at zero.
type FuelModel struct {
	initialKg   float64
	remainingKg float64
	flowKgSec   float64
}

// NewFuelModel creates a fuel model with the given capacity (kg) and
// mass flow rate (kg/s).
func NewFuelModel(capacityKg, flowKgSec float64) *FuelModel {
	if capacityKg < 0 {
		capacityKg = 0
	}
	return &FuelModel{
		initialKg:   capacityKg,
		remainingKg: capacityKg,
		flowKgSec:   flowKgSec,
	}
}

// Consume burns fuel for dt seconds and returns the mass actually
// consumed, which is zero once the tank is empty.
func (f *FuelModel) Consume(dt float64) float64 {
	if dt <= 0 || f.remainingKg <= 0 {
		return 0
	}
	consumed := f.flowKgSec * dt
	if consumed > f.remainingKg {
		consumed = f.remainingKg
	}
	f.remainingKg -= consumed
	if f.remainingKg < fuelEpsilonKg {
		f.remainingKg = 0
	}
	return consumed
}

// Empty reports whether the tank is exhausted.
func (f *FuelModel) Empty() bool {
	return f.remainingKg <= 0
}

// Fraction returns remaining fuel as a fraction of capacity in [0,1].
func (f *FuelModel) Fraction() float64 {
	if f.initialKg <= 0 {
		return 0
	}
	return f.remainingKg / f.initialKg
}

// Refill restores the tank to capacity, for episode restarts.
func (f *FuelModel) Refill() {
	f.remainingKg = f.initialKg
}
