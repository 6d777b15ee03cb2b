package execution

import (
	"math"
	"time"

	"github.com/mExOms/execsim/pkg/types"
)

// SliceSpec describes how a parent order should be cut into a schedule
type SliceSpec struct {
	Total  int64
	Slices int
	Window time.Duration
	Side   types.OrderSide
	Start  time.Time
	Method types.ExecutionMethod
}

// VolumeProfileProvider supplies the expected intraday volume distribution
// for a symbol as one fraction per slice.
type VolumeProfileProvider interface {
	GetProfile(symbol string, slices int) ([]float64, error)
}

// StaticProfile returns the same fractions for every symbol
type StaticProfile []float64

// GetProfile implements VolumeProfileProvider
func (p StaticProfile) GetProfile(symbol string, slices int) ([]float64, error) {
	if len(p) > slices {
		return p[:slices], nil
	}
	return p, nil
}

// ScheduleTWAP divides Total evenly; the last slice absorbs the remainder
func ScheduleTWAP(spec SliceSpec) types.Schedule {
	if spec.Method == "" {
		spec.Method = types.MethodTWAP
	}
	if spec.Total <= 0 {
		return types.Schedule{}
	}
	slices := normalizeSlices(spec.Slices)

	each := spec.Total / int64(slices)
	schedule := make(types.Schedule, slices)
	for i := 0; i < slices; i++ {
		qty := each
		if i == slices-1 {
			qty = spec.Total - each*int64(slices-1)
		}
		schedule[i] = newEntry(spec, i, slices, qty)
	}
	return schedule
}

// ScheduleVWAP sizes each slice as floor(Total * fraction), capped at what is
// still unallocated. Slices without a fraction get 1/Slices. The last slice
// takes whatever remains so the schedule always sums to Total.
func ScheduleVWAP(spec SliceSpec, fractions []float64) types.Schedule {
	if spec.Method == "" {
		spec.Method = types.MethodVWAP
	}
	if spec.Total <= 0 {
		return types.Schedule{}
	}
	slices := normalizeSlices(spec.Slices)

	remaining := spec.Total
	schedule := make(types.Schedule, slices)
	for i := 0; i < slices; i++ {
		var qty int64
		if i == slices-1 {
			qty = remaining
		} else {
			fraction := 1 / float64(slices)
			if i < len(fractions) {
				fraction = fractions[i]
			}
			qty = allocate(spec.Total, fraction, remaining)
		}
		remaining -= qty
		schedule[i] = newEntry(spec, i, slices, qty)
	}
	return schedule
}

// ScheduleIceberg cuts Total into clips of at most clip units, spaced delay apart
func ScheduleIceberg(spec SliceSpec, clip int64, delay time.Duration) types.Schedule {
	if spec.Method == "" {
		spec.Method = types.MethodIceberg
	}
	if spec.Total <= 0 {
		return types.Schedule{}
	}
	if clip <= 0 || clip > spec.Total {
		clip = spec.Total
	}

	count := int((spec.Total + clip - 1) / clip)
	schedule := make(types.Schedule, count)
	remaining := spec.Total
	for i := 0; i < count; i++ {
		qty := clip
		if remaining < qty {
			qty = remaining
		}
		remaining -= qty
		schedule[i] = types.ExecutionPlanEntry{
			SliceIndex: i,
			Quantity:   qty,
			TargetTime: spec.Start.Add(time.Duration(i) * delay),
			Method:     spec.Method,
			Side:       spec.Side,
		}
	}
	return schedule
}

func allocate(total int64, fraction float64, remaining int64) int64 {
	if math.IsNaN(fraction) || fraction <= 0 {
		return 0
	}
	qty := int64(math.Floor(float64(total) * fraction))
	if qty > remaining {
		qty = remaining
	}
	if qty < 0 {
		return 0
	}
	return qty
}

func newEntry(spec SliceSpec, index, slices int, qty int64) types.ExecutionPlanEntry {
	offset := time.Duration(0)
	if slices > 0 {
		offset = spec.Window / time.Duration(slices) * time.Duration(index)
	}
	return types.ExecutionPlanEntry{
		SliceIndex: index,
		Quantity:   qty,
		TargetTime: spec.Start.Add(offset),
		Method:     spec.Method,
		Side:       spec.Side,
	}
}

func normalizeSlices(slices int) int {
	if slices < 1 {
		return 1
	}
	return slices
}
