package frame

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hlynr/interceptor/pkg/mathx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSimToENURoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		v := mathx.Vec3{
			X: rng.NormFloat64() * 1e4,
			Y: rng.NormFloat64() * 1e4,
			Z: rng.NormFloat64() * 1e4,
		}
		// Permutation only, so the round trip must be bit-exact.
		assert.Equal(t, v, ToENU(ToSim(v)))
		assert.Equal(t, v, ToSim(ToENU(v)))
	}
}

func TestToSimAxisMapping(t *testing.T) {
	east := mathx.Vec3{X: 1}
	north := mathx.Vec3{Y: 1}
	up := mathx.Vec3{Z: 1}

	assert.Equal(t, mathx.Vec3{X: 1}, ToSim(east), "east stays sim-X")
	assert.Equal(t, mathx.Vec3{Z: 1}, ToSim(north), "north becomes sim-Z")
	assert.Equal(t, mathx.Vec3{Y: 1}, ToSim(up), "up becomes sim-Y")
}

func TestQuatFromBasisUnitNorm(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		// Random rotation via axis-angle, then feed its basis back in.
		axis := mathx.Vec3{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		q := mathx.QuatFromAxisAngle(axis, rng.Float64()*2*math.Pi)

		right := q.Rotate(BodyRight)
		up := q.Rotate(BodyUp)
		forward := q.Rotate(BodyForward)

		got := QuatFromBasis(right, up, forward)
		assert.InDelta(t, 1.0, got.Norm(), 1e-9)

		// The rebuilt quaternion must represent the same rotation
		// (sign of all four components may flip).
		d := math.Abs(got.Dot(q))
		assert.InDelta(t, 1.0, d, 1e-9)
	}
}

func TestWorldToBodyToSimIdentity(t *testing.T) {
	q := WorldToBodyToSim(1, 0, 0, 0)

	require.InDelta(t, 1.0, q.Norm(), 1e-12)
	assert.InDelta(t, 1.0, math.Abs(q.W), 1e-12,
		"identity world-to-body must map to no rotation in the sim frame")
}

func TestWorldToBodyToSimDegenerateInputs(t *testing.T) {
	tests := []struct {
		name       string
		w, x, y, z float64
	}{
		{"zero", 0, 0, 0, 0},
		{"nan", math.NaN(), 0, 0, 1},
		{"inf", 1, math.Inf(1), 0, 0},
		{"tiny", 1e-15, 1e-15, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := WorldToBodyToSim(tt.w, tt.x, tt.y, tt.z)
			assert.Equal(t, mathx.QuatIdentity(), q)
		})
	}
}

func TestLookRotation(t *testing.T) {
	dir := mathx.Vec3{X: 1}
	q := LookRotation(dir)

	fwd := q.Rotate(BodyForward)
	assert.InDelta(t, 1.0, fwd.Dot(dir.Normalized()), 1e-9)

	// Up stays close to world up for a level direction.
	up := q.Rotate(BodyUp)
	assert.InDelta(t, 1.0, up.Y, 1e-9)

	assert.Equal(t, mathx.QuatIdentity(), LookRotation(mathx.Vec3{}))
}
