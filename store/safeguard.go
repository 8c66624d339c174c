package store

import "math"

// Quadratic approximation of a thruster's current draw (amps) as a function
// of its raw pulse-width command. Calibrated on the bench; idle (1500)
// models to roughly zero amps.
const (
	ampA = 0.00009537964
	ampB = -0.2864872
	ampC = 214.9513

	// AMP_LIMIT is the total draw ceiling; picked slightly below the
	// supply's real limit.
	AMP_LIMIT = 99
)

func ampDraw(v float64) float64 {
	return ampA*v*v + ampB*v + ampC
}

// ampRoots solves ampDraw(x) = target for both roots. A non-positive
// discriminant (target below the model's vertex) clamps to the vertex, the
// nearest real point of the parabola.
func ampRoots(target float64) (float64, float64) {
	disc := ampB*ampB - 4*ampA*(ampC-target)
	if disc <= 0 {
		vertex := -ampB / (2 * ampA)
		return vertex, vertex
	}
	sq := math.Sqrt(disc)
	return (-ampB + sq) / (2 * ampA), (-ampB - sq) / (2 * ampA)
}

// Safeguard scales the actuator values in data down so the modelled total
// current stays under AMP_LIMIT. Idle values are never altered and the input
// snapshot is not mutated; callers get a modified copy. The transform is
// read-time only: it must never be written back into the store.
func Safeguard(data map[string]Value) map[string]Value {
	out := make(map[string]Value, len(data))
	for key, value := range data {
		out[key] = value
	}

	amps := make(map[string]float64)
	total := 0.0
	for _, key := range safeguardKeys {
		value, ok := out[key]
		if !ok {
			continue
		}
		v, numeric := toFloat(value)
		if !numeric {
			continue
		}
		amps[key] = ampDraw(v)
		total += amps[key]
	}

	if total <= AMP_LIMIT {
		return out
	}

	ratio := AMP_LIMIT / total
	for key, amp := range amps {
		v, _ := toFloat(out[key])
		if v == THRUSTER_IDLE {
			continue
		}

		// Keep the root closer to the original value so the command is
		// reduced towards idle without reversing sign.
		lo, hi := ampRoots(amp * ratio)
		if math.Abs(v-lo) <= math.Abs(v-hi) {
			out[key] = lo
		} else {
			out[key] = hi
		}
	}

	return out
}
