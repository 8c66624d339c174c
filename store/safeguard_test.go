package store

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const kAmpTolerance = 0.5

func totalDraw(data map[string]Value) float64 {
	total := 0.0
	for _, key := range safeguardKeys {
		if v, ok := data[key]; ok {
			f, _ := toFloat(v)
			total += ampDraw(f)
		}
	}
	return total
}

func TestSafeguard(t *testing.T) {
	Convey("with all actuators idle the data passes through unchanged", t, func() {
		data := make(map[string]Value)
		for _, key := range safeguardKeys {
			data[key] = float64(THRUSTER_IDLE)
		}
		data["Sen_Sonar_Start"] = 100.0

		So(totalDraw(data), ShouldBeLessThan, AMP_LIMIT)
		So(Safeguard(data), ShouldResemble, data)
	})

	Convey("with every actuator at full throttle", t, func() {
		data := make(map[string]Value)
		for _, key := range safeguardKeys {
			data[key] = 1900.0
		}
		So(totalDraw(data), ShouldBeGreaterThan, AMP_LIMIT)

		out := Safeguard(data)

		Convey("the scaled total sits on the limit", func() {
			So(totalDraw(out), ShouldAlmostEqual, AMP_LIMIT, kAmpTolerance)
		})

		Convey("every command is reduced towards idle without reversing", func() {
			for _, key := range safeguardKeys {
				v, _ := toFloat(out[key])
				So(v, ShouldBeLessThan, 1900.0)
				So(v, ShouldBeGreaterThan, THRUSTER_IDLE)
			}
		})

		Convey("the input snapshot is not mutated", func() {
			So(data["Thr_FP"], ShouldEqual, 1900.0)
		})
	})

	Convey("a single extreme command is scaled while idle keys are untouched", t, func() {
		data := make(map[string]Value)
		for _, key := range safeguardKeys {
			data[key] = float64(THRUSTER_IDLE)
		}
		data["Thr_FP"] = 2600.0
		So(ampDraw(2600.0), ShouldBeGreaterThan, AMP_LIMIT)

		out := Safeguard(data)

		scaled, _ := toFloat(out["Thr_FP"])
		So(scaled, ShouldBeLessThan, 2600.0)
		So(scaled, ShouldBeGreaterThan, THRUSTER_IDLE)
		for _, key := range safeguardKeys {
			if key == "Thr_FP" {
				continue
			}
			So(out[key], ShouldEqual, float64(THRUSTER_IDLE))
		}
	})

	Convey("non-safeguarded keys ride along untouched", t, func() {
		data := map[string]Value{
			"Sen_Sonar_Start": 250.0,
			"Thr_FP":          1900.0,
		}
		out := Safeguard(data)
		So(out["Sen_Sonar_Start"], ShouldEqual, 250.0)
	})
}

func TestAmpRoots(t *testing.T) {
	Convey("roots invert the draw model", t, func() {
		lo, hi := ampRoots(ampDraw(1900.0))
		So(ampDraw(lo), ShouldAlmostEqual, ampDraw(1900.0), 1e-6)
		So(ampDraw(hi), ShouldAlmostEqual, ampDraw(1900.0), 1e-6)
	})

	Convey("a target below the vertex clamps to the vertex", t, func() {
		lo, hi := ampRoots(-1)
		So(lo, ShouldEqual, hi)
		So(lo, ShouldAlmostEqual, 1501.77, 0.1)
	})
}
