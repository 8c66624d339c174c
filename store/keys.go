package store

// Partition identifies a physical endpoint that owns a slice of the store.
// The device identifiers double as the deviceID values declared by the
// peripheral controllers on the wire.
type Partition string

const (
	Surface          Partition = "surface"
	ThrusterBoard    Partition = "Ard_T"
	ManipulatorBoard Partition = "Ard_M"
	InstrumentBoard  Partition = "Ard_I"

	// Vehicle is the surface station's view of the whole vehicle-side
	// controller; it never appears on the wire.
	Vehicle Partition = "vehicle"
)

const (
	// THRUSTER_IDLE is the neutral pulse width applied on default-reset
	// and excluded from safeguard rescaling.
	THRUSTER_IDLE = 1500

	// RAMP_RATE bounds how far an actuator value may move per write.
	RAMP_RATE = 2
)

// DEFAULT holds the idle value for every actuator key, applied in bulk when
// the control station disconnects.
var DEFAULT = map[string]float64{
	"Thr_FP":  THRUSTER_IDLE,
	"Thr_FS":  THRUSTER_IDLE,
	"Thr_AP":  THRUSTER_IDLE,
	"Thr_AS":  THRUSTER_IDLE,
	"Thr_TFP": THRUSTER_IDLE,
	"Thr_TFS": THRUSTER_IDLE,
	"Thr_TAP": THRUSTER_IDLE,
	"Thr_TAS": THRUSTER_IDLE,
	"Thr_M":   THRUSTER_IDLE,
	"Mot_R":   THRUSTER_IDLE,
	"Mot_G":   THRUSTER_IDLE,
	"Mot_F":   THRUSTER_IDLE,
}

// transmissionKeys fixes, per partition, the keys eligible to be sent over
// that partition's link. Static, never mutated at runtime.
var transmissionKeys = map[Partition][]string{
	Surface: {
		"status_T", "status_M", "status_I",
		"Sen_IMU_X", "Sen_IMU_Y", "Sen_IMU_Z", "Sen_IMU_Temp",
		"Sen_IMU_AccX", "Sen_IMU_AccY", "Sen_IMU_AccZ",
		"Sen_Dep_Pres", "Sen_Dep_Temp", "Sen_Dep_Dep",
		"Sen_Temp", "Sen_PH", "Sen_Sonar_Dist", "Sen_Sonar_Conf", "Sen_Metal",
	},
	ThrusterBoard: {
		"Thr_FP", "Thr_FS", "Thr_AP", "Thr_AS",
		"Thr_TFP", "Thr_TFS", "Thr_TAP", "Thr_TAS",
		"Mot_R", "Mot_G", "Mot_F",
	},
	ManipulatorBoard: {"Thr_M"},
	InstrumentBoard:  {"Sen_Sonar_Start", "Sen_Sonar_Len"},
	Vehicle:          {},
}

// safeguardKeys lists the actuator keys subject to the current-draw model.
var safeguardKeys = []string{
	"Thr_FP", "Thr_FS", "Thr_AP", "Thr_AS",
	"Thr_TFP", "Thr_TFS", "Thr_TAP", "Thr_TAS", "Thr_M",
	"Mot_F", "Mot_G", "Mot_R",
}

// keysLookup maps every device-owned key to the partition holding its
// authoritative slot. Built once at init.
var keysLookup = func() map[string]Partition {
	lookup := make(map[string]Partition)
	for id, keys := range transmissionKeys {
		if id == Surface || id == Vehicle {
			continue
		}
		for _, key := range keys {
			lookup[key] = id
		}
	}
	return lookup
}()

// TransmitKeys returns the surface station's outbound set: every key owned
// by a device partition.
func TransmitKeys() []string {
	keys := make([]string, 0, len(keysLookup))
	for key := range keysLookup {
		keys = append(keys, key)
	}
	return keys
}

// ValidDevice reports whether id names a peripheral controller partition.
func ValidDevice(id Partition) bool {
	switch id {
	case ThrusterBoard, ManipulatorBoard, InstrumentBoard:
		return true
	}
	return false
}

func isActuator(key string) bool {
	_, ok := DEFAULT[key]
	return ok
}
