package link

import (
	"sync"

	"github.com/Masterminds/semver"
	"github.com/sirupsen/logrus"

	"github.com/marinerlabs/rovlink/store"
)

// FW_CONSTRAINT is the peripheral firmware range this build is known to
// speak. A mismatch is logged, never enforced: the frames still carry the
// declared deviceID and latest-value semantics tolerate drift.
const FW_CONSTRAINT = "~0.1.0"

// Peripheral is the Session for one peripheral controller. Each inbound
// frame declares its own deviceID and the session retargets its partition
// from it, so a controller whose role changes at runtime keeps working.
type Peripheral struct {
	store *store.Store

	mu sync.Mutex
	id store.Partition
	fw string

	log *logrus.Entry
}

func NewPeripheral(st *store.Store, id store.Partition) *Peripheral {
	return &Peripheral{
		store: st,
		id:    id,
		log:   logrus.WithField("peripheral", string(id)),
	}
}

// ID returns the partition the session currently serves.
func (p *Peripheral) ID() store.Partition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *Peripheral) Outbound() Frame {
	return Frame(p.store.Get(p.ID()))
}

func (p *Peripheral) Apply(f Frame) Status {
	rawID, ok := f["deviceID"].(string)
	if !ok {
		p.log.Warnf("received valid data with missing ID: %v", f)
		return StatusDropped
	}

	id := store.Partition(rawID)
	if !store.ValidDevice(id) {
		p.log.Warnf("received valid data with invalid ID: %s", rawID)
		return StatusDropped
	}

	p.mu.Lock()
	p.id = id
	p.mu.Unlock()

	if fw, ok := f["fw"].(string); ok {
		p.checkFirmware(fw)
	}

	values := make(map[string]store.Value, len(f))
	for key, value := range f {
		if key == "deviceID" || key == "fw" {
			continue
		}
		values[key] = value
	}
	p.store.SetMany(id, values)

	return StatusOK
}

// checkFirmware gates the declared version against FW_CONSTRAINT, warning
// once per reported version.
func (p *Peripheral) checkFirmware(fw string) {
	p.mu.Lock()
	seen := p.fw == fw
	p.fw = fw
	p.mu.Unlock()
	if seen {
		return
	}

	ver, err := semver.NewVersion(fw)
	if err != nil {
		p.log.Warnf("unable to parse firmware version %q: %v", fw, err)
		return
	}

	constraint, err := semver.NewConstraint(FW_CONSTRAINT)
	if err != nil {
		return
	}

	if !constraint.Check(ver) {
		p.log.Warnf("firmware %s outside supported range %s", fw, FW_CONSTRAINT)
	}
}
