package link

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/marinerlabs/rovlink/store"
)

type recvResult struct {
	frame []byte
	err   error
}

// MockTransport scripts the wire: Recv pops queued results and an exhausted
// queue reports the peer closing.
type MockTransport struct {
	openErrs []error
	opens    int
	closes   int
	sent     [][]byte
	queue    []recvResult
}

func (t *MockTransport) Open() error {
	t.opens++
	if len(t.openErrs) > 0 {
		err := t.openErrs[0]
		t.openErrs = t.openErrs[1:]
		return err
	}
	return nil
}

func (t *MockTransport) Send(frame []byte) error {
	t.sent = append(t.sent, frame)
	return nil
}

func (t *MockTransport) Recv() ([]byte, error) {
	if len(t.queue) == 0 {
		return nil, ErrClosed
	}
	r := t.queue[0]
	t.queue = t.queue[1:]
	return r.frame, r.err
}

func (t *MockTransport) Close() error {
	t.closes++
	return nil
}

func (t *MockTransport) push(frames ...string) {
	for _, f := range frames {
		t.queue = append(t.queue, recvResult{frame: []byte(f + "\n")})
	}
}

var testLog = logrus.WithField("link", "test")

func TestExchange(t *testing.T) {
	Convey("with a peripheral session", t, func() {
		st := store.NewStore(nil)
		sess := NewPeripheral(st, store.ThrusterBoard)
		mt := &MockTransport{}

		Convey("a well-formed frame is applied to the store", func() {
			st.Set(store.Surface, "Thr_FP", 1700.0)
			mt.push(`{"deviceID": "Ard_T", "Sen_IMU_X": 4.5}`)

			So(Exchange(mt, sess, testLog), ShouldEqual, StatusOK)
			So(st.Get(store.Surface, "Sen_IMU_X")["Sen_IMU_X"], ShouldEqual, 4.5)

			Convey("and the outbound snapshot carried the partition's data", func() {
				frame, err := DecodeFrame(mt.sent[0])
				So(err, ShouldBeNil)
				So(frame["Thr_FP"], ShouldEqual, 1700.0)
			})
		})

		Convey("a malformed frame is dropped while the link stays up", func() {
			mt.push("not json at all", `{"deviceID": "Ard_T", "Sen_IMU_X": 1.0}`)

			So(Exchange(mt, sess, testLog), ShouldEqual, StatusDropped)
			So(Exchange(mt, sess, testLog), ShouldEqual, StatusOK)
			So(st.Get(store.Surface, "Sen_IMU_X")["Sen_IMU_X"], ShouldEqual, 1.0)
		})

		Convey("a frame without a deviceID is dropped", func() {
			mt.push(`{"Sen_IMU_X": 2.0}`)

			So(Exchange(mt, sess, testLog), ShouldEqual, StatusDropped)
			So(st.Get(store.Surface, "Sen_IMU_X"), ShouldBeEmpty)
		})

		Convey("an unknown deviceID is dropped", func() {
			mt.push(`{"deviceID": "Ard_X", "Sen_IMU_X": 2.0}`)

			So(Exchange(mt, sess, testLog), ShouldEqual, StatusDropped)
			So(sess.ID(), ShouldEqual, store.ThrusterBoard)
		})

		Convey("the declared deviceID retargets the session", func() {
			mt.push(`{"deviceID": "Ard_M"}`)

			So(Exchange(mt, sess, testLog), ShouldEqual, StatusOK)
			So(sess.ID(), ShouldEqual, store.ManipulatorBoard)
		})

		Convey("an empty line is a quiet cycle", func() {
			mt.queue = append(mt.queue, recvResult{frame: []byte("\n")})
			So(Exchange(mt, sess, testLog), ShouldEqual, StatusOK)
		})

		Convey("an I/O failure tears the cycle down", func() {
			mt.queue = append(mt.queue, recvResult{err: ErrTimeout})
			So(Exchange(mt, sess, testLog), ShouldEqual, StatusDown)
		})

		Convey("meta keys never leak into the store", func() {
			mt.push(`{"deviceID": "Ard_T", "fw": "0.1.2", "status_T": 1.0}`)

			So(Exchange(mt, sess, testLog), ShouldEqual, StatusOK)
			So(st.Get(store.Surface, "status_T")["status_T"], ShouldEqual, 1.0)
			So(st.Get(store.Surface, "deviceID"), ShouldBeEmpty)
		})
	})
}

func TestLinkRun(t *testing.T) {
	Convey("the link retries failed connections and recovers", t, func() {
		st := store.NewStore(nil)
		sess := NewPeripheral(st, store.InstrumentBoard)
		mt := &MockTransport{
			openErrs: []error{errors.New("no such port")},
		}
		mt.push(`{"deviceID": "Ard_I", "Sen_Sonar_Dist": 8.2}`)

		l := NewLink("Ard_I", mt, sess)
		l.delay = time.Millisecond

		done := make(chan struct{})
		go func() {
			l.Run()
			close(done)
		}()

		received := func() interface{} {
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				if v, ok := st.Get(store.Surface, "Sen_Sonar_Dist")["Sen_Sonar_Dist"]; ok {
					return v
				}
				time.Sleep(time.Millisecond)
			}
			return nil
		}()

		l.Close()
		<-done

		So(received, ShouldEqual, 8.2)
		So(mt.opens, ShouldBeGreaterThanOrEqualTo, 2)
	})

	Convey("close stops the loop", t, func() {
		mt := &MockTransport{}
		l := NewLink("test", mt, NewPeripheral(store.NewStore(nil), store.ThrusterBoard))
		l.delay = time.Millisecond

		done := make(chan struct{})
		go func() {
			l.Run()
			close(done)
		}()

		l.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("link did not stop")
		}
		So(l.State(), ShouldEqual, Disconnected)
	})
}
