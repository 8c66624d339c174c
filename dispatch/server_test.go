package dispatch

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/marinerlabs/rovlink/store"
)

func startTestServer(t *testing.T, st *store.Store) *Server {
	s, err := NewServer(st, Config{Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("unable to start server: %v", err)
	}
	s.Run()
	t.Cleanup(func() { s.Close() })
	return s
}

// testClient plays the control station over a raw socket.
type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestServer(t *testing.T, s *Server) *testClient {
	conn, err := net.Dial("tcp", s.ln.Addr().String())
	if err != nil {
		t.Fatalf("unable to dial server: %v", err)
	}
	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) exchange(t *testing.T, outbound string) map[string]interface{} {
	if _, err := c.conn.Write([]byte(outbound + "\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal(line, &snapshot); err != nil {
		t.Fatalf("bad snapshot %q: %v", line, err)
	}
	return snapshot
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestServerExchange(t *testing.T) {
	Convey("with a running dispatch server", t, func() {
		st := store.NewStore(nil)
		st.Set(store.ThrusterBoard, "Sen_IMU_X", 5.0)
		s := startTestServer(t, st)

		client := dialTestServer(t, s)
		defer client.conn.Close()

		Convey("one cycle relays commands in and telemetry out", func() {
			snapshot := client.exchange(t, `{"Thr_FP": 1800}`)

			So(snapshot["Sen_IMU_X"], ShouldEqual, 5.0)
			So(st.Get(store.ThrusterBoard, "Thr_FP")["Thr_FP"], ShouldEqual, 1800.0)
		})

		Convey("a malformed line is skipped without dropping the client", func() {
			client.exchange(t, `}garbage{`)
			snapshot := client.exchange(t, `{"Thr_AP": 1600}`)

			So(snapshot["Sen_IMU_X"], ShouldEqual, 5.0)
			So(st.Get(store.ThrusterBoard, "Thr_AP")["Thr_AP"], ShouldEqual, 1600.0)
		})
	})
}

func TestServerFailSafe(t *testing.T) {
	Convey("a client disconnect idles the actuators and frees the listener", t, func() {
		st := store.NewStore(nil)
		s := startTestServer(t, st)

		client := dialTestServer(t, s)
		client.exchange(t, `{"Thr_FP": 1900}`)
		So(st.Get(store.ThrusterBoard, "Thr_FP")["Thr_FP"], ShouldEqual, 1900.0)

		client.conn.Close()

		So(waitFor(func() bool {
			v, ok := st.Get(store.ThrusterBoard, "Thr_FP")["Thr_FP"]
			return ok && v == float64(store.THRUSTER_IDLE)
		}), ShouldBeTrue)

		Convey("and a new client is accepted within one cycle", func() {
			next := dialTestServer(t, s)
			defer next.conn.Close()

			snapshot := next.exchange(t, `{}`)
			So(snapshot, ShouldNotBeNil)
		})
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("the yaml config is validated on load", t, func() {
		Convey("an unknown peripheral id is rejected", func() {
			_, err := LoadConfig("testdata/bad_id.yaml")
			So(err, ShouldNotBeNil)
		})

		Convey("a well-formed config parses", func() {
			cfg, err := LoadConfig("testdata/rov.yaml")
			So(err, ShouldBeNil)
			So(cfg.Listen, ShouldEqual, "0.0.0.0:50000")
			So(cfg.Peripherals, ShouldHaveLength, 3)
			So(cfg.Peripherals[0].ID, ShouldEqual, store.InstrumentBoard)
		})
	})
}
