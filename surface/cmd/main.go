package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/marinerlabs/rovlink/link"
	"github.com/marinerlabs/rovlink/store"
	"github.com/marinerlabs/rovlink/surface"
	"github.com/marinerlabs/rovlink/video"
)

func main() {
	vehicle := flag.String("vehicle", "169.254.54.2:50000", "ip:port of the vehicle control socket")
	videoAddrs := flag.String("video", "", "comma separated ip:port list of vehicle video streams")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// The surface store has no disk cache; stale commands from a previous
	// dive must never survive a restart.
	st := store.NewStore(nil)
	st.Clear()
	st.SetDefaults()

	conn := surface.NewConnection(st, *vehicle)
	conn.Connect()
	defer conn.Close()

	controller := surface.NewController(st)
	go controller.Run()
	defer controller.Close()

	var receivers []*video.Receiver
	if *videoAddrs != "" {
		for _, addr := range strings.Split(*videoAddrs, ",") {
			r := video.NewReceiver(strings.TrimSpace(addr))
			go r.Run()
			defer r.Close()
			receivers = append(receivers, r)
		}
	}

	color.Green("Welcome to the surface control station")
	color.Green("Vehicle at %s", *vehicle)

	shell := ishell.New()
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "Reports the vehicle link and video stream states",
		Func: func(c *ishell.Context) {
			printStatus(conn, receivers)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "input",
		Help: "input <axis> <value (-1 to 1)>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: input <axis> <value>"))
				return
			}
			value, err := strconv.ParseFloat(c.Args[1], 64)
			if err != nil {
				c.Err(err)
				return
			}

			in := controller.Input()
			if err := setAxis(&in, c.Args[0], value); err != nil {
				c.Err(err)
				return
			}
			controller.UpdateInput(in)
			c.Printf("%s set to %.2f\n", c.Args[0], value)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "Drop every control to neutral",
		Func: func(c *ishell.Context) {
			controller.UpdateInput(surface.InputState{})
			st.SetDefaults()
			color.Yellow("All controls returned to neutral")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "telemetry",
		Help: "Prints the latest telemetry received from the vehicle",
		Func: func(c *ishell.Context) {
			for key, value := range st.Get(store.Surface) {
				c.Printf("%-16s %v\n", key, value)
			}
		},
	})

	shell.Start()
}

func printStatus(conn *surface.Connection, receivers []*video.Receiver) {
	if conn.State() == link.Connected {
		color.Green("vehicle link: connected")
	} else {
		color.Red("vehicle link: %v", conn.State())
	}

	for i, r := range receivers {
		if f := r.Frame(); f != nil {
			color.Green("video %d: live (%d bytes)", i, len(f))
		} else {
			color.Red("video %d: no signal", i)
		}
	}
}

// setAxis maps operator facing axis names onto the raw input snapshot the
// control table mixes from.
func setAxis(in *surface.InputState, name string, value float64) error {
	switch name {
	case "surge":
		in.LeftAxisY = -value
	case "sway":
		in.LeftAxisX = value
	case "yaw":
		in.RightAxisX = value
	case "pitch":
		in.RightAxisY = -value
	case "roll":
		in.HatX = value
	case "heave":
		in.LeftTrigger, in.RightTrigger = 0, 0
		if value >= 0 {
			in.RightTrigger = value
		} else {
			in.LeftTrigger = -value
		}
	case "manip":
		in.HatY = value
	default:
		return fmt.Errorf("unknown axis %q", name)
	}
	return nil
}
