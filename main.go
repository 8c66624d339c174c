package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/marinerlabs/rovlink/comms"
	"github.com/marinerlabs/rovlink/dispatch"
	"github.com/marinerlabs/rovlink/store"
	"github.com/marinerlabs/rovlink/video"
)

type EnvConfig struct {
	DEBUG    bool   `env:"DEBUG" envDefault:"0"`
	SRCDIR   string `env:"SRCDIR" envDefault:"."`
	CACHEDIR string `env:"CACHEDIR" envDefault:"./tmp"`
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	env.Parse(ENV)

	if ENV.DEBUG {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func main() {
	// process flags
	configFile := flag.String("config", "", "Path to the vehicle yaml configuration")
	port := flag.String("http", "0.0.0.0:80", "Specify the ip:port for the dashboard API")
	simulated := flag.Bool("sim", false, "Serve generated video frames instead of camera fifos")
	flag.Parse()

	if *configFile == "" {
		*configFile = filepath.Join(ENV.SRCDIR, "rov.yaml")
	}

	db, err := openCache(ENV.CACHEDIR)
	if err != nil {
		panic(fmt.Sprintf("Unable to open cache db: %v", err))
	}
	defer db.Close()

	st := store.NewStore(db)
	st.Clear()
	st.SetDefaults()

	cfg, err := dispatch.LoadConfig(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Unable to load config: %v", err))
	}

	// The control listener has to be up before anything else is worth
	// running, so a bind failure takes the process down.
	srv, err := dispatch.NewServer(st, cfg)
	if err != nil {
		log.Fatal(err)
	}
	srv.Run()
	defer srv.Close()

	for _, vc := range cfg.Video {
		var src video.FrameSource
		if *simulated {
			src = video.NewSimSource(32*1024, time.Second/25)
		} else {
			src = video.NewPipeSource(fmt.Sprintf("/run/rovd/cam%d.fifo", vc.Camera))
		}

		vs, err := video.NewStream(src, fmt.Sprintf("0.0.0.0:%d", vc.Port))
		if err != nil {
			log.Fatal(err)
		}
		go vs.Run()
		defer vs.Close()
	}

	conductor := comms.NewConductor(st)
	go conductor.UpdateClients()

	//---
	// Create a local shell
	//---
	{
		shell := ishell.New()
		shell.Println("rovd development shell")
		shell.ShowPrompt(true)

		shell.AddCmd(&ishell.Cmd{
			Name: "get",
			Help: "get <key>",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Err(fmt.Errorf("usage: get <key>"))
					return
				}
				c.Printf("%v\n", st.Get(store.Surface, c.Args[0]))
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "set",
			Help: "set <key> <value>",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 2 {
					c.Err(fmt.Errorf("usage: set <key> <value>"))
					return
				}
				value, err := strconv.ParseFloat(c.Args[1], 64)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("Setting %s to %.0f\n", c.Args[0], value)
				st.Set(store.Surface, c.Args[0], value)
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "defaults",
			Help: "Return every actuator to its idle value",
			Func: func(c *ishell.Context) {
				st.SetDefaults()
				c.Println("Actuators set to idle")
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "state",
			Help: "Reads the current telemetry state",
			Func: func(c *ishell.Context) {
				c.Printf("%#v\n", st.Get(store.Surface))
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "links",
			Help: "Reports the state of each peripheral link",
			Func: func(c *ishell.Context) {
				for _, l := range srv.Links() {
					c.Printf("%s: %s\n", l.Name, l.State())
				}
			},
		})

		// Start an instance of the shell so it can be controlled from the CLI
		go shell.Start()
	}

	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	//---
	// Build the API routes
	//---
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, st.Get(store.Surface))
		})

		r.Post("/state", func(w http.ResponseWriter, r *http.Request) {
			values := make(map[string]interface{})
			if err := render.DecodeJSON(r.Body, &values); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			st.SetMany(store.Surface, values)
			render.Status(r, http.StatusAccepted)
			render.JSON(w, r, st.Get(store.Surface))
		})
	})

	// Add websocket routes
	r.Route("/ws", func(r chi.Router) {
		r.Get("/state", conductor.StateHandler)
	})

	fmt.Println("Listening on port", *port)
	if err := http.ListenAndServe(*port, r); err != nil {
		log.Fatal(err)
	}
}

func openCache(dir string) (db *storm.DB, err error) {
	dbFile, err := filepath.Abs(filepath.Join(dir, "live.db"))
	if err != nil {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		os.MkdirAll(dir, 0755)
	}

	return storm.Open(dbFile)
}
