package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/scara/pkg/robot"
)

type Options struct {
	Config string `short:"c" long:"config" default:"scara.json" description:"Configuration file"`

	Serve   ServeCommand   `command:"serve" description:"Run the motion controller and its HTTP API"`
	Monitor MonitorCommand `command:"monitor" alias:"mon" description:"Watch a running controller in the terminal"`
	Setup   SetupCommand   `command:"setup" description:"Find the servo bus and calibrate the joints"`
	Solve   SolveCommand   `command:"solve" description:"Print forward or inverse kinematics"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "SCARA - 3-DOF SCARA arm controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, or the defaults if there is none.
func loadConfig() (*robot.Config, error) {
	if !robot.ConfigExists(opts.Config) {
		return robot.DefaultConfig(), nil
	}
	return robot.LoadConfigFrom(opts.Config)
}
