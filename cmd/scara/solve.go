package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gwillem/scara/pkg/kinematics"
)

type SolveCommand struct {
	Forward bool `short:"f" long:"forward" description:"Arguments are q1 q2 z joint values; print the tool position"`

	Args struct {
		A float64 `positional-arg-name:"x|q1"`
		B float64 `positional-arg-name:"y|q2"`
		C float64 `positional-arg-name:"z"`
	} `positional-args:"yes" required:"yes"`
}

func (c *SolveCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	geom := cfg.Geometry

	if c.Forward {
		pose := kinematics.JointPose{Q1: c.Args.A, Q2: c.Args.B, Z: c.Args.C}
		printForward(geom, pose)
		return nil
	}

	target := kinematics.CartesianPoint{X: c.Args.A, Y: c.Args.B, Z: c.Args.C}
	pose, err := geom.Inverse(target)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render("Inverse kinematics"))
	fmt.Printf("  target  %s\n", target)
	fmt.Println(successStyle.Render(fmt.Sprintf("  q1 %8.3f°  q2 %8.3f°  z %6.3f cm", pose.Q1, pose.Q2, pose.Z)))
	fmt.Println()
	printForward(geom, pose)
	return nil
}

func printForward(geom kinematics.Geometry, pose kinematics.JointPose) {
	f := geom.Forward(pose)
	fmt.Println(headerStyle.Render("Forward kinematics"))
	fmt.Printf("  joints  q1 %.3f°  q2 %.3f°  z %.3f cm\n", pose.Q1, pose.Q2, pose.Z)
	fmt.Printf("  elbow   (%.2f, %.2f)\n", f.Elbow.X, f.Elbow.Y)
	fmt.Println(successStyle.Render("  tool    " + f.Point().String()))
	fmt.Println(dimStyle.Render("  transform"))
	fmt.Printf("%.4v\n", mat.Formatted(f.Pose, mat.Prefix("  "), mat.Squeeze()))
}
