// Command expquery loads the configured series once and prints the frame
// center, its velocity and optionally the coefficient tensor at each time
// given on the command line. With -tui it opens an interactive scrubber.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/mat"

	"github.com/star/expseries/internal/config"
	"github.com/star/expseries/internal/session"
	"github.com/star/expseries/internal/workers"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to a YAML or HCL config file")
		orientPath    = flag.String("orient", "", "orientation table (overrides config)")
		coefPath      = flag.String("coefs", "", "coefficient file (overrides config)")
		mode          = flag.String("mode", "", "interpolation mode for both series: linear or spline")
		extrapolation = flag.String("extrapolation", "", "pre-start extrapolation: none, velocity or accelerated")
		hasVelocity   = flag.Bool("has-velocity", false, "orientation table carries velocity columns")
		showCoefs     = flag.Bool("show-coefs", false, "print the full coefficient tensor instead of its norm")
		interactive   = flag.Bool("tui", false, "scrub through time interactively instead of printing")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: expquery [flags] t [t ...]\n       expquery -tui [flags]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	times := make([]float64, 0, flag.NArg())
	for _, arg := range flag.Args() {
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR invalid time:", arg)
			os.Exit(2)
		}
		times = append(times, t)
	}
	if len(times) == 0 && !*interactive {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR loading config:", err)
		os.Exit(1)
	}
	config.ApplyEnv(&cfg, logger)
	if *orientPath != "" {
		cfg.Orientation.Path = *orientPath
	}
	if *coefPath != "" {
		cfg.Coefficients.Path = *coefPath
	}
	if *mode != "" {
		cfg.Orientation.Mode = *mode
		cfg.Coefficients.Mode = *mode
	}
	if *extrapolation != "" {
		cfg.Orientation.Extrapolation = *extrapolation
	}
	if *hasVelocity {
		cfg.Orientation.HasVelocity = true
	}

	pool := workers.NewPool(cfg.Workers, logger)
	loader, err := session.NewLoader(cfg, pool, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	sess, err := loader.Load(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR loading series:", err)
		os.Exit(1)
	}

	if *interactive {
		program := tea.NewProgram(newScrubber(sess), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			fmt.Fprintln(os.Stderr, "ERROR running scrubber:", err)
			os.Exit(1)
		}
		return
	}

	info := sess.Orientation.Info()
	if info.Inertial {
		fmt.Println("orientation: inertial")
	} else {
		fmt.Printf("orientation: %d samples on [%g, %g] mode=%s extrapolation=%s\n",
			info.Samples, info.Start, info.End, info.Mode, info.Extrapolation)
	}
	if sess.Coefficients != nil {
		ci := sess.Coefficients.Info()
		fmt.Printf("coefficients: %d snapshots on [%g, %g] lmax=%d nmax=%d mode=%s\n",
			ci.NumT, ci.Start, ci.End, ci.LMax, ci.NMax, ci.Mode)
	}

	for _, t := range times {
		c, v := sess.Orientation.StateAt(t)
		fmt.Printf("t=%g center=(%.9g, %.9g, %.9g) velocity=(%.9g, %.9g, %.9g)",
			t, c[0], c[1], c[2], v[0], v[1], v[2])
		if sess.Coefficients == nil {
			fmt.Println()
			continue
		}
		snap := sess.Coefficients.CoefficientsAt(t)
		if !*showCoefs {
			fmt.Printf(" coef_norm=%.9g\n", mat.Norm(snap, 2))
			continue
		}
		fmt.Println()
		fmt.Printf("%.9g\n", mat.Formatted(snap, mat.Prefix(""), mat.Squeeze()))
	}
}
