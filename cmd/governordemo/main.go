// Command governordemo runs the governor against a simulated rendering
// pipeline so its behavior can be watched live.
//
// The ebiten game loop stands in for the host pipeline: every Update feeds
// a synthetic frame time into the governor, and keys inject the abnormal
// events a real pipeline would report.
//
// Controls:
//
//	up/down  raise or lower the simulated GPU load
//	A        allocate a 16 MiB texture (never released, the sweeper gets it)
//	R        release the most recent allocation
//	L        context loss followed by restore
//	E        runtime error
//	F        force the minimum tier
//	Q        quit
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/governor"
)

// hooks prints pipeline-facing events; a real host would reconfigure its
// renderer here.
type hooks struct{}

func (hooks) OnTierChanged(tier governor.Tier, settings governor.RenderSettings) {
	log.Printf("pipeline: applying tier %s settings %v", tier, settings)
}

func (hooks) OnEmergency(state governor.EmergencyState) {
	log.Printf("pipeline: emergency state %s, switching to static presentation", state)
}

// fakeQuery simulates a desktop machine with a discrete GPU so the demo
// starts at the optimal tier and has room to degrade.
type fakeQuery struct{}

func (fakeQuery) QueryCapabilities() (governor.Capabilities, error) {
	return governor.Capabilities{
		AdapterName:    "Simulated Discrete GPU",
		DiscreteGPU:    true,
		ComputeShaders: true,
	}, nil
}

type game struct {
	gov    *governor.Governor
	loadMs float64
	nextID int
	live   []string
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		g.loadMs += 0.5
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) && g.loadMs > 1 {
		g.loadMs -= 0.5
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyA) {
		g.nextID++
		id := fmt.Sprintf("texture-%d", g.nextID)
		g.live = append(g.live, id)
		g.gov.Allocate(governor.Allocation{
			ID:        id,
			Kind:      governor.ResourceTexture,
			SizeBytes: 16 << 20,
		})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) && len(g.live) > 0 {
		id := g.live[len(g.live)-1]
		g.live = g.live[:len(g.live)-1]
		g.gov.Release(id)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyL) {
		g.gov.OnContextLost()
		g.gov.OnContextRestored()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyE) {
		g.gov.OnRuntimeError("injected by demo")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		if err := g.gov.ForceTier(governor.TierMinimum); err != nil {
			log.Printf("force tier: %v", err)
		}
	}

	// Synthetic frame time: the configured load with a little jitter.
	frameMs := g.loadMs + rand.Float64()*2
	g.gov.OnFrameRendered(frameMs)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	msg := fmt.Sprintf(
		"simulated load: %.1f ms (up/down)\ntier: %s\nemergency: %s\nlive allocations: %d\ntransitions: %d",
		g.loadMs,
		g.gov.Tier(),
		g.gov.EmergencyState(),
		len(g.live),
		len(g.gov.History()),
	)
	ebitenutil.DebugPrint(screen, msg)
}

func (g *game) Layout(_, _ int) (int, int) { return 480, 270 }

func main() {
	tierFile := flag.String("tiers", "", "optional YAML tier table")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	governor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts := []governor.Option{governor.WithQuery(fakeQuery{})}
	if *tierFile != "" {
		tt, err := governor.LoadTierTableFile(*tierFile)
		if err != nil {
			log.Fatalf("load tier table: %v", err)
		}
		opts = append(opts, governor.WithTierTable(tt))
	}

	gov := governor.New(hooks{}, opts...)
	defer gov.Stop()

	ebiten.SetWindowTitle("governor demo")
	ebiten.SetWindowSize(960, 540)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(&game{gov: gov, loadMs: 8}); err != nil {
		log.Fatal(err)
	}
}
