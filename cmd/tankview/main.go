package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"riverfish.ai/internal/sim/catalogs"
	"riverfish.ai/internal/sim/tank"
	"riverfish.ai/internal/sim/tuning"
)

const cameraStep = 0.5

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		assetsDir  = flag.String("assets", "", "model asset directory (empty: fallback primitives)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "rng seed (0: use tuning.yaml)")
		logPath    = flag.String("log", "", "write the text log to this file (default: discard)")
		mute       = flag.Bool("mute", false, "disable the sound cues")
	)
	flag.Parse()

	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(out, "[tankview] ", log.LstdFlags|log.Lmicroseconds)

	t, err := buildTank(*configDir, *assetsDir, *tuningPath, *seed, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen init:", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.Clear()

	var snd *sound
	if !*mute {
		snd, err = newSound()
		if err != nil {
			logger.Printf("audio init failed: %v", err)
		}
	}

	v := newViewer(t, screen, snd, logger)
	v.run()

	snd.close()
	screen.Fini()
	fmt.Printf("caught=%d ticks=%d\n", v.caught, t.CurrentTick())
}

func buildTank(configDir, assetsDir, tuningPath string, seed int64, logger *log.Logger) (*tank.Tank, error) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		tune = tuning.Defaults()
	}

	var resolver tank.AssetResolver
	if assetsDir != "" {
		resolver = tank.DirResolver{Root: assetsDir}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	species, err := tank.BuildSpecies(ctx, cats, tune, resolver, logger)
	if err != nil {
		return nil, fmt.Errorf("species: %w", err)
	}
	return tank.New(tank.Config{
		ID:            "tankview",
		Tuning:        tune,
		Species:       species,
		CatalogDigest: cats.Species.Digest,
		Seed:          seed,
		Logger:        logger,
	})
}

type viewer struct {
	t      *tank.Tank
	screen tcell.Screen
	snd    *sound
	logger *log.Logger

	cameraX  float64
	selected int // index into keys; -1 accepts any species
	keys     []string

	caught int
	status string
}

func newViewer(t *tank.Tank, screen tcell.Screen, snd *sound, logger *log.Logger) *viewer {
	v := &viewer{
		t:        t,
		screen:   screen,
		snd:      snd,
		logger:   logger,
		cameraX:  t.Tuning().World.DefaultCameraX,
		selected: -1,
	}
	for _, p := range t.Populations() {
		v.keys = append(v.keys, p.Species().Key())
	}
	return v
}

func (v *viewer) selectedKey() string {
	if v.selected < 0 || v.selected >= len(v.keys) {
		return ""
	}
	return v.keys[v.selected]
}

func (v *viewer) run() {
	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer close(quit)

	tune := v.t.Tuning()
	hz := v.t.TickRateHz()
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case ev := <-events:
			if !v.handleEvent(ev) {
				return
			}
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt > tune.MaxDT {
				dt = tune.MaxDT
			}
			v.t.Step(tank.StepInput{DT: dt, CameraX: v.cameraX})
			v.draw()
		}
	}
}

func (v *viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			v.cameraX += cameraStep
		case tcell.KeyDown:
			v.cameraX -= cameraStep
		case tcell.KeyTab:
			v.selected++
			if v.selected >= len(v.keys) {
				v.selected = -1
			}
		case tcell.KeyRune:
			if ev.Rune() == 'q' {
				return false
			}
		}
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			v.click(x, y)
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *viewer) projector() projector {
	w, h := v.screen.Size()
	return projector{box: v.t.Volume(), cols: w, rows: h - 1}
}

func (v *viewer) click(col, row int) {
	p := v.projector()
	if !p.ok() || row >= p.rows {
		return
	}
	hit, ok := nearest(p, v.t.Populations(), col, row, 2.5)
	if !ok {
		v.status = "nothing there"
		v.snd.miss()
		return
	}
	res := v.t.Catch(tank.CatchRequest{Species: hit.Species, Slot: hit.Slot, Selected: v.selectedKey()})
	switch res.Status {
	case tank.Caught:
		v.caught++
		v.status = fmt.Sprintf("caught %s #%d (%d left)", res.Species, res.AgentID, res.Active)
		v.snd.catch()
	case tank.Mismatch:
		v.status = fmt.Sprintf("that is a %s, fishing for %s", res.Species, v.selectedKey())
		v.snd.miss()
	default:
		v.status = string(res.Status)
	}
	v.logger.Printf("click col=%d row=%d species=%s slot=%d status=%s", col, row, hit.Species, hit.Slot, res.Status)
}

func (v *viewer) draw() {
	v.screen.Clear()
	p := v.projector()
	if p.ok() {
		sel := v.selectedKey()
		for i, pop := range v.t.Populations() {
			key := pop.Species().Key()
			style := tcell.StyleDefault.Foreground(speciesColor(i))
			if sel != "" && key != sel {
				style = style.Dim(true)
			}
			g := glyph(key)
			for _, pose := range pop.Poses() {
				c, r := p.cell(pose.Pos.X, pose.Pos.Z)
				v.screen.SetContent(c, r, g, nil, style)
			}
		}
	}

	w, h := v.screen.Size()
	sel := v.selectedKey()
	if sel == "" {
		sel = "any"
	}
	line := fmt.Sprintf(" tick=%d camera=%.1f fishing=%s caught=%d  %s", v.t.CurrentTick(), v.cameraX, sel, v.caught, v.status)
	drawText(v.screen, 0, h-1, w, line, tcell.StyleDefault.Reverse(true))
	v.screen.Show()
}

func drawText(s tcell.Screen, x, y, maxW int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= maxW {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < maxW; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}

func speciesColor(i int) tcell.Color {
	palette := []tcell.Color{tcell.ColorSilver, tcell.ColorGreen, tcell.ColorOlive, tcell.ColorYellow, tcell.ColorTeal, tcell.ColorFuchsia}
	return palette[i%len(palette)]
}
