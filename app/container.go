package app

import (
	"log/slog"
	"time"

	"github.com/soocke/scrollshot-go/capture"
	"github.com/soocke/scrollshot-go/config"
	"github.com/soocke/scrollshot-go/domain/align"
	"github.com/soocke/scrollshot-go/domain/workflow"
	"github.com/soocke/scrollshot-go/export"
)

// Container assembles the capture pipeline: grabber, alignment engine,
// output sink and the workflow driving them.
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Grabber  *capture.Grabber
	Engine   *align.Engine
	Sink     *export.FileSink
	Workflow *workflow.Workflow
	Stats    *SessionStats
}

// BuildContainer constructs all components and wires the workflow listeners.
func BuildContainer(cfg *config.Config, logger *slog.Logger) *Container {
	c := &Container{Config: cfg, Logger: logger}
	c.Grabber = capture.NewGrabber(logger)
	c.Engine = align.NewEngine(align.Config{
		TopMarginPts:    cfg.AlignTopMarginPts,
		BottomMarginPts: cfg.AlignBottomMarginPts,
		MinScore:        cfg.MatchThreshold,
		MinOverlapPts:   cfg.MinOverlapPts,
	}, logger)
	c.Sink = export.NewFileSink(cfg.OutputDir, cfg.JPEGQuality, logger)
	c.Workflow = workflow.New(logger, cfg, workflow.Deps{
		Grabber:      c.Grabber,
		Sink:         c.Sink,
		Aligner:      c.Engine,
		DisplayScale: capture.DisplayScale(),
	})
	c.Stats = NewSessionStats()
	c.Workflow.AddListener(func(prev, next workflow.Phase) {
		c.Stats.OnPhase(next == workflow.PhaseCapturing, time.Now())
	})
	return c
}
