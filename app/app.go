package app

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/soocke/scrollshot-go/debug"
)

const usage = `commands:
  start X Y W H   select region (points) and begin capturing
  stop            finish the session and save the stitched image
  cancel          abandon the session, nothing is saved
  status          show workflow phase and session stats
  quit            exit`

// Run drives the workflow from line commands on in. This stands in for the
// platform hotkey/overlay glue, which delivers the same event sequence into
// the workflow.
func Run(c *Container, cfgPath string, in io.Reader, out io.Writer) error {
	if c.Config.Debug {
		debug.StartGoroutineLogger(5*time.Second, c.Logger)
		debug.StartMemLogger(5*time.Second, c.Logger)
	}
	fmt.Fprintln(out, usage)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "start":
			if err := startSession(c, fields[1:]); err != nil {
				fmt.Fprintf(out, "start: %v\n", err)
			}
		case "stop":
			path, err := c.Workflow.Stop()
			switch {
			case err != nil:
				fmt.Fprintf(out, "save failed: %v\n", err)
			case path == "":
				fmt.Fprintln(out, "nothing saved")
			default:
				fmt.Fprintf(out, "saved %s\n", path)
			}
		case "cancel":
			c.Workflow.Cancel()
		case "status":
			session, total := c.Stats.Values(time.Now())
			fmt.Fprintf(out, "phase=%s session=%s total=%s\n", c.Workflow.Current(), session.Round(time.Millisecond), total.Round(time.Millisecond))
		case "quit", "exit":
			return shutdown(c, cfgPath)
		default:
			fmt.Fprintln(out, usage)
		}
	}
	return shutdown(c, cfgPath)
}

// startSession feeds the activate/draw event sequence for a rect given as
// "X Y W H" in points.
func startSession(c *Container, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("expected X Y W H, got %d args", len(args))
	}
	vals := make([]int, 4)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("bad coordinate %q: %w", a, err)
		}
		vals[i] = v
	}
	x, y, w, h := vals[0], vals[1], vals[2], vals[3]
	c.Workflow.Activate()
	c.Workflow.PointerDown(image.Pt(x, y))
	c.Workflow.PointerDrag(image.Pt(x+w, y+h))
	c.Workflow.PointerUp()
	return nil
}

func shutdown(c *Container, cfgPath string) error {
	c.Workflow.Cancel()
	c.Workflow.Close()
	if cfgPath != "" {
		if err := c.Config.Save(cfgPath); err != nil {
			c.Logger.Warn("config save failed", "path", cfgPath, "error", err)
		}
	}
	return nil
}
