package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-audio/audio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gordonklaus/lab"
	"github.com/gordonklaus/lab/backend"
	"github.com/gordonklaus/lab/internal/config"
	"github.com/gordonklaus/lab/internal/logging"
	"github.com/gordonklaus/lab/patch"
)

type app struct {
	configPath string
	cfg        config.Config
	log        *slog.Logger
	engine     *backend.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "labctl",
		Short:         "Run and inspect polyphonic patch files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cmd.ErrOrStderr(), cfg.Log)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (YAML)")

	var (
		renderNode string
		frames     int
	)
	runCmd := &cobra.Command{
		Use:   "run <patch.yaml>",
		Short: "Build a patch, run its script and print voice counts after each step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, f, err := a.load(args[0], lab.WithVoiceCountHook(func(id lab.NodeID, old, new int) {
				a.log.Info("voice count changed", "node", id.String(), "from", old, "to", new)
			}))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "# load")
			printNodes(out, p, a.engine)
			for i, s := range f.Script {
				err := p.Apply(s)
				switch {
				case errors.Is(err, patch.ErrFeedbackCycle):
					fmt.Fprintf(out, "# %d %v: held back (feedback)\n", i+1, s)
				case err != nil:
					return fmt.Errorf("step %d %v: %w", i+1, s, err)
				default:
					fmt.Fprintf(out, "# %d %v\n", i+1, s)
				}
				printNodes(out, p, a.engine)
			}
			if err := p.Graph().Check(); err != nil {
				return fmt.Errorf("graph inconsistent: %w", err)
			}
			if renderNode != "" {
				return a.render(out, p, renderNode, frames)
			}
			return nil
		},
	}
	runCmd.Flags().StringVar(&renderNode, "render", "", "render the first voice of this node after the script")
	runCmd.Flags().IntVar(&frames, "frames", 64, "frames to render")

	checkCmd := &cobra.Command{
		Use:   "check <patch.yaml>",
		Short: "Report connections held back as feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := a.load(args[0])
			if err != nil {
				return err
			}
			held := 0
			for _, c := range p.Conns {
				if c.Feedback {
					held++
					fmt.Fprintf(cmd.OutOrStdout(), "feedback: %v (%s)\n", c, c.ID)
				}
			}
			if held > 0 {
				return fmt.Errorf("%d connection(s) held back: %w", held, patch.ErrFeedbackCycle)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	var asYAML bool
	inspectCmd := &cobra.Command{
		Use:   "inspect <patch.yaml>",
		Short: "Print a patch's processing layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := a.load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asYAML {
				return patch.WritePatch(out, p)
			}
			g := p.Graph()
			for i, l := range p.Layers() {
				fmt.Fprintf(out, "layer %d:", i)
				for _, n := range l {
					fmt.Fprintf(out, " %s(%v×%d)", n.Name, g.Mode(n.Lab), g.VoiceCount(n.Lab))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	inspectCmd.Flags().BoolVar(&asYAML, "yaml", false, "write the loaded patch back as YAML")

	root.AddCommand(runCmd, checkCmd, inspectCmd)
	return root
}

func (a *app) load(path string, graphOpts ...lab.Option) (*patch.Patch, *patch.File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	a.engine = backend.NewEngine(
		backend.WithFormat(&audio.Format{NumChannels: a.cfg.Audio.Channels, SampleRate: a.cfg.Audio.SampleRate}),
		backend.WithSeed(a.cfg.Audio.Seed),
		backend.WithRegistry(prometheus.NewRegistry()),
		backend.WithLogger(a.log),
	)
	engine := a.engine
	factory := func(k patch.Kind, name string) (lab.VoiceFactory, error) {
		f, err := engine.Factory(name, k.Unit)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return patch.ReadPatch(r, factory,
		patch.WithLogger(a.log),
		patch.WithMaxDepth(a.cfg.Feedback.MaxDepth),
		patch.WithGraphOptions(graphOpts...),
	)
}

func printNodes(w io.Writer, p *patch.Patch, e *backend.Engine) {
	g := p.Graph()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NODE", "KIND", "MODE", "VOICES")
	for _, n := range p.Nodes {
		t.Row(n.Name, n.Kind, g.Mode(n.Lab).String(), strconv.Itoa(g.VoiceCount(n.Lab)))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "live edges: %d\n", e.LiveEdges())
}

func (a *app) render(w io.Writer, p *patch.Patch, node string, frames int) error {
	n, err := p.Node(node)
	if err != nil {
		return err
	}
	voices := p.Graph().Voices(n.Lab)
	if len(voices) == 0 {
		return fmt.Errorf("%s has no voices", node)
	}
	buf, err := a.engine.Render(voices[0], frames)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "rendered %d frames of %s: peak %.4f\n", buf.NumFrames(), node, peak(buf))
	return nil
}

func peak(buf *audio.FloatBuffer) float64 {
	var m float64
	for _, x := range buf.Data {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
