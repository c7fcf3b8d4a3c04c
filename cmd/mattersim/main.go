package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/daniacca/mattercore/internal/matter"
	"github.com/daniacca/mattercore/internal/matter/sources"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mattersim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		catalogFile  = fs.String("catalog", "", "path to catalog JSON or TOML file (required)")
		scenarioFile = fs.String("scenario", "", "path to scenario JSON or TOML file (required)")
		worldID      = fs.String("world-id", "simulation", "world ID")
		seed         = fs.Int64("seed", 1, "seed for quantity sampling")
		optional     = fs.Bool("instantiate-optional", false, "create optional parts too")
		verbose      = fs.Bool("verbose", false, "log engine activity to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogFile == "" || *scenarioFile == "" {
		fs.Usage()
		return errors.New("--catalog and --scenario are required")
	}

	catalog, err := sources.LoadCatalogFile(*catalogFile)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	src, err := matter.NewCatalogSource(catalog)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	sc, err := loadScenario(*scenarioFile)
	if err != nil {
		return err
	}

	var logger matter.Logger = matter.NewNoOpLogger()
	if *verbose {
		logger = &stderrLogger{out: log.New(stderr, "", log.Ltime)}
	}
	registry := matter.NewRegistryWithLogger(src, logger)
	if err := registry.Preload(); err != nil {
		return fmt.Errorf("resolving catalog: %w", err)
	}

	wm := matter.NewWorldManager(logger, nil)
	ws, err := wm.CreateWorld(matter.WorldID(*worldID), registry, matter.Options{
		InstantiateOptional: *optional,
		Seed:                *seed,
	})
	if err != nil {
		return err
	}

	return ws.Do(func(g *matter.Graph) error {
		r := &runner{
			g:      g,
			out:    stdout,
			labels: make(map[string]matter.Handle),
			events: make(map[matter.EventType]int),
		}
		g.Subscribe(func(ev matter.ContainmentEvent) { r.events[ev.Type]++ })
		for i, st := range sc.Steps {
			if err := r.step(i, st); err != nil {
				return err
			}
		}
		fmt.Fprintf(stdout, "Simulation finished (scenario=%s, catalog=%s, steps=%d)\n", sc.Name, catalog.Name, len(sc.Steps))
		fmt.Fprintf(stdout, "Events: added=%d removed=%d\n", r.events[matter.EventAdded], r.events[matter.EventRemoved])
		printWorld(stdout, g.Snapshot(ws.ID, ws.Members()))
		return nil
	})
}

// runner executes scenario steps against one graph.
type runner struct {
	g      *matter.Graph
	out    io.Writer
	labels map[string]matter.Handle
	events map[matter.EventType]int
}

func (r *runner) printf(i int, op, format string, v ...any) {
	fmt.Fprintf(r.out, "[%d] %-10s "+format+"\n", append([]any{i, op}, v...)...)
}

// lookup resolves a label to a live instance.
func (r *runner) lookup(label string) (matter.Handle, bool) {
	h, ok := r.labels[label]
	return h, ok && r.g.Exists(h)
}

func (r *runner) step(i int, st step) error {
	switch st.Op {
	case opCreate:
		return r.create(i, st)
	case opAdd:
		parent, okp := r.lookup(st.Parent)
		child, okc := r.lookup(st.Child)
		if !okp || !okc {
			r.printf(i, st.Op, "skipped: %s or %s no longer exists", st.Parent, st.Child)
			return nil
		}
		h, rel := r.g.AddChild(parent, child)
		if rel != matter.RelationFail {
			r.labels[st.Child] = h
		}
		r.printf(i, st.Op, "%s -> %s: %s", st.Child, st.Parent, rel)
	case opRemove:
		parent, okp := r.lookup(st.Parent)
		child, okc := r.lookup(st.Child)
		if !okp || !okc {
			r.printf(i, st.Op, "skipped: %s or %s no longer exists", st.Parent, st.Child)
			return nil
		}
		rel := r.g.RemoveChild(parent, child)
		if rel == matter.RelationSuccess {
			r.g.AttachWorld(child)
		}
		r.printf(i, st.Op, "%s from %s: %s", st.Child, st.Parent, rel)
	case opApply:
		return r.apply(i, st)
	case opSatisfies:
		target, ok := r.lookup(st.Target)
		if !ok {
			r.printf(i, st.Op, "skipped: %s no longer exists", st.Target)
			return nil
		}
		cond, err := r.g.Registry().Condition(matter.TypeID(st.Condition))
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		r.printf(i, st.Op, "%s %s: %v", st.Target, st.Condition, r.g.Satisfies(target, cond, matter.Bindings(st.Vars)))
	case opSynthesize:
		return r.synthesize(i, st)
	}
	return nil
}

func (r *runner) create(i int, st step) error {
	var h matter.Handle
	if st.Type == "" {
		kind, ok := matter.ParseKind(st.Kind)
		if !ok || !kind.IsContainer() {
			return fmt.Errorf("step %d: %q is not a container kind", i, st.Kind)
		}
		h, _ = r.g.NewContainer(kind)
	} else {
		var err error
		if h, err = r.g.CreateByID(matter.TypeID(st.Type)); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	if st.Quantity > 0 {
		r.g.SetQuantity(h, st.Quantity)
	}
	if st.Parent != "" {
		parent, ok := r.lookup(st.Parent)
		if !ok {
			r.g.Destroy(h)
			r.printf(i, st.Op, "skipped: %s no longer exists", st.Parent)
			return nil
		}
		merged, rel := r.g.AddChild(parent, h)
		if rel == matter.RelationFail {
			r.g.Destroy(h)
			return fmt.Errorf("step %d: %s cannot be added to %s", i, describe(st), st.Parent)
		}
		h = merged
	} else {
		r.g.AttachWorld(h)
	}
	if st.As != "" {
		r.labels[st.As] = h
	}
	r.printf(i, st.Op, "%s %s quantity=%g", describe(st), h, r.g.Quantity(h))
	return nil
}

func (r *runner) apply(i int, st step) error {
	target, ok := r.lookup(st.Target)
	if !ok {
		r.printf(i, st.Op, "skipped: %s no longer exists", st.Target)
		return nil
	}
	change, err := r.g.Registry().Change(matter.TypeID(st.Change))
	if err != nil {
		return fmt.Errorf("step %d: %w", i, err)
	}
	times := max(st.Repeat, 1)
	applied := 0
	for range times {
		if !r.g.Exists(target) {
			break
		}
		if r.g.Apply(target, change, matter.Bindings(st.Vars)) {
			applied++
		}
	}
	if !r.g.Exists(target) {
		r.printf(i, st.Op, "%s x%d on %s: applied=%d, depleted", st.Change, times, st.Target, applied)
		return nil
	}
	r.printf(i, st.Op, "%s x%d on %s: applied=%d quantity=%g", st.Change, times, st.Target, applied, r.g.Quantity(target))
	return nil
}

func (r *runner) synthesize(i int, st step) error {
	pool := make([]matter.Handle, 0, len(st.Pool))
	for _, label := range st.Pool {
		if h, ok := r.lookup(label); ok {
			pool = append(pool, h)
		}
	}
	h, err := r.g.Synthesize(pool)
	if errors.Is(err, matter.ErrSynthesisFail) {
		r.printf(i, st.Op, "%s: nothing produced (%v)", strings.Join(st.Pool, "+"), err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("step %d: %w", i, err)
	}
	r.g.AttachWorld(h)
	if st.As != "" {
		r.labels[st.As] = h
	}
	info, _ := r.g.Info(h)
	r.printf(i, st.Op, "%s -> %s %s quantity=%g", strings.Join(st.Pool, "+"), info.Type, h, info.Quantity)
	return nil
}

func describe(st step) string {
	if st.Type != "" {
		return st.Type
	}
	return st.Kind
}

// printWorld prints the top-level instances as indented trees, followed by
// the total quantity per type.
func printWorld(w io.Writer, snap matter.Snapshot) {
	totals := make(map[string]float64)
	var walk func(n matter.Node, depth int)
	walk = func(n matter.Node, depth int) {
		label := string(n.Type)
		if label == "" {
			label = n.Kind
		} else {
			totals[label] += n.Quantity
		}
		line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth+1), label, n.Ref)
		if n.State != "" {
			line += fmt.Sprintf(" quantity=%g state=%s", n.Quantity, n.State)
		}
		if n.Formula != "" {
			line += " formula=" + n.Formula
		}
		fmt.Fprintln(w, line)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}

	fmt.Fprintln(w, "World:")
	for _, n := range snap.Instances {
		walk(n, 0)
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Totals:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %g\n", name, totals[name])
	}
}

// stderrLogger writes engine logs through the standard library logger.
type stderrLogger struct {
	out *log.Logger
}

func (l *stderrLogger) Debugf(format string, v ...any) { l.out.Printf("[DEBUG] "+format, v...) }
func (l *stderrLogger) Infof(format string, v ...any)  { l.out.Printf("[INFO] "+format, v...) }
func (l *stderrLogger) Warnf(format string, v ...any)  { l.out.Printf("[WARN] "+format, v...) }
func (l *stderrLogger) Errorf(format string, v ...any) { l.out.Printf("[ERROR] "+format, v...) }
