package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/compiler"
	"github.com/tensorlane/actionc/resource"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Path to network group file (yaml or json)")
		outFile     = flag.String("out", "", "Write the compiled program container")
		dump        = flag.Bool("dump", false, "Print the compiled action listing")
		verbose     = flag.Bool("v", false, "Verbose compiler logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: actionc -in <group.yaml> [-out prog.bin] [-dump]")
		fmt.Fprintln(os.Stderr, "       actionc -in <group.yaml> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err == nil {
			compiler.SetLogger(log)
		}
	}

	if *interactive {
		if err := runInteractive(*inFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*inFile, *outFile, *dump); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inFile, outFile string, dump bool) error {
	prog, err := compile(inFile)
	if err != nil {
		return err
	}

	fmt.Printf("Network group: %s\n", prog.Name)
	fmt.Printf("Preliminary context: %v\n", prog.Preliminary != nil)
	fmt.Printf("Dynamic contexts: %d\n", len(prog.Dynamic))

	total := 0
	for _, ctx := range prog.Dynamic {
		total += len(ctx.Image)
	}
	if prog.Preliminary != nil {
		total += len(prog.Preliminary.Image)
	}
	fmt.Printf("Program size: %d bytes\n", total)

	if dump {
		fmt.Println()
		printListing(os.Stdout, prog)
	}

	if outFile != "" {
		if err := writeContainer(outFile, prog); err != nil {
			return fmt.Errorf("write %s: %w", outFile, err)
		}
		fmt.Printf("Wrote %s\n", outFile)
	}
	return nil
}

func compile(inFile string) (*compiler.Program, error) {
	ng, arch, err := loadNetworkGroup(inFile)
	if err != nil {
		return nil, err
	}

	alloc := resource.NewLocalAllocator()
	defer alloc.Close()

	c, err := compiler.New(alloc, arch)
	if err != nil {
		return nil, err
	}
	return c.Compile(ng)
}

// writeContainer lays the program out as a flat container: a context count,
// then each context image length-prefixed, preliminary first when present.
func writeContainer(path string, prog *compiler.Program) error {
	var contexts []*compiler.Context
	if prog.Preliminary != nil {
		contexts = append(contexts, prog.Preliminary)
	}
	contexts = append(contexts, prog.Dynamic...)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(len(contexts)))
	hasPreliminary := uint16(0)
	if prog.Preliminary != nil {
		hasPreliminary = 1
	}
	binary.LittleEndian.PutUint16(hdr[2:4], hasPreliminary)
	if _, err := f.Write(hdr); err != nil {
		return err
	}

	var size [4]byte
	for _, ctx := range contexts {
		binary.LittleEndian.PutUint32(size[:], uint32(len(ctx.Image)))
		if _, err := f.Write(size[:]); err != nil {
			return err
		}
		if _, err := f.Write(ctx.Image); err != nil {
			return err
		}
	}
	return nil
}

var (
	contextHeadStyle = lipgloss.NewStyle().Bold(true)
	memberStyle      = lipgloss.NewStyle().Faint(true)
)

func printListing(w *os.File, prog *compiler.Program) {
	styled := term.IsTerminal(int(w.Fd()))

	printContext := func(name string, ctx *compiler.Context) {
		head := fmt.Sprintf("%s (%d bytes)", name, len(ctx.Image))
		if styled {
			head = contextHeadStyle.Render(head)
		}
		fmt.Fprintln(w, head)
		for i, op := range ctx.Operations {
			fmt.Fprintf(w, "  op %d  trigger=%s\n", i, op.Trigger.Kind)
			for j, a := range op.Actions {
				line := fmt.Sprintf("    %3d  %s", j, describeAction(a))
				if op.Repeated[j] {
					if styled {
						line = memberStyle.Render(line)
					}
					line += "  (member)"
				}
				fmt.Fprintln(w, line)
			}
		}
	}

	if prog.Preliminary != nil {
		printContext("preliminary", prog.Preliminary)
	}
	for i, ctx := range prog.Dynamic {
		printContext(fmt.Sprintf("context %d", i), ctx)
	}
}

func describeAction(a action.Action) string {
	s := a.Type.String()
	switch p := a.Params.(type) {
	case action.RepeatedParams:
		s += fmt.Sprintf(" subtag=%d count=%d", p.SubTag, p.Count)
	case action.FetchCfgChannelDescriptorsParams:
		s += fmt.Sprintf(" cfg=%d descs=%d", p.ConfigIndex, p.DescCount)
	case action.AddCCWBurstsParams:
		s += fmt.Sprintf(" cfg=%d bursts=%d", p.ConfigIndex, p.BurstCount)
	case action.DisableLCUParams:
		s += fmt.Sprintf(" cluster=%d lcu=%d", p.Cluster, p.LCU)
	case action.EnableLCUParams:
		s += fmt.Sprintf(" cluster=%d lcu=%d", p.Cluster, p.LCU)
	case action.AllowInputDataflowParams:
		s += fmt.Sprintf(" stream=%d %s", p.StreamIndex, p.Kind)
	}
	return s
}
