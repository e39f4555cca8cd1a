package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/peterh/liner"
	"gopkg.in/yaml.v3"

	bt "github.com/solemnwarning/binary-template"
)

const (
	appName     = "bt"
	historyFile = ".bt_history"
	promptMain  = "bt> "
)

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:]))
	case "version":
		fmt.Println(bt.Version)
		return
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`binary-template %s

Usage:
  %s run [flags] <template.bt> <data.bin>   Execute a template against a file.
  %s repl <data.bin>                        Enter template statements interactively.
  %s fmt <template.bt>                      Reprint a template in canonical form.
  %s version                                Print the engine version.

Run flags:
  --offset N            execute against the sub-range starting at byte N
  --length N            limit the sub-range to N bytes (-1 = to end)
  --format text|json|yaml
                        annotation dump format (default text)
  --watch               re-run whenever the template file changes

`, bt.Version, appName, appName, appName, appName)
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

// stopFlag is set on SIGINT; the host's yield hook polls it every few
// thousand calls so runaway templates stay cancelable.
var stopFlag atomic.Bool

func yieldHook() func() error {
	var n uint64
	return func() error {
		n++
		if n%4096 != 0 {
			return nil
		}
		if stopFlag.Load() {
			return &bt.Error{Kind: bt.KindTemplateAborted, Msg: "interrupted"}
		}
		return nil
	}
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	offset := fs.Int64("offset", 0, "sub-range start offset")
	length := fs.Int64("length", -1, "sub-range length (-1 = to end)")
	format := fs.String("format", "text", "annotation dump format: text, json or yaml")
	watch := fs.Bool("watch", false, "re-run when the template file changes")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s run [flags] <template.bt> <data.bin>\n", appName)
		return 2
	}
	tmplPath, dataPath := fs.Arg(0), fs.Arg(1)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		stopFlag.Store(true)
		<-sigc
		os.Exit(130)
	}()

	data, err := os.ReadFile(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, dataPath, err)
		return 1
	}

	runOnce := func() int {
		stopFlag.Store(false)
		host := bt.NewBufferHost(data)
		host.Output = os.Stdout
		host.YieldHook = yieldHook()

		var execHost bt.Host = host
		if *offset != 0 || *length >= 0 {
			execHost = &bt.SubRangeHost{Doc: host, SelectionOff: *offset, SelectionLen: *length}
		}

		pre, perr := bt.Preprocess(tmplPath)
		if perr != nil {
			fmt.Fprintln(os.Stderr, red(perr.Error()))
			return 1
		}
		ip := bt.NewInterpreter(execHost)
		if rerr := ip.ExecuteTemplate(pre); rerr != nil {
			fmt.Fprintln(os.Stderr, red(bt.WrapErrorWithSource(rerr, pre).Error()))
			return 1
		}
		if derr := dumpAnnotations(os.Stdout, host, *format); derr != nil {
			fmt.Fprintln(os.Stderr, red(derr.Error()))
			return 1
		}
		return 0
	}

	ret := runOnce()
	if !*watch {
		return ret
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: watch: %v\n", appName, err)
		return 1
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(tmplPath)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: watch %s: %v\n", appName, tmplPath, err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "%s: watching %s\n", appName, tmplPath)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return ret
			}
			if ev.Name != tmplPath && filepath.Base(ev.Name) != filepath.Base(tmplPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: %s changed, re-running\n", appName, tmplPath)
			ret = runOnce()
		case werr, ok := <-w.Errors:
			if !ok {
				return ret
			}
			fmt.Fprintf(os.Stderr, "%s: watch: %v\n", appName, werr)
		}
	}
}

// annotationDump is the serialized form of a finished run.
type annotationDump struct {
	Types    []bt.DataRange `json:"types" yaml:"types"`
	Comments []bt.Comment   `json:"comments" yaml:"comments"`
}

func dumpAnnotations(w io.Writer, host *bt.BufferHost, format string) error {
	dump := annotationDump{Types: host.Types, Comments: host.Comments}
	switch format {
	case "text":
		for _, t := range dump.Types {
			fmt.Fprintf(w, "0x%08x +%-4d  %s\n", t.Offset, t.Length, t.Code)
		}
		for _, c := range dump.Comments {
			fmt.Fprintf(w, "0x%08x +%-4d  # %s\n", c.Offset, c.Length, c.Text)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(dump)
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

// The REPL accumulates template statements; each complete entry re-executes
// the accumulated template against the loaded buffer and prints the
// annotations the new statements produced.
func cmdRepl(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s repl <data.bin>\n", appName)
		return 2
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, args[0], err)
		return 1
	}
	fmt.Printf("binary-template %s REPL — %d byte buffer\nCtrl+D exits. Type :quit to exit, :reset to start over.\n", bt.Version, len(data))

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	var accepted []string
	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return 0
		}
		if err != nil {
			continue
		}
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "":
			continue
		case ":quit":
			return 0
		case ":reset":
			accepted = nil
			fmt.Println("cleared")
			continue
		}

		candidate := append(append([]string{}, accepted...), line)
		src := strings.Join(candidate, "\n")

		host := bt.NewBufferHost(data)
		host.Output = os.Stdout
		pre, perr := bt.PreprocessString("<repl>", src, bt.FileResolver)
		if perr != nil {
			fmt.Fprintln(os.Stderr, red(perr.Error()))
			continue
		}
		before := 0
		ip := bt.NewInterpreter(host)
		if rerr := ip.ExecuteTemplate(pre); rerr != nil {
			fmt.Fprintln(os.Stderr, red(bt.WrapErrorWithSource(rerr, pre).Error()))
			continue
		}
		accepted = candidate
		ln.AppendHistory(line)

		// Count annotations from prior statements by re-running them alone.
		if len(accepted) > 1 {
			prevHost := bt.NewBufferHost(data)
			prevPre, err := bt.PreprocessString("<repl>", strings.Join(accepted[:len(accepted)-1], "\n"), bt.FileResolver)
			if err == nil {
				if rerr := bt.NewInterpreter(prevHost).ExecuteTemplate(prevPre); rerr == nil {
					before = len(prevHost.Comments)
				}
			}
		}
		for _, c := range host.Comments[before:] {
			fmt.Println(green(fmt.Sprintf("0x%08x +%-4d  %s", c.Offset, c.Length, c.Text)))
		}
	}
}

// -----------------------------------------------------------------------------
// fmt
// -----------------------------------------------------------------------------

func cmdFmt(args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s fmt <template.bt>\n", appName)
		return 2
	}
	pre, err := bt.Preprocess(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		return 1
	}
	root, perr := bt.Parse(pre)
	if perr != nil {
		fmt.Fprintln(os.Stderr, red(bt.WrapErrorWithSource(perr, pre).Error()))
		return 1
	}
	fmt.Print(bt.FormatTemplate(root))
	return 0
}
