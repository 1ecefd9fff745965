package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/libeval/compiler"
	"github.com/chazu/libeval/vm"
)

// runREPL reads one expression per line and evaluates it. Lines starting
// with ':' are REPL commands.
func runREPL(in io.Reader, out io.Writer, c *compiler.Compiler, h vm.Host, dump bool) {
	fmt.Fprintln(out, "leval REPL (type 'exit' to quit, ':help' for commands)")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, ">> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "exit" || line == "quit":
			return
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			dump = handleREPLCommand(out, c, h, line, dump)
		default:
			evaluate(out, c, line, dump)
		}
	}

	fmt.Fprintln(out)
}

// handleREPLCommand runs a REPL meta-command and returns the new dump
// setting.
func handleREPLCommand(out io.Writer, c *compiler.Compiler, h vm.Host, cmd string, dump bool) bool {
	name, arg, _ := strings.Cut(cmd, " ")
	switch name {
	case ":help", ":h", ":?":
		fmt.Fprintln(out, "REPL Commands:")
		fmt.Fprintln(out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(out, "  :dump             Toggle bytecode dumps")
		fmt.Fprintln(out, "  :tree <expr>      Show the syntax tree of an expression")
		fmt.Fprintln(out, "  :units            List the unit table")
		fmt.Fprintln(out, "  :objects          List host objects and methods")
		fmt.Fprintln(out, "  exit, quit        Exit REPL")
	case ":dump":
		dump = !dump
		fmt.Fprintf(out, "Bytecode dumps %s\n", onOff(dump))
	case ":tree":
		_, err := c.Compile(arg)
		if err != nil {
			printErrors(out, arg, c.Errors())
		}
		switch tree := c.Tree(); {
		case tree != nil:
			fmt.Fprint(out, tree.Dump())
		case err == nil:
			fmt.Fprintln(out, "(empty)")
		}
	case ":units":
		for _, u := range c.Units() {
			fmt.Fprintf(out, "  %-6s ×%g\n", u.Name, u.Factor)
		}
	case ":objects":
		cat := catalogFor(h)
		if cat == nil {
			fmt.Fprintln(out, "Host does not list its objects")
			break
		}
		fmt.Fprintf(out, "Objects: %s\n", strings.Join(cat.Objects(), " "))
		fmt.Fprintf(out, "Methods: %s\n", strings.Join(cat.Functions(), " "))
	default:
		fmt.Fprintf(out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return dump
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
