// repl (read eval print loop) adapts db to the command line.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/chirst/relq/db"
	"github.com/chirst/relq/result"
	"golang.org/x/term"
	"golang.org/x/text/width"
)

const (
	// emptyRowValue is printed when the cell in a row is nil.
	emptyRowValue = "NULL"
	// emptyHeaderValue is printed when the cell in a header is the empty string
	emptyHeaderValue = "<anonymous>"
	// prompt is the prompt.
	prompt = "relq> "
	// promptContinued is the prompt when it is pending termination for example
	// by a semi colon.
	promptContinued = "...> "
	// historyFile is kept in the home directory.
	historyFile = ".relq_history"
	// helpText is printed by .help.
	helpText = "" +
		".exit    exit the repl\n" +
		".help    show this message\n" +
		".tables  list tables\n" +
		"Statements end with a semicolon."
)

type repl struct {
	db *db.DB
	// terminal is nil when stdin is not a terminal, for example when a script
	// is piped in. Lines are then read with scanner and no prompt is shown.
	terminal *term.Terminal
	scanner  *bufio.Scanner
	out      io.Writer
}

func New(db *db.DB) *repl {
	r := &repl{db: db}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		r.terminal = term.NewTerminal(os.Stdin, prompt)
		r.out = r.terminal
		r.loadHistory()
	} else {
		r.scanner = bufio.NewScanner(os.Stdin)
		r.out = os.Stdout
	}
	return r
}

// Run reads statements until .exit or the end of input.
func (r *repl) Run() error {
	if r.terminal != nil {
		r.writeLn("Welcome to relq. Type .help for help or .exit to exit")
		if r.db.UseMemory {
			r.writeWarning("WARN database is running in memory and will not persist changes")
		}
	}

	// Handling kill signals works under two methods for the REPL. When the
	// terminal is in raw mode the signals are caught by readline as bytes. When
	// the terminal is not in raw mode the signals are caught by the following
	// channel.
	//
	// The handling keeping in mind two major considerations in that the
	// terminal history is written to and the database always allows a long
	// running query to be shut down.
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		if _, ok := <-c; ok {
			r.exitGracefully()
		}
	}()

	previousInput := ""
	for {
		line, err := r.readLine(previousInput)
		if err != nil {
			r.saveHistory()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input := previousInput + line
		if strings.TrimSpace(input) == "" {
			continue
		}
		if previousInput == "" && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if r.command(strings.TrimSpace(input)) {
				r.saveHistory()
				return nil
			}
			continue
		}
		if !r.db.IsTerminated(input) {
			previousInput = input + "\n"
			continue
		}
		previousInput = ""
		r.eval(input)
	}
}

// command runs a dot command and reports whether the repl should exit.
func (r *repl) command(input string) bool {
	switch input {
	case ".exit":
		return true
	case ".help":
		r.writeLn(helpText)
	case ".tables":
		for _, name := range r.db.Catalog().TableNames() {
			r.writeLn(name)
		}
	default:
		r.writeLn("Command not supported")
	}
	return false
}

// Exec runs the statements of input against d and writes the results to out
// in the same format as the repl. It returns the first statement error.
func Exec(d *db.DB, input string, out io.Writer) error {
	r := &repl{db: d, out: out}
	return r.eval(input)
}

// eval executes every statement of input and prints the results. Execution
// continues after a failed statement and the first error is returned.
func (r *repl) eval(input string) error {
	statements, err := r.db.Split(input)
	if err != nil {
		r.writeLn("Err: " + err.Error())
		return err
	}
	var firstErr error
	for _, statement := range statements {
		res := r.db.Execute(statement)
		if res.Err != nil {
			r.writeLn("Err: " + res.Err.Error())
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if res.Text != "" {
			r.writeLn(strings.TrimSuffix(res.Text, "\n"))
		}
		if res.Result != nil {
			header, rows, err := resultRows(res.Result)
			res.Result.Close()
			if err != nil {
				r.writeLn("Err: " + err.Error())
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			r.writeLn(r.printRows(header, rows))
		} else if res.RowsAffected > 0 {
			r.writeLn("(" + strconv.FormatInt(res.RowsAffected, 10) + " rows affected)")
		}
		r.writeLn("Time: " + res.Duration.String())
	}
	return firstErr
}

func (r *repl) readLine(previousInput string) (string, error) {
	if r.terminal == nil {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return r.scanner.Text(), nil
	}
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)
	if previousInput == "" {
		r.terminal.SetPrompt(prompt)
	} else {
		r.terminal.SetPrompt(promptContinued)
	}
	line, err := r.terminal.ReadLine()
	if err != nil {
		return "", fmt.Errorf("err reading line: %w", err)
	}
	return line, nil
}

func (r *repl) writeLn(text string) {
	r.out.Write(([]byte)(text + "\n"))
}

func (r *repl) writeWarning(text string) {
	if r.terminal == nil {
		r.writeLn(text)
		return
	}
	r.terminal.Write(r.terminal.Escape.Yellow)
	r.writeLn(text)
	r.terminal.Write(r.terminal.Escape.Reset)
}

// resultRows renders the visible columns of res as text. A nil cell is NULL.
func resultRows(res *result.SelectResult) ([]string, [][]*string, error) {
	rows := make([][]*string, 0, res.RowCount())
	for i := range res.RowCount() {
		values, err := res.Row(i)
		if err != nil {
			return nil, nil, err
		}
		row := make([]*string, len(values))
		for j, v := range values {
			if v.IsNull() {
				continue
			}
			s := v.String()
			row[j] = &s
		}
		rows = append(rows, row)
	}
	return res.Columns(), rows, nil
}

func (r *repl) printRows(resultHeader []string, resultRows [][]*string) string {
	ret := ""
	widths := r.getWidths(resultHeader, resultRows)
	ret += r.printHeader(resultHeader, widths)
	ret = ret + "\n"
	for _, row := range resultRows {
		ret += r.printRow(row, widths)
		ret = ret + "\n"
	}
	if len(resultRows) == 0 {
		ret = ret + "(0 rows)\n"
	}
	return ret
}

// displayWidth counts the terminal cells of s. East asian wide characters
// take two cells.
func displayWidth(s string) int {
	n := 0
	for _, c := range s {
		switch width.LookupRune(c).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func pad(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func (*repl) getWidths(header []string, rows [][]*string) []int {
	widths := make([]int, len(header))
	for i, hCol := range header {
		size := len(emptyHeaderValue)
		if hCol != "" {
			size = displayWidth(hCol)
		}
		if widths[i] < size {
			widths[i] = size
		}
	}
	for _, row := range rows {
		for i, column := range row {
			size := len(emptyRowValue)
			if column != nil {
				size = displayWidth(*column)
			}
			if widths[i] < size {
				widths[i] = size
			}
		}
	}
	return widths
}

func (*repl) printHeader(row []string, widths []int) string {
	ret := ""
	for i, column := range row {
		v := emptyHeaderValue
		if column != "" {
			v = column
		}
		ret = ret + " " + pad(v, widths[i]) + " "
		if i != len(row)-1 {
			ret = ret + "|"
		}
	}
	ret = ret + "\n"
	for i := range row {
		ret = ret + fmt.Sprintf("-%s-", strings.Repeat("-", widths[i]))
		if i != len(row)-1 {
			ret = ret + "+"
		}
	}
	return ret
}

func (*repl) printRow(row []*string, widths []int) string {
	ret := ""
	for i, column := range row {
		v := emptyRowValue
		if column != nil {
			v = *column
		}
		ret = ret + " " + pad(v, widths[i]) + " "
		if i != len(row)-1 {
			ret = ret + "|"
		}
	}
	return ret
}

func (r *repl) exitGracefully() {
	r.saveHistory()
	os.Exit(0)
}

func (r *repl) loadHistory() {
	p, err := r.getHistoryPath()
	if err != nil {
		r.writeWarning("failed to get history path " + err.Error())
		return
	}
	contents, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		r.writeWarning("failed to load history " + err.Error())
		return
	}
	lines := strings.Split((string)(contents), "\n")
	slices.Reverse(lines)
	for _, line := range lines {
		if line == "" {
			continue
		}
		r.terminal.History.Add(line)
	}
}

func (r *repl) saveHistory() {
	if r.terminal == nil {
		return
	}
	history := []byte{}
	for i := range r.terminal.History.Len() {
		entry := r.terminal.History.At(i)
		history = append(history, ([]byte)(entry+"\n")...)
	}
	p, err := r.getHistoryPath()
	if err != nil {
		r.writeWarning("failed to get history path for saving " + err.Error())
		return
	}
	if err := os.WriteFile(p, history, 0644); err != nil {
		r.writeWarning("failed to write history " + err.Error())
	}
}

func (r *repl) getHistoryPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFile), nil
}
