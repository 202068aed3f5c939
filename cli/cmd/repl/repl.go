package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/stackcomp/config"
	"github.com/ardnew/stackcomp/lang"
	"github.com/ardnew/stackcomp/log"
	"github.com/ardnew/stackcomp/scope"
)

// Source provides the evaluation context of a session.
type Source interface {
	// Context returns a fresh resolved configuration.
	Context(ctx context.Context) (config.Map, error)
	// Resolve evaluates the dynamic values of cfg in place.
	Resolve(ctx context.Context, cfg config.Map) error
	// Evaluator returns the evaluator expressions run in.
	Evaluator() *lang.Evaluator
}

// editMsg is sent when editing produced a new context.
type editMsg struct{ vars config.Map }

// editCancelledMsg is sent when the user cleared the editor content.
type editCancelledMsg struct{}

// editDeclinedMsg is sent when the user declined to re-edit after a decode
// error.
type editDeclinedMsg struct{}

// editErrorMsg is sent when the edit process fails for another reason.
type editErrorMsg struct{ err error }

const (
	evalPrompt = "➜ "
	ctrlPrompt = " :"
)

func helpMessage() string {
	return `
: Commands (press Esc to toggle mode):

  help         Print this text
  keys [PATH]  List the keys under PATH
  deps EXPR    List the context paths EXPR reads
  funcs [NAME] List function signatures matching NAME
  stats        Print cache counters
  edit         Edit the context in $EDITOR
  reload       Reload the context from its documents
  clear        Clear screen
  quit         Exit REPL

Usage:
  Type an expression to evaluate it against the context
  Input containing template tags is rendered as a template
  Press Tab / Shift-Tab to cycle through candidates
  Press Esc to toggle between eval and command modes
  Use Up/Down arrows for history navigation
  Use Shift+Up/Shift+Down for history navigation within the current mode
  Press Ctrl+C on empty line or Ctrl+D to exit
`
}

// inputMode represents the current input mode.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle      = suggestionStyle.Bold(true).Underline(true)
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
	selectedMatchStyle = selectedStyle.Bold(true).Underline(true)
)

func formatCommand(input string) string {
	return promptStyle.Render(evalPrompt) + inputStyle.Render(input)
}

func formatCtrlCommand(input string) string {
	return ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(input)
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc      func() context.Context
	input        textinput.Model
	src          Source
	vars         config.Map
	logger       log.Logger
	history      *History
	historyIdx   int
	matches      fuzzy.Matches
	wordStart    int
	wordEnd      int
	suggIdx      int
	tabActive    bool
	preTabText   string
	preTabCursor int
	width        int
	quitting     bool
	mode         inputMode
	evalText     string
	evalCursor   int
	ctrlText     string
	ctrlCursor   int
}

// Run starts an interactive session over the context of src. History is
// kept in cacheDir; an empty cacheDir keeps it in memory.
func Run(
	ctx context.Context,
	src Source,
	cacheDir string,
	logger log.Logger,
) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if src == nil {
		return ErrNoContext
	}

	logger.TraceContext(ctx, "repl start", slog.String("cache_dir", cacheDir))

	vars, err := src.Context(ctx)
	if err != nil {
		return err
	}

	logger.TraceContext(ctx, "repl context loaded", slog.Int("keys", len(vars)))

	var path string
	if cacheDir != "" {
		path = filepath.Join(cacheDir, baseHistory)
	}

	history := NewHistory(path)
	if err := history.Load(); err != nil {
		logger.WarnContext(ctx, "could not load history", slog.String("error", err.Error()))
	}

	m := newModel(ctx, src, vars, history, logger)

	_, err = tea.NewProgram(m, tea.WithContext(ctx)).Run()

	return err
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	src Source,
	vars config.Map,
	history *History,
	logger log.Logger,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ctxFunc:    func() context.Context { return ctx },
		input:      ti,
		src:        src,
		vars:       vars,
		logger:     logger,
		history:    history,
		historyIdx: history.Len(),
		suggIdx:    -1,
		width:      defaultWidth,
		mode:       modeEval,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(evalPrompt) - 2

		return m, nil

	case editMsg:
		m.vars = msg.vars
		m.logger.TraceContext(m.ctxFunc(), "repl edit complete",
			slog.Int("keys", len(m.vars)))

		return m, tea.Println(resultStyle.Render("context updated"))

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editDeclinedMsg:
		m.quitting = true

		return m, tea.Quit

	case editErrorMsg:
		return m, tea.Println(errorStyle.Render("error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")

	input := m.input.Value()
	call := detectFunctionCall(input, m.input.Position())

	var hint string

	switch {
	case m.historyIdx < m.history.Len():
		hint = hintStyle.Render(fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx+1)),
			m.history.Len()))

	case strings.TrimSpace(input) == "":
		if m.mode == modeEval {
			hint = hintStyle.Render("Type an expression or press Esc for commands")
		} else {
			hint = hintStyle.Render("Type: " + strings.Join(ctrlCommands, ", ") +
				" (press Esc to return)")
		}

	case call.inCall && m.mode == modeEval && !m.tabActive:
		if sig, ok := lookupSignature(call.name); ok {
			hint = renderSignatureHint(call.name, sig, call.argIndex)
		} else {
			hint = renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width)
		}

	default:
		hint = renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width)
	}

	b.WriteString(hint)
	b.WriteString("\n")

	return b.String()
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(m.ctxFunc(), "repl keypress",
		slog.String("key", msg.String()))

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if !m.tabActive || len(m.matches) == 0 {
			return m.executeInput()
		}

		m.tabActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.historyStep(-1, false), nil

	case tea.KeyDown:
		return m.historyStep(1, false), nil

	case tea.KeyShiftUp:
		return m.historyStep(-1, true), nil

	case tea.KeyShiftDown:
		return m.historyStep(1, true), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			refreshMatches(&m, false)

			return m, nil
		}

		if m.mode == modeEval {
			return m.switchToMode(modeCtrl), nil
		}

		return m.switchToMode(modeEval), nil

	case tea.KeyRunes, tea.KeySpace:
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	var cmd tea.Cmd

	m.tabActive = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// cycle moves the tab selection by step, wrapping at either end. A sole
// candidate is completed at once.
func (m model) cycle(step int) model {
	n := len(m.matches)
	if n == 0 {
		return m
	}

	if n == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m
	}

	switch {
	case m.tabActive:
		m.suggIdx = (m.suggIdx + step + n) % n
	case step < 0:
		m.tabActive = true
		m.preTabText, m.preTabCursor = m.input.Value(), m.input.Position()
		m.suggIdx = n - 1
	default:
		m.tabActive = true
		m.preTabText, m.preTabCursor = m.input.Value(), m.input.Position()
		m.suggIdx = 0
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m
}

// replaceCurrentWord replaces the current word with replacement and moves
// the cursor after it.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()
	cursor := m.wordStart + len(replacement)

	m.input.SetValue(input[:m.wordStart] + replacement + input[m.wordEnd:])
	m.input.SetCursor(cursor)

	m.wordEnd = cursor
}

// refreshMatches recomputes the matches for the current input. With
// autoConfirm, a sole candidate equal to the typed word is accepted.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	if m.matches[0].Str == m.input.Value()[m.wordStart:m.wordEnd] {
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

func (m model) executeInput() (model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m, nil
	}

	m.evalText, m.evalCursor = "", 0
	m.ctrlText, m.ctrlCursor = "", 0
	m.input.SetValue("")
	m.matches = nil

	if err := m.history.Add(input, m.mode); err != nil {
		m.logger.WarnContext(m.ctxFunc(), "could not save history",
			slog.String("error", err.Error()))
	}

	m.historyIdx = m.history.Len()

	if m.mode == modeCtrl {
		return m.executeCommand(input)
	}

	echo := tea.Println(formatCommand(input))

	out, err := m.evaluate(input)
	if err != nil {
		return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
	}

	return m, tea.Sequence(echo, tea.Println(resultStyle.Render(out)))
}

// evaluate runs input against the context and formats the result. Input
// without template tags is taken as a single expression.
func (m model) evaluate(input string) (string, error) {
	ctx := m.ctxFunc()

	v, err := m.src.Evaluator().Value(ctx, asTemplate(input), scope.Lazy(m.vars))
	if err != nil {
		return "", err
	}

	m.logger.TraceContext(ctx, "repl eval result", slog.String("type", fmt.Sprintf("%T", v)))

	return formatResult(ctx, scope.Unwrap(v))
}

func asTemplate(input string) string {
	if lang.IsDynamic(input) {
		return input
	}

	return "{{ " + input + " }}"
}

// formatResult renders strings verbatim and everything else as YAML.
func formatResult(ctx context.Context, v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}

	data, err := config.Marshal(ctx, config.Normalize(v), config.FormatYAML, 2)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(string(data), "\n"), nil
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	echo := tea.Println(formatCtrlCommand(input))

	m.logger.TraceContext(m.ctxFunc(), "repl command",
		slog.String("command", cmd), slog.String("arg", arg))

	reply := func(s string, err error) (model, tea.Cmd) {
		if err != nil {
			return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
		}

		return m, tea.Sequence(echo, tea.Println(s))
	}

	switch cmd {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echo, tea.Quit)

	case "h", "help":
		return reply(helpMessage(), nil)

	case "k", "keys":
		return reply(m.listKeys(arg))

	case "d", "deps":
		return reply(dependencies(arg))

	case "f", "funcs":
		return reply(listFuncs(arg), nil)

	case "s", "stats":
		return reply(formatStats(m.src.Evaluator().Stats()), nil)

	case "r", "reload":
		vars, err := m.src.Context(m.ctxFunc())
		if err != nil {
			return reply("", err)
		}

		m.vars = vars

		return reply(resultStyle.Render("context reloaded"), nil)

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echo, m.edit())

	default:
		return m, tea.Println(errorStyle.Render("unknown command: " + cmd + " (try 'help')"))
	}
}

// listKeys lists the keys under path with a preview of each value.
func (m model) listKeys(path string) (string, error) {
	v := any(m.vars)

	if path != "" {
		var ok bool
		if v, ok = config.Get(m.vars, strings.Split(path, ".")...); !ok {
			return "", config.ErrTypeMismatch.Wrapf("no such path").
				With(slog.String("path", path))
		}
	}

	mv, ok := config.AsMap(v)
	if !ok {
		return "", config.ErrTypeMismatch.Wrapf("not a map").
			With(slog.String("path", path))
	}

	var b strings.Builder

	for _, k := range slices.Sorted(maps.Keys(mv)) {
		fmt.Fprintf(&b, "  %s %s\n", k, hintStyle.Render(preview(mv[k])))
	}

	return strings.TrimSuffix(b.String(), "\n"), nil
}

const previewWidth = 40

func preview(v any) string {
	var s string

	switch t := v.(type) {
	case config.Map:
		s = "{" + strconv.Itoa(len(t)) + " keys}"
	case []any:
		s = "[" + strconv.Itoa(len(t)) + " items]"
	default:
		s = fmt.Sprint(t)
	}

	if len(s) > previewWidth {
		s = s[:previewWidth-3] + "..."
	}

	return s
}

// dependencies lists the context paths read by expr.
func dependencies(expr string) (string, error) {
	if expr == "" {
		return "", ErrUsage.Wrapf("deps EXPR")
	}

	paths, err := lang.AnalyzeSource(asTemplate(expr))
	if err != nil {
		return "", err
	}

	if len(paths) == 0 {
		return hintStyle.Render("(none)"), nil
	}

	return strings.Join(paths.Strings(), "\n"), nil
}

// listFuncs lists the signatures of the callable names containing filter.
func listFuncs(filter string) string {
	names := slices.Concat(
		slices.Collect(maps.Keys(funcSignatures)),
		slices.Collect(maps.Keys(exprSignatures)),
	)
	slices.Sort(names)

	var b strings.Builder

	for _, name := range names {
		if !strings.Contains(strings.ToLower(name), strings.ToLower(filter)) {
			continue
		}

		sig, _ := lookupSignature(name)
		b.WriteString("  " + sig.format(name) + "\n")
	}

	if b.Len() == 0 {
		return hintStyle.Render("(none)")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func formatStats(s lang.Stats) string {
	return fmt.Sprintf("compiles=%d renders=%d hits=%d misses=%d entries=%d",
		s.Compiles, s.Renders, s.Hits, s.Misses, s.Entries)
}

func (m model) edit() tea.Cmd {
	cmd := &editCommand{
		src:     m.src,
		vars:    m.vars,
		ctxFunc: m.ctxFunc,
		logger:  m.logger,
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editDeclinedMsg{}
		case err != nil:
			return editErrorMsg{err: err}
		case cmd.result == nil:
			return editCancelledMsg{}
		}

		return editMsg{vars: cmd.result}
	})
}

// historyStep moves through history by step. Within mode, entries of the
// other mode are skipped; otherwise the mode follows the entry. Moving past
// the newest entry clears the input.
func (m model) historyStep(step int, withinMode bool) model {
	for i := m.historyIdx + step; i >= 0 && i < m.history.Len(); i += step {
		e, err := m.history.Entry(i)
		if err != nil {
			break
		}

		if withinMode && e.Mode != m.mode {
			continue
		}

		if e.Mode != m.mode {
			m = m.switchToMode(e.Mode)
		}

		m.historyIdx = i
		m.input.SetValue(e.Line)
		m.input.SetCursor(len(e.Line))
		refreshMatches(&m, false)

		return m
	}

	if step > 0 && m.historyIdx < m.history.Len() {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		refreshMatches(&m, false)
	}

	return m
}

// switchToMode switches to mode, keeping the input of each mode.
func (m model) switchToMode(mode inputMode) model {
	if m.mode == modeEval {
		m.evalText, m.evalCursor = m.input.Value(), m.input.Position()
	} else {
		m.ctrlText, m.ctrlCursor = m.input.Value(), m.input.Position()
	}

	m.mode = mode

	if mode == modeEval {
		m.input.Prompt = promptStyle.Render(evalPrompt)
		m.input.SetValue(m.evalText)
		m.input.SetCursor(m.evalCursor)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
		m.input.SetValue(m.ctrlText)
		m.input.SetCursor(m.ctrlCursor)
	}

	refreshMatches(&m, false)

	return m
}
