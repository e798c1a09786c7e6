package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	log "github.com/sirupsen/logrus"
)

// shortTopicName extracts the sensor name from a state topic
// e.g. "homeassistant/sensor/grid_power/state" -> "grid_power"
func shortTopicName(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return topic
}

// formatDebugValue formats a float with smart precision
func formatDebugValue(v float64) string {
	if v >= 100 || v <= -100 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

var rlWriter = &readlineWriter{}

// DebugState tracks watched readouts and input topics
type DebugState struct {
	watches       []string // readout keys or input topics
	headerPrinted bool
	columnWidths  []int
	latestData    *DisplayData
	readouts      *ReadoutRegistry
	rl            *readline.Instance
	prevValues    map[string]string
	out           func(line string)
}

func NewDebugState(readouts *ReadoutRegistry) *DebugState {
	s := &DebugState{
		readouts:   readouts,
		prevValues: make(map[string]string),
	}
	s.out = s.printLine
	return s
}

// resolve maps a short name to a readout key or full input topic
func (s *DebugState) resolve(name string) (string, bool) {
	if _, ok := s.readouts.Get(name); ok {
		return name, true
	}
	for _, r := range Readouts() {
		if r.Key == name {
			return name, true
		}
	}
	if s.latestData != nil {
		for topic := range s.latestData.TopicData {
			if topic == name || shortTopicName(topic) == name {
				return topic, true
			}
		}
	}
	return "", false
}

// Value returns the display value of a watch
func (s *DebugState) Value(name string) string {
	if v, ok := s.readouts.Get(name); ok {
		return v.State
	}
	if s.latestData == nil {
		return "-"
	}
	switch d := s.latestData.TopicData[name].(type) {
	case *FloatTopicData:
		if !d.Valid {
			return "unavailable"
		}
		return formatDebugValue(d.Current)
	case *BooleanTopicData:
		if !d.Valid {
			return "unavailable"
		}
		if d.Current {
			return "on"
		}
		return "off"
	}
	return "-"
}

func (s *DebugState) AddWatch(name string) {
	resolved, ok := s.resolve(name)
	if !ok {
		log.Warnf("Unknown readout or topic: %s (try 'list')", name)
		return
	}
	if slices.Contains(s.watches, resolved) {
		log.Infof("Already watching: %s", resolved)
		return
	}

	s.watches = append(s.watches, resolved)
	sort.Slice(s.watches, func(i, j int) bool {
		return shortTopicName(s.watches[i]) < shortTopicName(s.watches[j])
	})
	s.headerPrinted = false
	log.Infof("Watching: %s", resolved)
}

func (s *DebugState) RemoveWatch(name string) bool {
	for i, w := range s.watches {
		if w == name || shortTopicName(w) == name {
			s.watches = slices.Delete(s.watches, i, i+1)
			s.headerPrinted = false
			log.Infof("Unwatched: %s", w)
			return true
		}
	}
	log.Infof("No watch found for: %s", name)
	return false
}

func (s *DebugState) RemoveAll() {
	s.watches = s.watches[:0]
	s.headerPrinted = false
	log.Info("All watches removed")
}

func (s *DebugState) UpdateData(data DisplayData) {
	s.latestData = &data
}

func (s *DebugState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

// printLine outputs a line, handling the readline prompt properly
func (s *DebugState) printLine(line string) {
	if s.rl != nil {
		s.rl.Clean()
		fmt.Println(line)
		s.rl.Refresh()
	} else {
		fmt.Println(line)
	}
}

func (s *DebugState) print(format string, args ...any) {
	s.out(fmt.Sprintf(format, args...))
}

// List prints every readout and input topic
func (s *DebugState) List() {
	s.print("Readouts:")
	for _, r := range Readouts() {
		s.print("  %-24s %s %s", r.Key, s.Value(r.Key), r.Unit)
	}

	if s.latestData == nil {
		s.print("No sensor data received yet")
		return
	}

	topics := make([]string, 0, len(s.latestData.TopicData))
	for topic := range s.latestData.TopicData {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	s.print("Input topics (%d):", len(topics))
	for _, topic := range topics {
		var typeStr string
		switch s.latestData.TopicData[topic].(type) {
		case *FloatTopicData:
			typeStr = "[float]"
		case *BooleanTopicData:
			typeStr = "[bool]"
		default:
			typeStr = "[?]"
		}
		s.print("  %s %s = %s", typeStr, topic, s.Value(topic))
	}
}

func (s *DebugState) PrintHeader() {
	if len(s.watches) == 0 {
		return
	}

	s.columnWidths = make([]int, len(s.watches))
	parts := make([]string, 0, len(s.watches))
	for i, w := range s.watches {
		name := shortTopicName(w)
		s.columnWidths[i] = len(name)
		parts = append(parts, name)
	}
	s.print("%s", strings.Join(parts, " | "))
	s.headerPrinted = true
	s.prevValues = make(map[string]string)
}

// PrintRow prints the current values of all watches if any changed
func (s *DebugState) PrintRow() {
	if len(s.watches) == 0 {
		return
	}
	if !s.headerPrinted {
		s.PrintHeader()
	}

	parts := make([]string, 0, len(s.watches))
	anyChanged := false
	newValues := make(map[string]string, len(s.watches))

	for i, w := range s.watches {
		value := s.Value(w)
		newValues[w] = value

		width := max(s.columnWidths[i], len(value))
		s.columnWidths[i] = width

		if prev, ok := s.prevValues[w]; !ok || prev != value {
			anyChanged = true
			parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
		} else {
			parts = append(parts, fmt.Sprintf("%*s", width, value))
		}
	}

	if anyChanged {
		s.print("%s", strings.Join(parts, " | "))
		s.prevValues = newValues
	}
}

// handleDebugCommand processes a debug command
func handleDebugCommand(cmd string, state *DebugState) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "watch":
		if len(parts) < 2 {
			log.Info("Usage: watch <readout|topic>")
			return
		}
		state.AddWatch(parts[1])

	case "unwatch":
		if len(parts) < 2 {
			log.Info("Usage: unwatch <readout|topic> | unwatch --all")
			return
		}
		if parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		state.RemoveWatch(parts[1])

	case "list":
		state.List()

	case "help":
		state.print("Commands:")
		state.print("  list                    - List readouts and input topics")
		state.print("  watch <readout|topic>   - Print a column whenever the value changes")
		state.print("  unwatch <readout|topic> - Remove a watch")
		state.print("  unwatch --all           - Remove all watches")
		state.print("  help                    - Show this help")

	default:
		log.Warnf("Unknown command: %s (try 'help')", parts[0])
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C shuts the service down
			return
		}
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line != "" {
			commandChan <- line
		}
	}
}

// getHistoryFilePath returns the path for the debug history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "energyctl")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "debug_history")
}

// debugWorker provides interactive introspection of readings and readouts
func debugWorker(ctx context.Context, cancel context.CancelFunc, dataChan <-chan DisplayData, readouts *ReadoutRegistry) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		log.Errorf("Debug worker: readline init failed: %v", err)
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.rl = nil
		log.SetOutput(os.Stderr)
	}()

	rlWriter.rl = rl
	log.SetOutput(rlWriter)

	log.Info("Debug worker started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	state := NewDebugState(readouts)
	state.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case cmd := <-commandChan:
			handleDebugCommand(cmd, state)
		case data := <-dataChan:
			state.UpdateData(data)
			state.PrintRow()
		case <-ctx.Done():
			log.Info("Debug worker stopped")
			return
		}
	}
}
