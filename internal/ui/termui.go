package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/aggregator"
	"github.com/Catker/ashare-llm-analyst/internal/analysis/report"
	"github.com/Catker/ashare-llm-analyst/internal/config"
)

// maxLogs число строк лога в памяти
const maxLogs = 50

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	// Главный контейнер
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#222222"))
	ansiRegex     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// RunFunc выполняет пакетный анализ
type RunFunc func(ctx context.Context) []*aggregator.Result

// TermUI терминальный просмотр последних снимков анализа
type TermUI struct {
	config   config.UIConfig
	run      RunFunc
	ctx      context.Context
	mu       sync.RWMutex
	results  []*aggregator.Result
	logs     []string
	running  bool
	updated  time.Time
	selected int
	width    int
	height   int
}

// Сообщения для обновления UI
type (
	resultsMsg []*aggregator.Result
	tickMsg    time.Time
)

// bubbleModel модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает терминальный интерфейс
func NewTermUI(ctx context.Context, cfg config.UIConfig, run RunFunc) *TermUI {
	return &TermUI{
		config: cfg,
		run:    run,
		ctx:    ctx,
		logs:   []string{"Анализатор запущен. Ожидание данных..."},
		width:  120,
		height: 40,
	}
}

// Start запускает интерфейс и блокируется до выхода
func (ui *TermUI) Start() error {
	program := tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ui.ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// SetResults заменяет отображаемые результаты
func (ui *TermUI) SetResults(results []*aggregator.Result) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	ui.results = results
	ui.running = false
	ui.updated = time.Now()
	if ui.selected >= len(results) {
		ui.selected = max(0, len(results)-1)
	}
}

func (ui *TermUI) analyze() tea.Cmd {
	ui.mu.Lock()
	if ui.running || ui.run == nil {
		ui.mu.Unlock()
		return nil
	}
	ui.running = true
	ui.mu.Unlock()

	return func() tea.Msg {
		return resultsMsg(ui.run(ui.ctx))
	}
}

func (ui *TermUI) tick() tea.Cmd {
	interval := time.Duration(ui.config.RefreshRate) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// loadLogsFromFile перечитывает хвост JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	if ui.config.LogFile == "" {
		return nil
	}
	file, err := os.Open(ui.config.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Файл не существует, это не ошибка
			return nil
		}
		return err
	}
	defer file.Close()

	var logs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogs {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.mu.Lock()
		ui.logs = logs
		ui.mu.Unlock()
	}
	return nil
}

// formatLogLine переводит JSON-запись zap в строку для экрана
func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		// Не удалось распарсить JSON, добавляем как есть
		return line
	}

	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)

	// Удаляем ANSI-цвета из уровня логирования
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", timestamp, level, msg)

	// Дополнительные поля в стабильном порядке
	keys := make([]string, 0, len(zapLog))
	for k := range zapLog {
		switch k {
		case "level", "ts", "msg", "caller":
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " (%s: %v)", k, zapLog[k])
	}
	return b.String()
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return tea.Batch(m.ui.analyze(), m.ui.tick())
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.ui.mu.Lock()
			m.ui.selected = max(0, m.ui.selected-1)
			m.ui.mu.Unlock()
		case "down", "j":
			m.ui.mu.Lock()
			m.ui.selected = max(0, min(len(m.ui.results)-1, m.ui.selected+1))
			m.ui.mu.Unlock()
		case "r":
			return m, m.ui.analyze()
		}

	case tea.WindowSizeMsg:
		m.ui.mu.Lock()
		m.ui.width = msg.Width
		m.ui.height = msg.Height
		m.ui.mu.Unlock()

	case resultsMsg:
		m.ui.SetResults(msg)

	case tickMsg:
		// Ошибки чтения лога не прерывают работу интерфейса
		_ = m.ui.loadLogsFromFile()
		return m, m.ui.tick()
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.mu.RLock()
	defer m.ui.mu.RUnlock()

	title := titleStyle.Render("Технический анализ: последние снимки")
	list := renderInstruments(m.ui.results, m.ui.selected, m.ui.running)

	var detail string
	if m.ui.selected < len(m.ui.results) {
		detail = renderDetail(m.ui.results[m.ui.selected])
	}

	status := "Обновлено: -"
	if !m.ui.updated.IsZero() {
		status = "Обновлено: " + m.ui.updated.Format("15:04:05")
	}
	footer := footerStyle.Render(status + "  Клавиши: ↑/↓ навигация, R повторить анализ, Q выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			lipgloss.JoinHorizontal(lipgloss.Top, list, " ", detail),
			"\n",
			renderLogs(m.ui.logs),
			"\n",
			footer,
		),
	)
}

// Вспомогательные функции
func renderInstruments(results []*aggregator.Result, selected int, running bool) string {
	header := headerStyle.Render("ИНСТРУМЕНТЫ")
	content := strings.Builder{}

	switch {
	case len(results) == 0 && running:
		content.WriteString("  Идет анализ...\n")
	case len(results) == 0:
		content.WriteString("  Ожидание данных...\n")
	}

	for i, r := range results {
		if r == nil || r.Snapshot == nil {
			continue
		}
		line := fmt.Sprintf("  %-10s %s", r.Snapshot.Code, statusText(r.Snapshot))
		if i == selected {
			line = selectedStyle.Render("> " + line[2:])
		}
		content.WriteString(line + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func renderDetail(r *aggregator.Result) string {
	if r == nil || r.Snapshot == nil {
		return ""
	}
	s := r.Snapshot

	content := strings.Builder{}
	for _, e := range s.Basic {
		fmt.Fprintf(&content, "  %s: %s\n", e.Label, e.Value)
	}
	content.WriteString("\n")
	for _, sig := range s.Signals {
		content.WriteString("  • " + sig + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(strings.ToUpper(s.Name)),
		content.String(),
	))
}

func renderLogs(logs []string) string {
	header := headerStyle.Render("ЛОГИ")
	content := strings.Builder{}

	start := 0
	if len(logs) > 8 {
		start = len(logs) - 8
	}
	for _, log := range logs[start:] {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		}
		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

// statusText краткий статус инструмента с цветом
func statusText(s *report.Snapshot) string {
	if s.Failed() {
		return lipgloss.NewStyle().Foreground(errorColor).Render(s.StatusMessage)
	}
	text := fmt.Sprintf("сигналов: %d", len(s.Signals))
	if len(s.Signals) == 1 {
		text = s.Signals[0]
	}
	return lipgloss.NewStyle().Foreground(successColor).Render(text)
}
